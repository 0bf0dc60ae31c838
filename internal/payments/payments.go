package payments

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank moves escrowed funds out to a recipient during settlement.
type Bank interface {
	Pay(ctx context.Context, to common.Address, amount *big.Int) error
}

// MemoryBank records payments in an in-process ledger for local deployments
// and tests.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: make(map[common.Address]*big.Int),
	}
}

func (b *MemoryBank) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance, ok := b.balances[to]
	if !ok {
		balance = new(big.Int)
		b.balances[to] = balance
	}
	balance.Add(balance, amount)
	return nil
}

// BalanceOf reports the total paid to an address so far.
func (b *MemoryBank) BalanceOf(to common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()

	balance, ok := b.balances[to]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}
