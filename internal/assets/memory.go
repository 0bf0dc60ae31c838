package assets

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryRegistry keeps ownership in-process. It backs local deployments and
// tests where no chain is available.
type MemoryRegistry struct {
	mu     sync.RWMutex
	owners map[string]common.Address
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		owners: make(map[string]common.Address),
	}
}

func assetKey(collection common.Address, tokenID *big.Int) string {
	return collection.Hex() + "/" + tokenID.String()
}

// Mint registers an asset with an initial owner.
func (r *MemoryRegistry) Mint(collection common.Address, tokenID *big.Int, owner common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[assetKey(collection, tokenID)] = owner
}

func (r *MemoryRegistry) OwnerOf(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[assetKey(collection, tokenID)]
	if !ok {
		return common.Address{}, ErrUnknownAsset
	}
	return owner, nil
}

func (r *MemoryRegistry) Transfer(ctx context.Context, collection common.Address, tokenID *big.Int, from, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey(collection, tokenID)
	owner, ok := r.owners[key]
	if !ok {
		return ErrUnknownAsset
	}
	if owner != from {
		return ErrNotOwner
	}

	r.owners[key] = to
	return nil
}
