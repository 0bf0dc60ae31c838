package assets

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownAsset = errors.New("assets: unknown asset")
	ErrNotOwner     = errors.New("assets: from is not the current owner")
)

// Registry is the boundary to the external service that tracks ownership of
// non-fungible assets and moves them between custody addresses.
type Registry interface {
	OwnerOf(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error)
	Transfer(ctx context.Context, collection common.Address, tokenID *big.Int, from, to common.Address) error
}
