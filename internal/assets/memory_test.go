package assets

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryOwnershipAndTransfer(t *testing.T) {
	registry := NewMemoryRegistry()
	ctx := context.Background()

	collection := common.HexToAddress("0x3000000000000000000000000000000000000001")
	alice := common.HexToAddress("0x4000000000000000000000000000000000000001")
	bob := common.HexToAddress("0x4000000000000000000000000000000000000002")
	token := big.NewInt(7)

	_, err := registry.OwnerOf(ctx, collection, token)
	require.ErrorIs(t, err, ErrUnknownAsset)

	registry.Mint(collection, token, alice)

	owner, err := registry.OwnerOf(ctx, collection, token)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	require.ErrorIs(t, registry.Transfer(ctx, collection, token, bob, alice), ErrNotOwner)
	require.ErrorIs(t, registry.Transfer(ctx, collection, big.NewInt(8), alice, bob), ErrUnknownAsset)

	require.NoError(t, registry.Transfer(ctx, collection, token, alice, bob))
	owner, err = registry.OwnerOf(ctx, collection, token)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)
}
