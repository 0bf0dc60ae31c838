package assets

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const erc721ABI = `[
	{"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"name":"transferFrom","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const transferGasLimit = uint64(200000)

// ERC721Registry talks to ERC-721 collections on an EVM chain. Transfers are
// signed with the operator key, which must be approved for the assets it moves.
type ERC721Registry struct {
	client     *ethclient.Client
	abi        abi.ABI
	privateKey *ecdsa.PrivateKey
	operator   common.Address
	chainID    *big.Int
}

func NewERC721Registry(ctx context.Context, rpcURL, operatorKeyHex string) (*ERC721Registry, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "assets: dial rpc")
	}

	privateKey, err := crypto.HexToECDSA(operatorKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "assets: operator key")
	}

	chainID, err := client.NetworkID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "assets: network id")
	}

	parsed, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		return nil, errors.Wrap(err, "assets: parse abi")
	}

	return &ERC721Registry{
		client:     client,
		abi:        parsed,
		privateKey: privateKey,
		operator:   crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
	}, nil
}

func (r *ERC721Registry) OwnerOf(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error) {
	data, err := r.abi.Pack("ownerOf", tokenID)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "assets: pack ownerOf")
	}

	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &collection, Data: data}, nil)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "assets: call ownerOf")
	}

	results, err := r.abi.Unpack("ownerOf", out)
	if err != nil || len(results) != 1 {
		return common.Address{}, errors.Wrap(err, "assets: unpack ownerOf")
	}

	owner, ok := results[0].(common.Address)
	if !ok {
		return common.Address{}, errors.New("assets: ownerOf returned a non-address")
	}

	return owner, nil
}

func (r *ERC721Registry) Transfer(ctx context.Context, collection common.Address, tokenID *big.Int, from, to common.Address) error {
	owner, err := r.OwnerOf(ctx, collection, tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}

	data, err := r.abi.Pack("transferFrom", from, to, tokenID)
	if err != nil {
		return errors.Wrap(err, "assets: pack transferFrom")
	}

	nonce, err := r.client.PendingNonceAt(ctx, r.operator)
	if err != nil {
		return errors.Wrap(err, "assets: pending nonce")
	}

	gasPrice, err := r.client.SuggestGasPrice(ctx)
	if err != nil {
		return errors.Wrap(err, "assets: gas price")
	}

	tx := types.NewTransaction(nonce, collection, big.NewInt(0), transferGasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(r.chainID), r.privateKey)
	if err != nil {
		return errors.Wrap(err, "assets: sign transfer")
	}

	if err := r.client.SendTransaction(ctx, signedTx); err != nil {
		return errors.Wrap(err, "assets: send transfer")
	}

	return nil
}
