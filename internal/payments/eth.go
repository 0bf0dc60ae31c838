package payments

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

const paymentGasLimit = uint64(21000)

// EthBank pays out by signing plain value transfers from the operator account.
type EthBank struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	operator   common.Address
	chainID    *big.Int
}

func NewEthBank(ctx context.Context, rpcURL, operatorKeyHex string) (*EthBank, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "payments: dial rpc")
	}

	privateKey, err := crypto.HexToECDSA(operatorKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "payments: operator key")
	}

	chainID, err := client.NetworkID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "payments: network id")
	}

	return &EthBank{
		client:     client,
		privateKey: privateKey,
		operator:   crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    chainID,
	}, nil
}

func (b *EthBank) Pay(ctx context.Context, to common.Address, amount *big.Int) error {
	nonce, err := b.client.PendingNonceAt(ctx, b.operator)
	if err != nil {
		return errors.Wrap(err, "payments: pending nonce")
	}

	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return errors.Wrap(err, "payments: gas price")
	}

	tx := types.NewTransaction(nonce, to, amount, paymentGasLimit, gasPrice, nil)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(b.chainID), b.privateKey)
	if err != nil {
		return errors.Wrap(err, "payments: sign payment")
	}

	if err := b.client.SendTransaction(ctx, signedTx); err != nil {
		return errors.Wrap(err, "payments: send payment")
	}

	return nil
}
