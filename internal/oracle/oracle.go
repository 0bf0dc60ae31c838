package oracle

import (
	"context"
	"errors"
	"math/big"
)

var ErrBadRequest = errors.New("oracle: request rejected")

// Config is passed through to the oracle as-is. Confirmations and
// CallbackGasLimit are opaque to the engine, Words is the batch size.
type Config struct {
	Words            uint32
	Confirmations    uint16
	CallbackGasLimit uint32
}

// Consumer receives the delivered batch. The oracle invokes it exactly once
// per accepted request, on its own schedule.
type Consumer interface {
	OnRandomnessDelivered(requestID uint64, words []*big.Int) error
}

// Oracle accepts randomness requests. SubmitRequest returns immediately with
// the request identifier the eventual callback will carry.
type Oracle interface {
	SubmitRequest(ctx context.Context, cfg Config, consumer Consumer) (uint64, error)
}
