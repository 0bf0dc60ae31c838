package oracle

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayobamihybrid/Daffy/internal/logger"
)

var wordBound = new(big.Int).Lsh(big.NewInt(1), 256)

// LocalOracle fulfils requests in-process from crypto/rand after a fixed
// delay, standing in for an external verifiable-randomness service.
type LocalOracle struct {
	delay  time.Duration
	nextID atomic.Uint64
}

func NewLocalOracle(delay time.Duration) *LocalOracle {
	return &LocalOracle{delay: delay}
}

func (o *LocalOracle) SubmitRequest(ctx context.Context, cfg Config, consumer Consumer) (uint64, error) {
	if cfg.Words < 1 || consumer == nil {
		return 0, ErrBadRequest
	}

	requestID := o.nextID.Add(1)

	go func() {
		time.Sleep(o.delay)

		words := make([]*big.Int, cfg.Words)
		for i := range words {
			word, err := rand.Int(rand.Reader, wordBound)
			if err != nil {
				logger.Error("oracle: drawing randomness failed", zap.Uint64("request", requestID), zap.Error(err))
				return
			}
			words[i] = word
		}

		if err := consumer.OnRandomnessDelivered(requestID, words); err != nil {
			logger.Warn("oracle: callback rejected", zap.Uint64("request", requestID), zap.Error(err))
		}
	}()

	return requestID, nil
}
