package raffle

import "errors"

// Errors are sentinels so callers can classify failures with errors.Is.
// Adapter causes are attached by wrapping, the sentinel stays in the chain.
var (
	// Parameter validation.
	ErrInvalidParameters = errors.New("raffle: invalid parameters")
	ErrIncorrectPayment  = errors.New("raffle: paid amount does not match ticket price")

	// Authorization.
	ErrNotAuthorized = errors.New("raffle: caller not authorized")

	// State conflicts.
	ErrWrongState = errors.New("raffle: operation not allowed in current state")
	ErrNoPrizes   = errors.New("raffle: no prizes attached")

	// External dependency failures.
	ErrTransferFailed = errors.New("raffle: transfer failed")
	ErrAssetNotHeld   = errors.New("raffle: asset not held by raffle")

	// Protocol integrity.
	ErrWrongRequestID = errors.New("raffle: randomness request id mismatch")
	ErrInvalidPick    = errors.New("raffle: no participants to pick from")
)
