package events

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayobamihybrid/Daffy/internal/logger"
)

// Operation names carried by emitted events.
const (
	RaffleCreated   = "RaffleCreated"
	TicketPurchased = "TicketPurchased"
	PrizeAdded      = "PrizeAdded"
	RaffleActivated = "RaffleActivated"
	DrawRequested   = "DrawRequested"
	WinnerSelected  = "WinnerSelected"
	PrizeAwarded    = "PrizeAwarded"
	RaffleCancelled = "RaffleCancelled"
	RaffleExpired   = "RaffleExpired"
	TicketPriceSet  = "TicketPriceSet"
	PrizeSplitSet   = "PrizeSplitSet"
	DescriptionSet  = "DescriptionSet"
	TagsSet         = "TagsSet"
)

// Event is one append-only notification about a state-changing operation.
// The engine never reads these back, they exist for external listeners.
type Event struct {
	Op         string    `json:"op"`
	RaffleID   string    `json:"raffle_id"`
	Actor      string    `json:"actor,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Quantity   uint64    `json:"quantity,omitempty"`
	Collection string    `json:"collection,omitempty"`
	AssetID    string    `json:"asset_id,omitempty"`
	Winner     string    `json:"winner,omitempty"`
	RequestID  uint64    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Sink interface {
	Emit(event Event)
}

// LogSink writes every event to the structured log.
type LogSink struct{}

func (LogSink) Emit(event Event) {
	logger.Info("event",
		zap.String("op", event.Op),
		zap.String("raffle", event.RaffleID),
		zap.String("actor", event.Actor),
		zap.String("amount", event.Amount),
		zap.Uint64("quantity", event.Quantity),
		zap.String("winner", event.Winner),
	)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}

// Stamp fills in the event timestamp if the emitter left it zero.
func Stamp(event Event) Event {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return event
}
