package storage

import (
	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/raffle"
)

// Storage is the durable keyed state behind the engine: raffle snapshots for
// rehydration and the append-only event journal.
type Storage interface {
	// raffle snapshots
	SaveRaffle(snapshot *raffle.Snapshot) error
	LoadRaffles() ([]*raffle.Snapshot, error)

	// event journal
	AppendEvent(event *events.Event) error
	ListEvents(raffleID string) ([]*events.Event, error)
}
