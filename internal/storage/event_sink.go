package storage

import (
	"go.uber.org/zap"

	"github.com/ayobamihybrid/Daffy/internal/events"
	"github.com/ayobamihybrid/Daffy/internal/logger"
)

// EventSink journals every emitted event. Journaling is best-effort: a write
// failure is logged, the operation that emitted the event is not affected.
type EventSink struct {
	storage Storage
}

func NewEventSink(storage Storage) *EventSink {
	return &EventSink{storage: storage}
}

func (s *EventSink) Emit(event events.Event) {
	if err := s.storage.AppendEvent(&event); err != nil {
		logger.Error("storage: appending event failed", zap.String("op", event.Op), zap.Error(err))
	}
}
