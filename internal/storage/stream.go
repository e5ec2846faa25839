package storage

import (
	"context"
	"fmt"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

// Broadcaster pushes a message to live subscribers. *websocket.Hub implements it.
type Broadcaster interface {
	Broadcast(v interface{}) error
}

// StreamStorage publishes each record to live subscribers.
// Closing it does not close the broadcaster, which the HTTP server owns.
type StreamStorage struct {
	hub    Broadcaster
	logger *zap.Logger
}

// NewStreamStorage creates a stream sink over hub.
func NewStreamStorage(hub Broadcaster, logger *zap.Logger) *StreamStorage {
	return &StreamStorage{hub: hub, logger: logger}
}

// StoreCycle broadcasts the record.
func (s *StreamStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	err := s.hub.Broadcast(rec)
	if err != nil {
		return fmt.Errorf("broadcast cycle %d: %w", rec.Cycle, err)
	}
	return nil
}

// Close is a no-op.
func (s *StreamStorage) Close() error {
	s.logger.Debug("closing-stream-storage")
	return nil
}
