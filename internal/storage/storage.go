package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mselser95/basket-slippage/internal/simulation"
)

// Storage is the interface for exporting cycle records.
type Storage interface {
	// StoreCycle persists one cycle record.
	StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error

	// Close releases the underlying resource.
	Close() error
}

// MultiStorage fans each record out to several sinks.
type MultiStorage struct {
	sinks []Storage
}

// NewMultiStorage combines sinks. Nil sinks are skipped.
func NewMultiStorage(sinks ...Storage) *MultiStorage {
	m := &MultiStorage{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiStorage) Len() int {
	return len(m.sinks)
}

// StoreCycle writes to every sink, even after one fails, and joins the errors.
func (m *MultiStorage) StoreCycle(ctx context.Context, rec *simulation.CycleRecord) error {
	var errs []error
	for i, s := range m.sinks {
		err := s.StoreCycle(ctx, rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiStorage) Close() error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
