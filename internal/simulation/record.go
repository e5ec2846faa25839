package simulation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
)

// ErrRunFinalized is returned when appending to a finalized run.
var ErrRunFinalized = errors.New("run already finalized")

// CycleRecord is the measurement of one mint/value/redeem cycle.
type CycleRecord struct {
	RunID           string           `json:"run_id"`
	Cycle           int              `json:"cycle"`
	Block           uint64           `json:"block"`
	Timestamp       time.Time        `json:"timestamp"`
	MintBatchID     uint64           `json:"mint_batch_id"`
	InputAmount     fixedpoint.Value `json:"input_amount"`
	InputValue      fixedpoint.Value `json:"input_value"`
	OutputAmount    fixedpoint.Value `json:"output_amount"`
	OutputValue     fixedpoint.Value `json:"output_value"`
	Slippage        fixedpoint.Ratio `json:"slippage"`
	WithinTolerance bool             `json:"within_tolerance"`
}

// Status is the lifecycle of a Run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

// Run is the append-only log of one simulation. Only the driver appends;
// readers get copies.
type Run struct {
	ID        string
	Params    Params
	StartedAt time.Time

	mu         sync.RWMutex
	records    []CycleRecord
	status     Status
	finishedAt time.Time
	err        error
}

// NewRun starts an empty run log.
func NewRun(params Params) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Params:    params,
		StartedAt: time.Now(),
		status:    StatusRunning,
	}
}

// Append adds a record. The record's RunID is overwritten with the run's.
func (r *Run) Append(rec CycleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return ErrRunFinalized
	}

	rec.RunID = r.ID
	r.records = append(r.records, rec)
	return nil
}

// Records returns a copy of all records in append order.
func (r *Run) Records() []CycleRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CycleRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records.
func (r *Run) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}

// Finalize makes the run read-only. A nil err marks it finished, otherwise aborted.
// Only the first call has an effect.
func (r *Run) Finalize(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return
	}

	r.finishedAt = time.Now()
	r.err = err
	if err != nil {
		r.status = StatusAborted
		return
	}
	r.status = StatusFinished
}

// Status returns the run's lifecycle status.
func (r *Run) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

// Err returns the abort cause, if any.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.err
}

// FinishedAt returns the finalization time, zero while running.
func (r *Run) FinishedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.finishedAt
}

// Summary aggregates a run's records.
func (r *Run) Summary() Summary {
	records := r.Records()

	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summarize(records)
	s.RunID = r.ID
	s.Status = r.status
	s.StartedAt = r.StartedAt
	s.FinishedAt = r.finishedAt
	if r.err != nil {
		s.Error = r.err.Error()
	}
	return s
}

// Summary is an aggregate view over cycle records.
type Summary struct {
	RunID       string            `json:"run_id"`
	Status      Status            `json:"status,omitempty"`
	StartedAt   time.Time         `json:"started_at,omitempty"`
	FinishedAt  time.Time         `json:"finished_at,omitempty"`
	Cycles      int               `json:"cycles"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	MinSlippage *fixedpoint.Ratio `json:"min_slippage,omitempty"`
	MaxSlippage *fixedpoint.Ratio `json:"max_slippage,omitempty"`
	FirstBlock  uint64            `json:"first_block,omitempty"`
	LastBlock   uint64            `json:"last_block,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Summarize counts passes and failures and tracks the slippage range.
func Summarize(records []CycleRecord) Summary {
	var s Summary
	for i := range records {
		rec := &records[i]
		if s.RunID == "" {
			s.RunID = rec.RunID
			s.FirstBlock = rec.Block
		}
		s.LastBlock = rec.Block
		s.Cycles++

		if rec.WithinTolerance {
			s.Passed++
		} else {
			s.Failed++
		}

		ratio := rec.Slippage
		if s.MinSlippage == nil || ratio.Cmp(*s.MinSlippage) < 0 {
			s.MinSlippage = &ratio
		}
		if s.MaxSlippage == nil || ratio.Cmp(*s.MaxSlippage) > 0 {
			s.MaxSlippage = &ratio
		}
	}
	return s
}
