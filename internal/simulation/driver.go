package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mselser95/basket-slippage/internal/batch"
	"github.com/mselser95/basket-slippage/internal/slippage"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

// State is the driver's position in the cycle state machine.
type State int32

const (
	Idle State = iota
	Depositing
	Converting
	Valuing
	Recording
	Redeeming
	Advancing
	Finished
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Depositing:
		return "depositing"
	case Converting:
		return "converting"
	case Valuing:
		return "valuing"
	case Recording:
		return "recording"
	case Redeeming:
		return "redeeming"
	case Advancing:
		return "advancing"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Finished || s == Aborted
}

// BlockSource reports and advances the simulation's notion of time.
type BlockSource interface {
	CurrentMarker(ctx context.Context) (types.Marker, error)
	Advance(ctx context.Context, blocks uint64) (types.Marker, error)
}

// ReferencePricer prices the base asset in the reference currency.
type ReferencePricer interface {
	ReferencePrice(ctx context.Context) (fixedpoint.Value, error)
}

// Valuer values a basket in the reference currency.
type Valuer interface {
	ValueOf(ctx context.Context, basket types.Basket) (fixedpoint.Value, error)
}

// Storage exports cycle records.
type Storage interface {
	StoreCycle(ctx context.Context, rec *CycleRecord) error
	Close() error
}

// Driver runs mint/value/redeem cycles over a block range and records the
// slippage of each.
type Driver struct {
	params    Params
	ledger    *batch.Ledger
	valuer    Valuer
	reference ReferencePricer
	blocks    BlockSource
	storage   Storage
	evaluator *slippage.Evaluator
	logger    *zap.Logger

	state   atomic.Int32
	mu      sync.RWMutex
	current *Run
}

// Config holds driver configuration. Storage is optional.
type Config struct {
	Params    Params
	Ledger    *batch.Ledger
	Valuer    Valuer
	Reference ReferencePricer
	Blocks    BlockSource
	Storage   Storage
	Logger    *zap.Logger
}

// New validates the configuration and creates an idle driver.
func New(cfg *Config) (*Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Valuer == nil {
		return nil, fmt.Errorf("valuer cannot be nil")
	}
	if cfg.Reference == nil {
		return nil, fmt.Errorf("reference pricer cannot be nil")
	}
	if cfg.Blocks == nil {
		return nil, fmt.Errorf("block source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	err := cfg.Params.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate params: %w", err)
	}

	return &Driver{
		params:    cfg.Params,
		ledger:    cfg.Ledger,
		valuer:    cfg.Valuer,
		reference: cfg.Reference,
		blocks:    cfg.Blocks,
		storage:   cfg.Storage,
		evaluator: slippage.New(cfg.Params.MaxSlippage),
		logger:    cfg.Logger,
	}, nil
}

// State returns the current state.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// CurrentRun returns the run in progress or the last finished one, nil before Run.
func (d *Driver) CurrentRun() *Run {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.current
}

// Params returns the run parameters.
func (d *Driver) Params() Params {
	return d.params
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
}

// Run executes cycles until the end block or the cycle cap is reached.
// On failure the partial run is finalized and returned with a *types.CycleError.
func (d *Driver) Run(ctx context.Context) (*Run, error) {
	if d.State() != Idle {
		return nil, fmt.Errorf("driver already used: state is %s", d.State())
	}

	run := NewRun(d.params)
	d.mu.Lock()
	d.current = run
	d.mu.Unlock()

	d.logger.Info("simulation-run-starting",
		zap.String("run-id", run.ID),
		zap.Stringer("input-amount", d.params.InputAmount),
		zap.Stringer("max-slippage", d.params.MaxSlippage),
		zap.Uint64("start-block", d.params.StartBlock),
		zap.Uint64("end-block", d.params.EndBlock),
		zap.Int("max-cycles", d.params.MaxCycles))

	marker, err := d.seek(ctx)
	if err != nil {
		return d.abort(run, &types.CycleError{Cycle: 0, Stage: Advancing.String(), Err: err})
	}

	for cycle := 1; marker.Block < d.params.EndBlock; cycle++ {
		if d.params.MaxCycles > 0 && cycle > d.params.MaxCycles {
			break
		}

		marker, err = d.cycle(ctx, run, cycle, marker)
		if err != nil {
			return d.abort(run, err)
		}
	}

	run.Finalize(nil)
	d.setState(Finished)

	summary := run.Summary()
	d.logger.Info("simulation-run-finished",
		zap.String("run-id", run.ID),
		zap.Int("cycles", summary.Cycles),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Uint64("last-block", marker.Block))

	return run, nil
}

// seek reads the current marker and fast-forwards to the start block if behind.
func (d *Driver) seek(ctx context.Context) (types.Marker, error) {
	d.setState(Advancing)

	marker, err := d.blocks.CurrentMarker(ctx)
	if err != nil {
		return types.Marker{}, fmt.Errorf("read current marker: %w", err)
	}

	if marker.Block < d.params.StartBlock {
		marker, err = d.blocks.Advance(ctx, d.params.StartBlock-marker.Block)
		if err != nil {
			return types.Marker{}, fmt.Errorf("fast-forward to block %d: %w", d.params.StartBlock, err)
		}
	}

	CurrentBlock.Set(float64(marker.Block))
	return marker, nil
}

// cycle runs one full deposit-to-claim round and returns the marker after advancing.
func (d *Driver) cycle(ctx context.Context, run *Run, n int, marker types.Marker) (types.Marker, error) {
	start := time.Now()
	stage := Depositing

	fail := func(err error) (types.Marker, error) {
		return marker, &types.CycleError{Cycle: n, Stage: stage.String(), Marker: marker, Err: err}
	}
	enter := func(s State) {
		stage = s
		d.setState(s)
	}

	enter(Depositing)
	err := ctx.Err()
	if err != nil {
		return fail(err)
	}

	refPrice, err := d.referencePrice(ctx)
	if err != nil {
		return fail(err)
	}

	mintID, err := d.ledger.Deposit(ctx, batch.Mint, d.params.InputAmount)
	if err != nil {
		return fail(err)
	}

	enter(Converting)
	minted, err := d.ledger.TriggerMint(ctx)
	if err != nil {
		return fail(err)
	}

	inputValue, err := d.params.InputAmount.Mul(refPrice)
	if err != nil {
		return fail(fmt.Errorf("value input: %w", err))
	}

	enter(Valuing)
	outputValue, err := d.valuer.ValueOf(ctx, minted.Basket)
	if err != nil {
		return fail(err)
	}

	enter(Recording)
	result, err := d.evaluator.Evaluate(inputValue, outputValue)
	if err != nil {
		return fail(err)
	}

	// the conversion service's own marker wins when it reports one
	at := marker
	if minted.Marker.Block != 0 {
		at = minted.Marker
	}

	rec := CycleRecord{
		Cycle:           n,
		Block:           at.Block,
		Timestamp:       at.Timestamp,
		MintBatchID:     mintID,
		InputAmount:     d.params.InputAmount,
		InputValue:      inputValue,
		OutputAmount:    minted.Output,
		OutputValue:     outputValue,
		Slippage:        result.Ratio,
		WithinTolerance: result.WithinTolerance,
	}
	err = run.Append(rec)
	if err != nil {
		return fail(err)
	}
	rec.RunID = run.ID
	d.export(ctx, &rec)

	enter(Redeeming)
	_, err = d.ledger.MoveUnclaimed(ctx, mintID, d.params.InputAmount)
	if err != nil {
		return fail(err)
	}

	redeemed, err := d.ledger.TriggerRedeem(ctx)
	if err != nil {
		return fail(err)
	}

	_, err = d.ledger.Claim(ctx, redeemed.ID, d.ledger.Account())
	if err != nil {
		return fail(err)
	}

	enter(Advancing)
	next, err := d.blocks.Advance(ctx, d.params.AdvanceBlocks)
	if err != nil {
		return fail(fmt.Errorf("advance %d blocks: %w", d.params.AdvanceBlocks, err))
	}
	if next.Block <= marker.Block {
		return fail(fmt.Errorf("block source went from %d to %d: marker must increase", marker.Block, next.Block))
	}

	CycleDurationSeconds.Observe(time.Since(start).Seconds())
	CurrentBlock.Set(float64(next.Block))

	return next, nil
}

func (d *Driver) referencePrice(ctx context.Context) (fixedpoint.Value, error) {
	price, err := d.reference.ReferencePrice(ctx)
	if err == nil {
		return price, nil
	}
	if errors.Is(err, types.ErrPriceUnavailable) {
		return fixedpoint.Zero(), err
	}
	return fixedpoint.Zero(), &types.PriceError{Source: "reference", Err: err}
}

// export hands the record to the sinks. Sink failures do not abort the run.
func (d *Driver) export(ctx context.Context, rec *CycleRecord) {
	outcome := "within"
	if !rec.WithinTolerance {
		outcome = "exceeded"
	}
	CyclesTotal.WithLabelValues(outcome).Inc()
	LastSlippageRatio.Set(rec.Slippage.Float64())

	d.logger.Info("simulation-cycle-recorded",
		zap.Int("cycle", rec.Cycle),
		zap.Uint64("block", rec.Block),
		zap.Time("block-time", rec.Timestamp),
		zap.Stringer("input-amount", rec.InputAmount),
		zap.Stringer("input-value", rec.InputValue),
		zap.Stringer("output-amount", rec.OutputAmount),
		zap.Stringer("output-value", rec.OutputValue),
		zap.Stringer("slippage", rec.Slippage),
		zap.Bool("within-tolerance", rec.WithinTolerance))

	if d.storage == nil {
		return
	}

	err := d.storage.StoreCycle(ctx, rec)
	if err != nil {
		StorageFailuresTotal.Inc()
		d.logger.Error("cycle-record-export-failed",
			zap.Int("cycle", rec.Cycle),
			zap.Error(err))
	}
}

func (d *Driver) abort(run *Run, err error) (*Run, error) {
	run.Finalize(err)
	d.setState(Aborted)

	stage := "unknown"
	var cycleErr *types.CycleError
	if errors.As(err, &cycleErr) {
		stage = cycleErr.Stage
	}
	RunsAbortedTotal.WithLabelValues(stage).Inc()

	d.logger.Error("simulation-run-aborted",
		zap.String("run-id", run.ID),
		zap.Int("records", run.Len()),
		zap.String("stage", stage),
		zap.Error(err))

	return run, err
}
