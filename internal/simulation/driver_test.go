package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mselser95/basket-slippage/internal/batch"
	"github.com/mselser95/basket-slippage/internal/pricing"
	"github.com/mselser95/basket-slippage/internal/valuation"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// oneToOneConverter mints one basket token per unit of input and backs each
// token with one unit of components "a" and "b".
type oneToOneConverter struct {
	pending  map[batch.Kind]fixedpoint.Value
	block    uint64
	haircut  fixedpoint.Value
	failMint bool

	reportMarkers bool
}

func newOneToOneConverter() *oneToOneConverter {
	return &oneToOneConverter{pending: make(map[batch.Kind]fixedpoint.Value)}
}

func (c *oneToOneConverter) Deposit(_ context.Context, kind batch.Kind, amount fixedpoint.Value) error {
	sum, err := c.pending[kind].Add(amount)
	c.pending[kind] = sum
	return err
}

func (c *oneToOneConverter) Trigger(_ context.Context, kind batch.Kind) (*batch.Conversion, error) {
	if kind == batch.Mint && c.failMint {
		return nil, errors.New("execution reverted")
	}
	c.block++
	in := c.pending[kind]
	c.pending[kind] = fixedpoint.Zero()

	out, err := in.Sub(c.haircut)
	if err != nil {
		return nil, err
	}

	conv := &batch.Conversion{Ref: fmt.Sprintf("%s-%d", kind, c.block), Output: out}
	if c.reportMarkers {
		conv.Marker = types.Marker{Block: 5000 + c.block}
	}
	if kind == batch.Mint {
		conv.Basket, err = types.NewBasket([]types.Holding{
			{Component: "a", Quantity: out},
			{Component: "b", Quantity: out},
		})
		if err != nil {
			return nil, err
		}
	}
	return conv, nil
}

func (c *oneToOneConverter) MoveUnclaimed(_ context.Context, _ batch.Kind, _ string, _ fixedpoint.Value) error {
	return nil
}

func (c *oneToOneConverter) Claim(_ context.Context, _ batch.Kind, _ string, _ string) error {
	return nil
}

type fakeBlocks struct {
	block    uint64
	genesis  time.Time
	advances []uint64
	stuck    bool
}

func (b *fakeBlocks) marker() types.Marker {
	return types.Marker{Block: b.block, Timestamp: b.genesis.Add(time.Duration(b.block) * 13 * time.Second)}
}

func (b *fakeBlocks) CurrentMarker(_ context.Context) (types.Marker, error) {
	return b.marker(), nil
}

func (b *fakeBlocks) Advance(_ context.Context, n uint64) (types.Marker, error) {
	b.advances = append(b.advances, n)
	if !b.stuck {
		b.block += n
	}
	return b.marker(), nil
}

type fixedReference struct {
	price fixedpoint.Value
	err   error
}

func (r fixedReference) ReferencePrice(_ context.Context) (fixedpoint.Value, error) {
	return r.price, r.err
}

type failingStorage struct {
	calls int
}

func (s *failingStorage) StoreCycle(_ context.Context, _ *CycleRecord) error {
	s.calls++
	return errors.New("disk full")
}

func (s *failingStorage) Close() error {
	return nil
}

type harness struct {
	params    Params
	converter *oneToOneConverter
	blocks    *fakeBlocks
	reference ReferencePricer
	pool      pricing.Source
	share     pricing.Source
	storage   Storage
}

func newHarness() *harness {
	half := fixedpoint.MustParse("0.5")
	return &harness{
		params: Params{
			InputAmount:   fixedpoint.FromUnits(100),
			MaxSlippage:   fixedpoint.MustParse("0.005"),
			StartBlock:    1000,
			EndBlock:      1105,
			AdvanceBlocks: 35,
		},
		converter: newOneToOneConverter(),
		blocks:    &fakeBlocks{block: 990, genesis: time.Unix(1_600_000_000, 0).UTC()},
		reference: fixedReference{price: fixedpoint.One()},
		pool: pricing.SourceFunc(func(context.Context, types.ComponentID) (fixedpoint.Value, error) {
			return half, nil
		}),
		share: pricing.SourceFunc(func(context.Context, types.ComponentID) (fixedpoint.Value, error) {
			return fixedpoint.One(), nil
		}),
		storage: NewMockStorage(),
	}
}

func (h *harness) driver(t *testing.T) *Driver {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ledger, err := batch.New(&batch.Config{Converter: h.converter, Account: "0xsim", Logger: logger})
	require.NoError(t, err)

	agg, err := pricing.New(&pricing.Config{PoolSource: h.pool, ShareSource: h.share, Logger: logger})
	require.NoError(t, err)

	val, err := valuation.New(&valuation.Config{Oracle: agg, Concurrency: 2, Logger: logger})
	require.NoError(t, err)

	d, err := New(&Config{
		Params:    h.params,
		Ledger:    ledger,
		Valuer:    val,
		Reference: h.reference,
		Blocks:    h.blocks,
		Storage:   h.storage,
		Logger:    logger,
	})
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	h := newHarness()
	logger := zaptest.NewLogger(t)
	ledger, err := batch.New(&batch.Config{Converter: h.converter, Account: "0xsim", Logger: logger})
	require.NoError(t, err)

	_, err = New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Ledger: ledger, Logger: logger})
	assert.Error(t, err)

	bad := h.params
	bad.EndBlock = bad.StartBlock
	_, err = New(&Config{
		Params:    bad,
		Ledger:    ledger,
		Valuer:    valuerFunc(nil),
		Reference: h.reference,
		Blocks:    h.blocks,
		Logger:    logger,
	})
	require.ErrorIs(t, err, types.ErrInvalidConfiguration)
}

type valuerFunc func(ctx context.Context, b types.Basket) (fixedpoint.Value, error)

func (f valuerFunc) ValueOf(ctx context.Context, b types.Basket) (fixedpoint.Value, error) {
	return f(ctx, b)
}

func TestRun_FullRange(t *testing.T) {
	h := newHarness()
	d := h.driver(t)
	assert.Equal(t, Idle, d.State())

	run, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Finished, d.State())
	assert.Equal(t, StatusFinished, run.Status())
	assert.Same(t, run, d.CurrentRun())

	// fast-forward 10, then cycles at 1000, 1035, 1070
	assert.Equal(t, []uint64{10, 35, 35, 35}, h.blocks.advances)

	records := run.Records()
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i+1, rec.Cycle)
		assert.Equal(t, run.ID, rec.RunID)
		assert.Equal(t, "100", rec.InputValue.String())
		assert.Equal(t, "100", rec.OutputValue.String())
		assert.True(t, rec.Slippage.IsZero())
		assert.True(t, rec.WithinTolerance)
	}
	assert.Equal(t, uint64(1000), records[0].Block)
	assert.Equal(t, uint64(1070), records[2].Block)

	mock, ok := h.storage.(*MockStorage)
	require.True(t, ok)
	assert.Len(t, mock.GetRecords(), 3)

	summary := run.Summary()
	assert.Equal(t, 3, summary.Cycles)
	assert.Equal(t, 3, summary.Passed)
	assert.Empty(t, summary.Error)
}

func TestRun_RecordsConversionMarker(t *testing.T) {
	h := newHarness()
	h.converter.reportMarkers = true
	h.params.MaxCycles = 2
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.NoError(t, err)

	records := run.Records()
	require.Len(t, records, 2)
	assert.Equal(t, uint64(5001), records[0].Block)
	assert.Equal(t, uint64(5003), records[1].Block)
}

func TestRun_CycleCap(t *testing.T) {
	h := newHarness()
	h.params.MaxCycles = 2
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, run.Len())
}

func TestRun_SlippageOutsideTolerance(t *testing.T) {
	h := newHarness()
	h.converter.haircut = fixedpoint.FromUnits(1)
	h.params.MaxCycles = 1
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.NoError(t, err)

	records := run.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "99", records[0].OutputValue.String())
	assert.Equal(t, "0.010101010101010101", records[0].Slippage.String())
	assert.False(t, records[0].WithinTolerance)
	assert.Equal(t, 1, run.Summary().Failed)
}

func TestRun_PoolSourceDropsOutInSecondCycle(t *testing.T) {
	h := newHarness()
	var calls atomic.Int32
	half := fixedpoint.MustParse("0.5")
	h.pool = pricing.SourceFunc(func(context.Context, types.ComponentID) (fixedpoint.Value, error) {
		// two components per cycle
		if calls.Add(1) > 2 {
			return fixedpoint.Zero(), errors.New("pool paused")
		}
		return half, nil
	})
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, types.ErrPriceUnavailable)

	var cycleErr *types.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, 2, cycleErr.Cycle)
	assert.Equal(t, "valuing", cycleErr.Stage)
	assert.Equal(t, uint64(1035), cycleErr.Marker.Block)

	require.NotNil(t, run)
	assert.Equal(t, 1, run.Len())
	assert.Equal(t, StatusAborted, run.Status())
	assert.Equal(t, Aborted, d.State())
	assert.ErrorIs(t, run.Err(), types.ErrPriceUnavailable)
	assert.ErrorIs(t, run.Append(CycleRecord{}), ErrRunFinalized)
}

func TestRun_ReferencePriceFailure(t *testing.T) {
	h := newHarness()
	h.reference = fixedReference{err: errors.New("rpc timeout")}
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.ErrorIs(t, err, types.ErrPriceUnavailable)

	var priceErr *types.PriceError
	require.ErrorAs(t, err, &priceErr)
	assert.Equal(t, "reference", priceErr.Source)
	assert.Zero(t, run.Len())
}

func TestRun_ConversionFailureAborts(t *testing.T) {
	h := newHarness()
	h.converter.failMint = true
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.ErrorIs(t, err, types.ErrConversionFailed)

	var cycleErr *types.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "converting", cycleErr.Stage)
	assert.Zero(t, run.Len())
}

func TestRun_DegenerateValuationAborts(t *testing.T) {
	h := newHarness()
	h.pool = pricing.SourceFunc(func(context.Context, types.ComponentID) (fixedpoint.Value, error) {
		return fixedpoint.Zero(), nil
	})
	d := h.driver(t)

	_, err := d.Run(context.Background())
	require.ErrorIs(t, err, types.ErrDegenerateValuation)
}

func TestRun_StorageFailureIsNotFatal(t *testing.T) {
	h := newHarness()
	sink := &failingStorage{}
	h.storage = sink
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, run.Len())
	assert.Equal(t, 3, sink.calls)
}

func TestRun_StuckBlockSourceAborts(t *testing.T) {
	h := newHarness()
	h.blocks.block = 1000
	h.blocks.stuck = true
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, run.Len())

	var cycleErr *types.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "advancing", cycleErr.Stage)
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness()
	d := h.driver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, run.Len())
}

func TestRun_StartsPastEndBlock(t *testing.T) {
	h := newHarness()
	h.blocks.block = 2000
	d := h.driver(t)

	run, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, run.Len())
	assert.Empty(t, h.blocks.advances)
}

func TestRun_DriverIsSingleUse(t *testing.T) {
	h := newHarness()
	h.params.MaxCycles = 1
	d := h.driver(t)

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	require.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "valuing", Valuing.String())
	assert.True(t, Finished.Terminal())
	assert.True(t, Aborted.Terminal())
	assert.False(t, Recording.Terminal())
}
