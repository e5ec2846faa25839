package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeConverter mints one basket token per two units of input and redeems
// at the reverse rate.
type fakeConverter struct {
	deposited map[Kind]fixedpoint.Value
	triggers  int
	moves     int
	claims    int

	failDeposit bool
	failTrigger bool
	failMove    bool
	failClaim   bool
}

func newFakeConverter() *fakeConverter {
	return &fakeConverter{deposited: make(map[Kind]fixedpoint.Value)}
}

func (f *fakeConverter) Deposit(_ context.Context, kind Kind, amount fixedpoint.Value) error {
	if f.failDeposit {
		return errors.New("deposit reverted")
	}
	sum, err := f.deposited[kind].Add(amount)
	if err != nil {
		return err
	}
	f.deposited[kind] = sum
	return nil
}

func (f *fakeConverter) Trigger(_ context.Context, kind Kind) (*Conversion, error) {
	if f.failTrigger {
		return nil, errors.New("trigger reverted")
	}
	f.triggers++

	in := f.deposited[kind]
	f.deposited[kind] = fixedpoint.Zero()

	conv := &Conversion{
		Ref:    fmt.Sprintf("0x%02d", f.triggers),
		Marker: types.Marker{Block: uint64(100 + f.triggers)},
	}
	if kind == Mint {
		out, err := in.QuoUint64(2)
		if err != nil {
			return nil, err
		}
		conv.Output = out
		conv.Basket, err = types.NewBasket([]types.Holding{
			{Component: "a", Quantity: out},
			{Component: "b", Quantity: out},
		})
		if err != nil {
			return nil, err
		}
		return conv, nil
	}

	out, err := in.MulUint64(2)
	if err != nil {
		return nil, err
	}
	conv.Output = out
	return conv, nil
}

func (f *fakeConverter) MoveUnclaimed(_ context.Context, _ Kind, _ string, _ fixedpoint.Value) error {
	if f.failMove {
		return errors.New("move reverted")
	}
	f.moves++
	return nil
}

func (f *fakeConverter) Claim(_ context.Context, _ Kind, _ string, _ string) error {
	if f.failClaim {
		return errors.New("claim reverted")
	}
	f.claims++
	return nil
}

func newLedger(t *testing.T, conv Converter) *Ledger {
	t.Helper()
	l, err := New(&Config{Converter: conv, Account: "sim", Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return l
}

func v(s string) fixedpoint.Value {
	return fixedpoint.MustParse(s)
}

func TestNew_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	conv := newFakeConverter()

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"missing converter", &Config{Account: "a", Logger: logger}},
		{"missing account", &Config{Converter: conv, Logger: logger}},
		{"missing logger", &Config{Converter: conv, Account: "a"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestKind_Opposite(t *testing.T) {
	assert.Equal(t, Redeem, Mint.Opposite())
	assert.Equal(t, Mint, Redeem.Opposite())
	assert.Equal(t, "mint", Mint.String())
	assert.Equal(t, "triggered", Triggered.String())
}

func TestDeposit_AccumulatesIntoPendingBatch(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFakeConverter())

	id1, err := l.Deposit(ctx, Mint, v("40"))
	require.NoError(t, err)
	id2, err := l.Deposit(ctx, Mint, v("60"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	b, ok := l.Pending(Mint)
	require.True(t, ok)
	assert.Equal(t, "100", b.Input.String())
	assert.Equal(t, "100", b.Share("sim").String())
	assert.Equal(t, Pending, b.State)

	_, ok = l.Pending(Redeem)
	assert.False(t, ok)
}

func TestDeposit_RejectsZero(t *testing.T) {
	l := newLedger(t, newFakeConverter())

	_, err := l.Deposit(context.Background(), Mint, fixedpoint.Zero())
	require.Error(t, err)

	_, ok := l.Pending(Mint)
	assert.False(t, ok)
}

func TestDeposit_ConverterFailureLeavesLedgerUntouched(t *testing.T) {
	conv := newFakeConverter()
	conv.failDeposit = true
	l := newLedger(t, conv)

	_, err := l.Deposit(context.Background(), Mint, v("10"))
	require.ErrorIs(t, err, types.ErrConversionFailed)

	_, ok := l.Pending(Mint)
	assert.False(t, ok)
}

func TestTriggerMint_TransitionsAndClearsPending(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFakeConverter())

	id, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)

	b, err := l.TriggerMint(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, Triggered, b.State)
	assert.Equal(t, "50", b.Output.String())
	assert.Equal(t, "50", b.Unclaimed.String())
	assert.Equal(t, 2, b.Basket.Len())
	assert.Equal(t, uint64(101), b.Marker.Block)

	_, ok := l.Pending(Mint)
	assert.False(t, ok)

	next, err := l.Deposit(ctx, Mint, v("1"))
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestTrigger_Twice(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	id, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)

	_, err = l.Trigger(ctx, id)
	require.NoError(t, err)

	_, err = l.Trigger(ctx, id)
	require.ErrorIs(t, err, types.ErrInvalidBatchState)

	_, err = l.TriggerMint(ctx)
	require.ErrorIs(t, err, types.ErrInvalidBatchState)

	assert.Equal(t, 1, conv.triggers)
}

func TestTrigger_UnknownBatch(t *testing.T) {
	l := newLedger(t, newFakeConverter())

	_, err := l.Trigger(context.Background(), 42)
	require.ErrorIs(t, err, types.ErrInvalidBatchState)
}

func TestTrigger_ConverterFailureKeepsBatchPending(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	_, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)

	conv.failTrigger = true
	_, err = l.TriggerMint(ctx)
	require.ErrorIs(t, err, types.ErrConversionFailed)

	b, ok := l.Pending(Mint)
	require.True(t, ok)
	assert.Equal(t, Pending, b.State)

	conv.failTrigger = false
	_, err = l.TriggerMint(ctx)
	require.NoError(t, err)
}

func TestBatch_BasketIsStableAcrossReads(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFakeConverter())

	id, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)
	_, err = l.TriggerMint(ctx)
	require.NoError(t, err)

	first, ok := l.Batch(id)
	require.True(t, ok)
	second, ok := l.Batch(id)
	require.True(t, ok)
	assert.Equal(t, first.Basket.Holdings(), second.Basket.Holdings())

	_, ok = l.Batch(id + 10)
	assert.False(t, ok)
}

func TestMoveUnclaimed_FeedsOppositeBatch(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	mintID, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)
	_, err = l.TriggerMint(ctx)
	require.NoError(t, err)

	redeemID, err := l.MoveUnclaimed(ctx, mintID, v("100"))
	require.NoError(t, err)
	assert.NotEqual(t, mintID, redeemID)

	src, ok := l.Batch(mintID)
	require.True(t, ok)
	assert.Equal(t, Claimed, src.State)
	assert.True(t, src.Unclaimed.IsZero())

	dest, ok := l.Pending(Redeem)
	require.True(t, ok)
	assert.Equal(t, redeemID, dest.ID)
	assert.Equal(t, "50", dest.Input.String())
	assert.Equal(t, 1, conv.moves)
}

func TestMoveUnclaimed_Partial(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFakeConverter())

	mintID, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)
	_, err = l.TriggerMint(ctx)
	require.NoError(t, err)

	_, err = l.MoveUnclaimed(ctx, mintID, v("30"))
	require.NoError(t, err)

	src, _ := l.Batch(mintID)
	assert.Equal(t, Triggered, src.State)
	assert.Equal(t, "70", src.Share("sim").String())
	assert.Equal(t, "35", src.Unclaimed.String())

	dest, _ := l.Pending(Redeem)
	assert.Equal(t, "15", dest.Input.String())

	claimed, err := l.Claim(ctx, mintID, "0xbeef")
	require.NoError(t, err)
	assert.Equal(t, "35", claimed.String())

	src, _ = l.Batch(mintID)
	assert.Equal(t, Claimed, src.State)
}

func TestMoveUnclaimed_ExceedingShareIsRejectedWithoutMutation(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	mintID, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)
	before, err := l.TriggerMint(ctx)
	require.NoError(t, err)

	_, err = l.MoveUnclaimed(ctx, mintID, v("100.000000000000000001"))
	require.ErrorIs(t, err, types.ErrUnderflow)

	after, _ := l.Batch(mintID)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.Unclaimed, after.Unclaimed)
	assert.Equal(t, before.Share("sim"), after.Share("sim"))

	_, ok := l.Pending(Redeem)
	assert.False(t, ok)
	assert.Zero(t, conv.moves)
}

func TestMoveUnclaimed_InvalidStates(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFakeConverter())

	_, err := l.MoveUnclaimed(ctx, 9, v("1"))
	require.ErrorIs(t, err, types.ErrInvalidBatchState)

	pendingID, err := l.Deposit(ctx, Mint, v("10"))
	require.NoError(t, err)
	_, err = l.MoveUnclaimed(ctx, pendingID, v("1"))
	require.ErrorIs(t, err, types.ErrInvalidBatchState)

	_, err = l.MoveUnclaimed(ctx, pendingID, fixedpoint.Zero())
	require.Error(t, err)
}

func TestMoveUnclaimed_ConverterFailureLeavesLedgerUntouched(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	mintID, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)
	_, err = l.TriggerMint(ctx)
	require.NoError(t, err)

	conv.failMove = true
	_, err = l.MoveUnclaimed(ctx, mintID, v("100"))
	require.ErrorIs(t, err, types.ErrConversionFailed)

	src, _ := l.Batch(mintID)
	assert.Equal(t, Triggered, src.State)
	assert.Equal(t, "100", src.Share("sim").String())
	_, ok := l.Pending(Redeem)
	assert.False(t, ok)
}

func TestClaim_FullCycle(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	mintID, err := l.Deposit(ctx, Mint, v("100"))
	require.NoError(t, err)
	_, err = l.TriggerMint(ctx)
	require.NoError(t, err)

	redeemID, err := l.MoveUnclaimed(ctx, mintID, v("100"))
	require.NoError(t, err)

	redeemed, err := l.TriggerRedeem(ctx)
	require.NoError(t, err)
	assert.Equal(t, redeemID, redeemed.ID)
	assert.Equal(t, "100", redeemed.Output.String())

	claimed, err := l.Claim(ctx, redeemID, "0xbeef")
	require.NoError(t, err)
	assert.Equal(t, "100", claimed.String())

	b, _ := l.Batch(redeemID)
	assert.Equal(t, Claimed, b.State)
	assert.Equal(t, "0xbeef", b.Recipient)
	assert.Equal(t, 1, conv.claims)

	_, err = l.Claim(ctx, redeemID, "0xbeef")
	require.ErrorIs(t, err, types.ErrNothingToClaim)
}

func TestClaim_Errors(t *testing.T) {
	ctx := context.Background()
	conv := newFakeConverter()
	l := newLedger(t, conv)

	_, err := l.Claim(ctx, 1, "x")
	require.ErrorIs(t, err, types.ErrInvalidBatchState)

	id, err := l.Deposit(ctx, Redeem, v("5"))
	require.NoError(t, err)
	_, err = l.Claim(ctx, id, "x")
	require.ErrorIs(t, err, types.ErrInvalidBatchState)

	_, err = l.TriggerRedeem(ctx)
	require.NoError(t, err)

	conv.failClaim = true
	_, err = l.Claim(ctx, id, "x")
	require.ErrorIs(t, err, types.ErrConversionFailed)

	b, _ := l.Batch(id)
	assert.Equal(t, Triggered, b.State)
	assert.Equal(t, "10", b.Unclaimed.String())
}

func TestSnapshot_IsolatedFromLedger(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, newFakeConverter())

	id, err := l.Deposit(ctx, Mint, v("10"))
	require.NoError(t, err)

	snap, _ := l.Batch(id)
	snap.shares["sim"] = v("999")
	snap.State = Claimed

	fresh, _ := l.Batch(id)
	assert.Equal(t, "10", fresh.Share("sim").String())
	assert.Equal(t, Pending, fresh.State)
}
