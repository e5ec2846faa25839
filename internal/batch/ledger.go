package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

// Conversion is what the conversion service reports for a triggered batch.
type Conversion struct {
	Ref    string
	Output fixedpoint.Value
	Basket types.Basket
	Marker types.Marker
}

// Converter is the external ledger/conversion service the batch ledger fronts.
// Implementations: paper.Converter (in-process) and contracts.BatchInteraction (on-chain).
type Converter interface {
	Deposit(ctx context.Context, kind Kind, amount fixedpoint.Value) error
	Trigger(ctx context.Context, kind Kind) (*Conversion, error)
	MoveUnclaimed(ctx context.Context, from Kind, ref string, amount fixedpoint.Value) error
	Claim(ctx context.Context, kind Kind, ref string, recipient string) error
}

// Ledger tracks the lifecycle of every batch one account takes part in.
// The collaborator is always called before local state changes, so a
// rejected call leaves the ledger untouched.
type Ledger struct {
	converter Converter
	account   string
	logger    *zap.Logger

	mu      sync.RWMutex
	batches map[uint64]*Batch
	pending map[Kind]*Batch
	nextID  uint64
}

// Config holds ledger configuration.
type Config struct {
	Converter Converter
	Account   string
	Logger    *zap.Logger
}

// New creates an empty ledger.
func New(cfg *Config) (*Ledger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Converter == nil {
		return nil, fmt.Errorf("converter cannot be nil")
	}
	if cfg.Account == "" {
		return nil, fmt.Errorf("account cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Ledger{
		converter: cfg.Converter,
		account:   cfg.Account,
		logger:    cfg.Logger,
		batches:   make(map[uint64]*Batch),
		pending:   make(map[Kind]*Batch),
		nextID:    1,
	}, nil
}

// Deposit adds amount to the current pending batch of the given kind and
// returns that batch's id.
func (l *Ledger) Deposit(ctx context.Context, kind Kind, amount fixedpoint.Value) (id uint64, err error) {
	if amount.IsZero() {
		return 0, fmt.Errorf("deposit into %s batch: amount must be positive", kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var input, share fixedpoint.Value
	if b := l.pending[kind]; b != nil {
		input, err = b.Input.Add(amount)
		if err != nil {
			return 0, fmt.Errorf("deposit into %s batch %d: %w", kind, b.ID, err)
		}
		share, err = b.shares[l.account].Add(amount)
		if err != nil {
			return 0, fmt.Errorf("deposit into %s batch %d: %w", kind, b.ID, err)
		}
	} else {
		input, share = amount, amount
	}

	err = l.converter.Deposit(ctx, kind, amount)
	if err != nil {
		return 0, fmt.Errorf("deposit into %s batch: %w: %w", kind, types.ErrConversionFailed, err)
	}

	b := l.pendingBatch(kind)
	b.Input = input
	b.shares[l.account] = share

	l.logger.Debug("batch-deposit",
		zap.Uint64("batch-id", b.ID),
		zap.Stringer("kind", kind),
		zap.Stringer("amount", amount),
		zap.Stringer("input", b.Input))

	return b.ID, nil
}

// TriggerMint converts the pending mint batch into a basket.
func (l *Ledger) TriggerMint(ctx context.Context) (Batch, error) {
	return l.triggerPending(ctx, Mint)
}

// TriggerRedeem converts the pending redeem batch back into the base asset.
func (l *Ledger) TriggerRedeem(ctx context.Context) (Batch, error) {
	return l.triggerPending(ctx, Redeem)
}

// Trigger converts a specific batch. It must be the pending batch of its kind.
func (l *Ledger) Trigger(ctx context.Context, id uint64) (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches[id]
	if !ok {
		return Batch{}, fmt.Errorf("trigger batch %d: not found: %w", id, types.ErrInvalidBatchState)
	}

	return l.trigger(ctx, b)
}

func (l *Ledger) triggerPending(ctx context.Context, kind Kind) (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.pending[kind]
	if b == nil {
		return Batch{}, fmt.Errorf("trigger %s: no pending batch: %w", kind, types.ErrInvalidBatchState)
	}

	return l.trigger(ctx, b)
}

func (l *Ledger) trigger(ctx context.Context, b *Batch) (Batch, error) {
	if b.State != Pending {
		return Batch{}, fmt.Errorf("trigger %s batch %d: state is %s: %w", b.Kind, b.ID, b.State, types.ErrInvalidBatchState)
	}
	if b.Input.IsZero() {
		return Batch{}, fmt.Errorf("trigger %s batch %d: batch is empty: %w", b.Kind, b.ID, types.ErrInvalidBatchState)
	}

	conv, err := l.converter.Trigger(ctx, b.Kind)
	if err != nil {
		BatchRejectionsTotal.WithLabelValues(b.Kind.String()).Inc()
		return Batch{}, fmt.Errorf("trigger %s batch %d: %w: %w", b.Kind, b.ID, types.ErrConversionFailed, err)
	}

	b.State = Triggered
	b.Output = conv.Output
	b.Unclaimed = conv.Output
	b.Basket = conv.Basket
	b.Marker = conv.Marker
	b.Ref = conv.Ref
	delete(l.pending, b.Kind)

	BatchTransitionsTotal.WithLabelValues(b.Kind.String(), Triggered.String()).Inc()

	l.logger.Info("batch-triggered",
		zap.Uint64("batch-id", b.ID),
		zap.Stringer("kind", b.Kind),
		zap.String("ref", b.Ref),
		zap.Stringer("input", b.Input),
		zap.Stringer("output", b.Output),
		zap.Uint64("block", b.Marker.Block))

	return b.clone(), nil
}

// MoveUnclaimed re-deposits part of the account's unclaimed share of a
// triggered batch into the pending batch of the opposite kind, without
// claiming it first. It returns the id of the receiving batch.
func (l *Ledger) MoveUnclaimed(ctx context.Context, previousID uint64, amount fixedpoint.Value) (id uint64, err error) {
	if amount.IsZero() {
		return 0, fmt.Errorf("move unclaimed from batch %d: amount must be positive", previousID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.batches[previousID]
	if !ok {
		return 0, fmt.Errorf("move unclaimed from batch %d: not found: %w", previousID, types.ErrInvalidBatchState)
	}
	if src.State != Triggered {
		return 0, fmt.Errorf("move unclaimed from batch %d: state is %s: %w", previousID, src.State, types.ErrInvalidBatchState)
	}

	share := src.shares[l.account]
	remainingShare, err := share.Sub(amount)
	if err != nil {
		return 0, fmt.Errorf("move unclaimed from batch %d: %s exceeds unclaimed share %s: %w", previousID, amount, share, err)
	}

	moved, err := src.proRata(amount)
	if err != nil {
		return 0, fmt.Errorf("move unclaimed from batch %d: %w", previousID, err)
	}
	remainingOutput, err := src.Unclaimed.Sub(moved)
	if err != nil {
		return 0, fmt.Errorf("move unclaimed from batch %d: %w", previousID, err)
	}

	destKind := src.Kind.Opposite()
	destInput, destShare := moved, moved
	if dest := l.pending[destKind]; dest != nil {
		destInput, err = dest.Input.Add(moved)
		if err != nil {
			return 0, fmt.Errorf("move unclaimed into batch %d: %w", dest.ID, err)
		}
		destShare, err = dest.shares[l.account].Add(moved)
		if err != nil {
			return 0, fmt.Errorf("move unclaimed into batch %d: %w", dest.ID, err)
		}
	}

	err = l.converter.MoveUnclaimed(ctx, src.Kind, src.Ref, amount)
	if err != nil {
		return 0, fmt.Errorf("move unclaimed from batch %d: %w: %w", previousID, types.ErrConversionFailed, err)
	}

	setShare(src, l.account, remainingShare)
	src.Unclaimed = remainingOutput
	l.settle(src)

	dest := l.pendingBatch(destKind)
	dest.Input = destInput
	dest.shares[l.account] = destShare

	l.logger.Debug("batch-unclaimed-moved",
		zap.Uint64("from-batch-id", src.ID),
		zap.Uint64("to-batch-id", dest.ID),
		zap.Stringer("amount", amount),
		zap.Stringer("moved-output", moved))

	return dest.ID, nil
}

// Claim pays out the account's share of a triggered batch to recipient.
func (l *Ledger) Claim(ctx context.Context, id uint64, recipient string) (claimed fixedpoint.Value, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.batches[id]
	if !ok {
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: not found: %w", id, types.ErrInvalidBatchState)
	}

	switch b.State {
	case Pending:
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: not triggered yet: %w", id, types.ErrInvalidBatchState)
	case Claimed:
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: already settled: %w", id, types.ErrNothingToClaim)
	}

	share := b.shares[l.account]
	if share.IsZero() {
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: no deposit for %s: %w", id, l.account, types.ErrNothingToClaim)
	}

	claimed, err = b.proRata(share)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: %w", id, err)
	}
	remaining, err := b.Unclaimed.Sub(claimed)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: %w", id, err)
	}

	err = l.converter.Claim(ctx, b.Kind, b.Ref, recipient)
	if err != nil {
		return fixedpoint.Zero(), fmt.Errorf("claim batch %d: %w: %w", id, types.ErrConversionFailed, err)
	}

	setShare(b, l.account, fixedpoint.Zero())
	b.Unclaimed = remaining
	b.Recipient = recipient
	l.settle(b)

	l.logger.Debug("batch-claimed",
		zap.Uint64("batch-id", b.ID),
		zap.Stringer("kind", b.Kind),
		zap.String("recipient", recipient),
		zap.Stringer("amount", claimed))

	return claimed, nil
}

// Batch returns a snapshot of a batch. Repeated reads of a triggered batch
// return the same basket.
func (l *Ledger) Batch(id uint64) (Batch, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.batches[id]
	if !ok {
		return Batch{}, false
	}
	return b.clone(), true
}

// Pending returns a snapshot of the current pending batch of a kind.
func (l *Ledger) Pending(kind Kind) (Batch, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.pending[kind]
	if !ok {
		return Batch{}, false
	}
	return b.clone(), true
}

// Account returns the depositor identity this ledger acts for.
func (l *Ledger) Account() string {
	return l.account
}

// pendingBatch returns the open batch of a kind, opening one if needed.
// Callers hold l.mu.
func (l *Ledger) pendingBatch(kind Kind) *Batch {
	if b := l.pending[kind]; b != nil {
		return b
	}

	b := &Batch{
		ID:     l.nextID,
		Kind:   kind,
		State:  Pending,
		shares: make(map[string]fixedpoint.Value),
	}
	l.nextID++
	l.batches[b.ID] = b
	l.pending[kind] = b

	BatchTransitionsTotal.WithLabelValues(kind.String(), Pending.String()).Inc()

	return b
}

// settle closes a triggered batch once no share is outstanding.
func (l *Ledger) settle(b *Batch) {
	if len(b.shares) > 0 {
		return
	}

	b.State = Claimed
	BatchTransitionsTotal.WithLabelValues(b.Kind.String(), Claimed.String()).Inc()
}

func setShare(b *Batch, account string, v fixedpoint.Value) {
	if v.IsZero() {
		delete(b.shares, account)
		return
	}
	b.shares[account] = v
}
