package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/basket-slippage/internal/batch"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

// Batch type values of the batch interaction contract.
const (
	batchTypeMint   uint8 = 0
	batchTypeRedeem uint8 = 1
)

// claimableTokenBalance is the position of the output amount in batches().
const claimableTokenBalance = 5

// MarkerSource reports the current chain head. *chain.Client implements it.
type MarkerSource interface {
	CurrentMarker(ctx context.Context) (types.Marker, error)
}

// BatchInteraction drives the on-chain batch interaction contract and
// implements batch.Converter.
type BatchInteraction struct {
	caller    Caller
	blocks    MarkerSource
	registry  *Registry
	address   common.Address
	issuance  common.Address
	setToken  common.Address
	baseToken common.Address
	allowance fixedpoint.Value
	logger    *zap.Logger
}

// BatchInteractionConfig holds the contract addresses and collaborators.
type BatchInteractionConfig struct {
	Caller    Caller
	Blocks    MarkerSource
	Registry  *Registry
	Address   common.Address // batch interaction contract
	Issuance  common.Address // basic issuance module
	SetToken  common.Address // basket token
	BaseToken common.Address // deposited base asset
	// Allowance is re-granted on the base token before every mint deposit,
	// since transferFrom spends it. Zero grants exactly the deposit amount.
	Allowance fixedpoint.Value
	Logger    *zap.Logger
}

// NewBatchInteraction creates the on-chain converter.
func NewBatchInteraction(cfg *BatchInteractionConfig) (*BatchInteraction, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Caller == nil {
		return nil, fmt.Errorf("caller cannot be nil")
	}
	if cfg.Blocks == nil {
		return nil, fmt.Errorf("marker source cannot be nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("batch interaction address cannot be zero: %w", types.ErrInvalidConfiguration)
	}

	return &BatchInteraction{
		caller:    cfg.Caller,
		blocks:    cfg.Blocks,
		registry:  cfg.Registry,
		address:   cfg.Address,
		issuance:  cfg.Issuance,
		setToken:  cfg.SetToken,
		baseToken: cfg.BaseToken,
		allowance: cfg.Allowance,
		logger:    cfg.Logger,
	}, nil
}

// Approve resets and then grants the batch interaction contract an allowance
// of amount on both the base token and the basket token.
func (b *BatchInteraction) Approve(ctx context.Context, amount fixedpoint.Value) error {
	for _, token := range []common.Address{b.baseToken, b.setToken} {
		err := b.approve(ctx, token, amount)
		if err != nil {
			return err
		}
	}

	b.logger.Debug("batch-allowances-set", zap.Stringer("amount", amount))
	return nil
}

// approve resets the allowance on token to zero before granting amount.
func (b *BatchInteraction) approve(ctx context.Context, token common.Address, amount fixedpoint.Value) error {
	for _, allowance := range []*big.Int{new(big.Int), amount.Raw()} {
		_, err := transact(ctx, b.caller, erc20Contract, token, "approve", b.address, allowance)
		if err != nil {
			return fmt.Errorf("approve %s on %s: %w", allowance, token.Hex(), err)
		}
	}
	return nil
}

// refreshMintAllowance re-grants the base token allowance so it covers amount.
func (b *BatchInteraction) refreshMintAllowance(ctx context.Context, amount fixedpoint.Value) error {
	grant := b.allowance
	if grant.Cmp(amount) < 0 {
		grant = amount
	}
	return b.approve(ctx, b.baseToken, grant)
}

// Deposit adds amount to the current batch of kind.
func (b *BatchInteraction) Deposit(ctx context.Context, kind batch.Kind, amount fixedpoint.Value) error {
	var err error
	switch kind {
	case batch.Mint:
		err = b.refreshMintAllowance(ctx, amount)
		if err == nil {
			_, err = transact(ctx, b.caller, batchContract, b.address, "depositForMint", amount.Raw(), b.caller.From())
		}
	case batch.Redeem:
		_, err = transact(ctx, b.caller, batchContract, b.address, "depositForRedeem", amount.Raw())
	default:
		return fmt.Errorf("unknown batch kind %d", kind)
	}
	if err != nil {
		ContractCallsTotal.WithLabelValues("deposit", "error").Inc()
		return err
	}

	ContractCallsTotal.WithLabelValues("deposit", "ok").Inc()
	return nil
}

// Trigger converts the current batch of kind and reads back its output.
// Mint conversions also resolve the basket the output represents.
func (b *BatchInteraction) Trigger(ctx context.Context, kind batch.Kind) (*batch.Conversion, error) {
	conv, err := b.trigger(ctx, kind)
	if err != nil {
		ContractCallsTotal.WithLabelValues("trigger", "error").Inc()
		return nil, err
	}

	ContractCallsTotal.WithLabelValues("trigger", "ok").Inc()
	b.logger.Info("batch-converted-on-chain",
		zap.String("kind", kind.String()),
		zap.String("batch-id", conv.Ref),
		zap.Uint64("block", conv.Marker.Block),
		zap.Stringer("output", conv.Output))
	return conv, nil
}

func (b *BatchInteraction) trigger(ctx context.Context, kind batch.Kind) (*batch.Conversion, error) {
	idMethod, triggerMethod := "currentMintBatchId", "batchMint"
	if kind == batch.Redeem {
		idMethod, triggerMethod = "currentRedeemBatchId", "batchRedeem"
	}

	id, err := b.batchID(ctx, idMethod)
	if err != nil {
		return nil, err
	}

	_, err = transact(ctx, b.caller, batchContract, b.address, triggerMethod, new(big.Int))
	if err != nil {
		return nil, err
	}

	marker, err := b.blocks.CurrentMarker(ctx)
	if err != nil {
		return nil, fmt.Errorf("read conversion block: %w", err)
	}

	output, err := b.claimable(ctx, id)
	if err != nil {
		return nil, err
	}

	conv := &batch.Conversion{
		Ref:    common.Hash(id).Hex(),
		Output: output,
		Marker: marker,
	}

	if kind == batch.Mint {
		conv.Basket, err = b.RequiredComponents(ctx, output)
		if err != nil {
			return nil, err
		}
	}
	return conv, nil
}

// MoveUnclaimed moves amount of the unclaimed output of batch ref into the
// current batch of the opposite kind.
func (b *BatchInteraction) MoveUnclaimed(ctx context.Context, from batch.Kind, ref string, amount fixedpoint.Value) error {
	batchType := batchTypeMint
	if from == batch.Redeem {
		batchType = batchTypeRedeem
	}

	id, err := parseBatchRef(ref)
	if err != nil {
		return err
	}

	_, err = transact(ctx, b.caller, batchContract, b.address, "moveUnclaimedDepositsIntoCurrentBatch",
		[][32]byte{id}, []*big.Int{amount.Raw()}, batchType)
	if err != nil {
		ContractCallsTotal.WithLabelValues("move", "error").Inc()
		return err
	}

	ContractCallsTotal.WithLabelValues("move", "ok").Inc()
	return nil
}

// Claim pays out recipient's share of batch ref.
func (b *BatchInteraction) Claim(ctx context.Context, _ batch.Kind, ref string, recipient string) error {
	id, err := parseBatchRef(ref)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(recipient) {
		return fmt.Errorf("invalid recipient address %q", recipient)
	}

	_, err = transact(ctx, b.caller, batchContract, b.address, "claim", id, common.HexToAddress(recipient))
	if err != nil {
		ContractCallsTotal.WithLabelValues("claim", "error").Inc()
		return err
	}

	ContractCallsTotal.WithLabelValues("claim", "ok").Inc()
	return nil
}

// RequiredComponents asks the issuance module which component quantities
// back quantity units of the basket token.
func (b *BatchInteraction) RequiredComponents(ctx context.Context, quantity fixedpoint.Value) (types.Basket, error) {
	out, err := call(ctx, b.caller, issuanceContract, b.issuance, "getRequiredComponentUnitsForIssue", b.setToken, quantity.Raw())
	if err != nil {
		return types.Basket{}, err
	}

	tokens, ok := out[0].([]common.Address)
	if !ok {
		return types.Basket{}, fmt.Errorf("component list has type %T", out[0])
	}
	units, ok := out[1].([]*big.Int)
	if !ok {
		return types.Basket{}, fmt.Errorf("component units have type %T", out[1])
	}
	if len(tokens) != len(units) {
		return types.Basket{}, fmt.Errorf("issuance returned %d components and %d quantities", len(tokens), len(units))
	}

	holdings := make([]types.Holding, 0, len(tokens))
	for i, token := range tokens {
		id, ok := b.registry.ComponentFor(token)
		if !ok {
			return types.Basket{}, fmt.Errorf("component token %s is not configured", token.Hex())
		}
		qty, err := fixedpoint.FromRaw(units[i])
		if err != nil {
			return types.Basket{}, fmt.Errorf("quantity of %s: %w", id, err)
		}
		holdings = append(holdings, types.Holding{Component: id, Quantity: qty})
	}

	return types.NewBasket(holdings)
}

func (b *BatchInteraction) batchID(ctx context.Context, method string) ([32]byte, error) {
	out, err := call(ctx, b.caller, batchContract, b.address, method)
	if err != nil {
		return [32]byte{}, err
	}
	id, ok := out[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("%s returned %T", method, out[0])
	}
	return id, nil
}

func (b *BatchInteraction) claimable(ctx context.Context, id [32]byte) (fixedpoint.Value, error) {
	out, err := call(ctx, b.caller, batchContract, b.address, "batches", id)
	if err != nil {
		return fixedpoint.Zero(), err
	}
	if len(out) <= claimableTokenBalance {
		return fixedpoint.Zero(), fmt.Errorf("batches returned %d values", len(out))
	}
	raw, ok := out[claimableTokenBalance].(*big.Int)
	if !ok {
		return fixedpoint.Zero(), fmt.Errorf("claimable balance has type %T", out[claimableTokenBalance])
	}
	return fixedpoint.FromRaw(raw)
}

func parseBatchRef(ref string) ([32]byte, error) {
	h := common.HexToHash(ref)
	if len(ref) != 66 || h.Hex() != ref {
		return [32]byte{}, fmt.Errorf("invalid batch id %q", ref)
	}
	return [32]byte(h), nil
}
