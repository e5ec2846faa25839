package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/basket-slippage/internal/batch"
	"github.com/mselser95/basket-slippage/internal/contracts"
	"github.com/mselser95/basket-slippage/internal/paper"
	"github.com/mselser95/basket-slippage/internal/pricing"
	"github.com/mselser95/basket-slippage/internal/simulation"
	"github.com/mselser95/basket-slippage/pkg/cache"
	"github.com/mselser95/basket-slippage/pkg/chain"
	"github.com/mselser95/basket-slippage/pkg/config"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/types"
	"go.uber.org/zap"
)

// paperAccount is the depositor on the paper backend.
const paperAccount = "paper-account"

// liveAllowance is granted to the batch contract on both tokens, and again on
// the base token before each mint deposit.
const liveAllowance = 1_000_000_000

// backend bundles the collaborators of one execution environment.
type backend struct {
	converter batch.Converter
	pool      pricing.Source
	share     pricing.Source
	reference simulation.ReferencePricer
	blocks    simulation.BlockSource
	account   string
	close     func()
}

func setupBackend(
	ctx context.Context,
	cfg *config.Config,
	scenario *config.Scenario,
	params simulation.Params,
	metaCache cache.Cache,
	logger *zap.Logger,
) (*backend, error) {
	switch cfg.BackendMode {
	case config.BackendPaper:
		return setupPaperBackend(scenario, params, logger)
	case config.BackendLive:
		return setupLiveBackend(ctx, cfg, scenario, metaCache, logger)
	default:
		return nil, fmt.Errorf("unknown backend mode %q: %w", cfg.BackendMode, types.ErrInvalidConfiguration)
	}
}

func setupPaperBackend(scenario *config.Scenario, params simulation.Params, logger *zap.Logger) (*backend, error) {
	p := scenario.Paper

	// the chain starts at the first simulated block, stamped with the anchor time
	genesis := p.AnchorTime.Add(-time.Duration(params.StartBlock) * p.BlockTime)
	paperChain := paper.NewChain(params.StartBlock, genesis, p.BlockTime)

	components := make([]paper.ComponentParams, 0, len(scenario.Components))
	for _, c := range scenario.Components {
		cp, err := paperComponent(c)
		if err != nil {
			return nil, err
		}
		components = append(components, cp)
	}

	reference, err := config.Decimal(p.Reference)
	if err != nil {
		return nil, fmt.Errorf("paper reference: %w", err)
	}
	referenceDrift, err := config.Decimal(p.ReferenceDrift)
	if err != nil {
		return nil, fmt.Errorf("paper reference drift: %w", err)
	}

	market, err := paper.NewMarket(&paper.MarketConfig{
		Chain:          paperChain,
		AnchorBlock:    params.StartBlock,
		Components:     components,
		Reference:      reference,
		ReferenceDrift: referenceDrift,
	})
	if err != nil {
		return nil, fmt.Errorf("create paper market: %w", err)
	}

	fee, err := config.Decimal(p.Fee)
	if err != nil {
		return nil, fmt.Errorf("paper fee: %w", err)
	}
	depth, err := config.Decimal(p.Depth)
	if err != nil {
		return nil, fmt.Errorf("paper depth: %w", err)
	}
	maxMint, err := config.Decimal(p.MaxMintValue)
	if err != nil {
		return nil, fmt.Errorf("paper max mint value: %w", err)
	}

	converter, err := paper.NewConverter(&paper.ConverterConfig{
		Chain:        paperChain,
		Market:       market,
		Fee:          fee,
		Depth:        depth,
		MaxMintValue: maxMint,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create paper converter: %w", err)
	}

	logger.Info("paper-backend-ready",
		zap.String("scenario", scenario.Name),
		zap.Int("components", len(components)),
		zap.Uint64("head", paperChain.Block()))

	return &backend{
		converter: converter,
		pool:      market.PoolSource(),
		share:     market.ShareSource(),
		reference: market,
		blocks:    paperChain,
		account:   paperAccount,
		close:     func() {},
	}, nil
}

func paperComponent(c config.ComponentConfig) (paper.ComponentParams, error) {
	cp := paper.ComponentParams{ID: types.ComponentID(c.ID)}

	for _, f := range []struct {
		name string
		raw  string
		dst  *fixedpoint.Value
	}{
		{"pool_rate", c.PoolRate, &cp.PoolRate},
		{"share_price", c.SharePrice, &cp.SharePrice},
		{"pool_drift", c.PoolDrift, &cp.PoolDrift},
		{"share_drift", c.ShareDrift, &cp.ShareDrift},
		{"units", c.Units, &cp.Units},
	} {
		v, err := config.Decimal(f.raw)
		if err != nil {
			return paper.ComponentParams{}, fmt.Errorf("component %s %s: %w", c.ID, f.name, err)
		}
		*f.dst = v
	}

	return cp, nil
}

func setupLiveBackend(
	ctx context.Context,
	cfg *config.Config,
	scenario *config.Scenario,
	metaCache cache.Cache,
	logger *zap.Logger,
) (*backend, error) {
	err := scenario.ValidateLive()
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	client, err := chain.Dial(ctx, &chain.Config{
		RPCURL:         cfg.RPCURL,
		PrivateKey:     cfg.PrivateKey,
		GasLimit:       cfg.GasLimit,
		ReceiptTimeout: cfg.ReceiptTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("dial chain: %w", err)
	}

	components := make([]contracts.Component, 0, len(scenario.Components))
	for _, c := range scenario.Components {
		components = append(components, contracts.Component{
			ID:       types.ComponentID(c.ID),
			Token:    common.HexToAddress(c.Token),
			Metapool: common.HexToAddress(c.Metapool),
			Vault:    common.HexToAddress(c.Vault),
		})
	}
	registry, err := contracts.NewRegistry(components)
	if err != nil {
		client.Close()
		return nil, err
	}

	addrs := scenario.Contracts
	interaction, err := contracts.NewBatchInteraction(&contracts.BatchInteractionConfig{
		Caller:    client,
		Blocks:    client,
		Registry:  registry,
		Address:   common.HexToAddress(addrs.BatchInteraction),
		Issuance:  common.HexToAddress(addrs.Issuance),
		SetToken:  common.HexToAddress(addrs.SetToken),
		BaseToken: common.HexToAddress(addrs.BaseToken),
		Allowance: fixedpoint.FromUnits(liveAllowance),
		Logger:    logger,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create batch interaction: %w", err)
	}

	err = interaction.Approve(ctx, fixedpoint.FromUnits(liveAllowance))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("approve batch interaction: %w", err)
	}

	logger.Info("live-backend-ready",
		zap.String("scenario", scenario.Name),
		zap.String("rpc-url", cfg.RPCURL),
		zap.String("account", client.From().Hex()))

	return &backend{
		converter: interaction,
		pool:      contracts.NewPoolRates(client, registry),
		share:     contracts.NewSharePrices(client, registry, metaCache, logger),
		reference: contracts.NewReferencePool(client, common.HexToAddress(addrs.ReferencePool)),
		blocks:    client,
		account:   client.From().Hex(),
		close:     client.Close,
	}, nil
}
