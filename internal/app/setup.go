package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mselser95/basket-slippage/internal/batch"
	"github.com/mselser95/basket-slippage/internal/pricing"
	"github.com/mselser95/basket-slippage/internal/simulation"
	"github.com/mselser95/basket-slippage/internal/storage"
	"github.com/mselser95/basket-slippage/internal/valuation"
	"github.com/mselser95/basket-slippage/pkg/cache"
	"github.com/mselser95/basket-slippage/pkg/config"
	"github.com/mselser95/basket-slippage/pkg/fixedpoint"
	"github.com/mselser95/basket-slippage/pkg/healthprobe"
	"github.com/mselser95/basket-slippage/pkg/httpserver"
	"github.com/mselser95/basket-slippage/pkg/types"
	"github.com/mselser95/basket-slippage/pkg/websocket"
	"go.uber.org/zap"
)

// Result file names under RESULTS_PATH.
const (
	jsonlFile = "slippage.jsonl"
	csvFile   = "slippage.csv"
)

// New creates a new application instance. Nothing runs until Run.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if opts == nil {
		opts = &Options{}
	}

	params, err := setupParams(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup params: %w", err)
	}

	scenario, err := setupScenario(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("setup scenario: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	metaCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	be, err := setupBackend(ctx, cfg, scenario, params, metaCache, logger)
	if err != nil {
		metaCache.Close()
		cancel()
		return nil, fmt.Errorf("setup backend: %w", err)
	}

	healthChecker := healthprobe.New()

	var hub *websocket.Hub
	if cfg.HTTPEnabled {
		hub = websocket.New(websocket.DefaultConfig(logger))
	}

	sinks, err := setupStorage(cfg, logger, hub, opts.Sinks)
	if err != nil {
		be.close()
		metaCache.Close()
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	driver, err := setupDriver(cfg, params, be, sinks, logger)
	if err != nil {
		_ = sinks.Close()
		be.close()
		metaCache.Close()
		cancel()
		return nil, fmt.Errorf("setup driver: %w", err)
	}

	var httpServer *httpserver.Server
	if cfg.HTTPEnabled {
		httpServer = httpserver.New(&httpserver.Config{
			Port:          cfg.HTTPPort,
			Logger:        logger,
			HealthChecker: healthChecker,
			Runs:          driver,
			Stream:        hub,
		})
	}

	return &App{
		cfg:           cfg,
		scenario:      scenario,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		hub:           hub,
		metaCache:     metaCache,
		backend:       be,
		driver:        driver,
		storage:       sinks,
		keepServing:   opts.KeepServing,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupParams(cfg *config.Config) (simulation.Params, error) {
	input, err := fixedpoint.Parse(cfg.SimInputAmount)
	if err != nil {
		return simulation.Params{}, fmt.Errorf("input amount: %w: %w", types.ErrInvalidConfiguration, err)
	}
	maxSlippage, err := fixedpoint.Parse(cfg.SimMaxSlippage)
	if err != nil {
		return simulation.Params{}, fmt.Errorf("max slippage: %w: %w", types.ErrInvalidConfiguration, err)
	}

	params := simulation.Params{
		InputAmount:   input,
		MaxSlippage:   maxSlippage,
		StartBlock:    cfg.SimStartBlock,
		EndBlock:      cfg.SimEndBlock,
		MaxCycles:     cfg.SimMaxCycles,
		AdvanceBlocks: cfg.SimAdvanceBlocks,
	}
	return params, params.Validate()
}

func setupScenario(cfg *config.Config, opts *Options) (*config.Scenario, error) {
	if opts.Scenario != nil {
		return opts.Scenario, opts.Scenario.Validate()
	}
	if cfg.ScenarioFile != "" {
		return config.LoadScenario(cfg.ScenarioFile)
	}
	return config.DefaultScenario(), nil
}

func setupCache(logger *zap.Logger) (*cache.RistrettoCache, error) {
	return cache.NewRistrettoCache(cache.DefaultRistrettoConfig(logger))
}

func setupStorage(cfg *config.Config, logger *zap.Logger, hub *websocket.Hub, extra []storage.Storage) (*storage.MultiStorage, error) {
	var sinks []storage.Storage
	fail := func(err error) (*storage.MultiStorage, error) {
		_ = storage.NewMultiStorage(sinks...).Close()
		return nil, err
	}

	for _, mode := range cfg.StorageModes() {
		var (
			sink storage.Storage
			err  error
		)

		switch mode {
		case config.StorageConsole:
			sink = storage.NewConsoleStorage(logger)
		case config.StorageJSONL:
			err = os.MkdirAll(cfg.ResultsPath, 0o755)
			if err == nil {
				sink, err = storage.NewJSONLStorage(filepath.Join(cfg.ResultsPath, jsonlFile), logger)
			}
		case config.StorageCSV:
			err = os.MkdirAll(cfg.ResultsPath, 0o755)
			if err == nil {
				sink, err = storage.NewCSVStorage(filepath.Join(cfg.ResultsPath, csvFile), logger)
			}
		case config.StorageSQLite:
			err = os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
			if err == nil {
				sink, err = storage.NewSQLiteStorage(cfg.SQLitePath, logger)
			}
		case config.StoragePostgres:
			sink, err = storage.NewPostgresStorage(&storage.PostgresConfig{
				Host:     cfg.PostgresHost,
				Port:     cfg.PostgresPort,
				User:     cfg.PostgresUser,
				Password: cfg.PostgresPass,
				Database: cfg.PostgresDB,
				SSLMode:  cfg.PostgresSSL,
				Logger:   logger,
			})
		default:
			err = fmt.Errorf("unknown storage mode %q", mode)
		}
		if err != nil {
			return fail(fmt.Errorf("create %s storage: %w", mode, err))
		}
		sinks = append(sinks, sink)
	}

	if hub != nil {
		sinks = append(sinks, storage.NewStreamStorage(hub, logger))
	}
	sinks = append(sinks, extra...)

	return storage.NewMultiStorage(sinks...), nil
}

func setupDriver(
	cfg *config.Config,
	params simulation.Params,
	be *backend,
	sinks simulation.Storage,
	logger *zap.Logger,
) (*simulation.Driver, error) {
	aggregator, err := pricing.New(&pricing.Config{
		PoolSource:  be.pool,
		ShareSource: be.share,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create price aggregator: %w", err)
	}

	valuator, err := valuation.New(&valuation.Config{
		Oracle:      aggregator,
		Concurrency: cfg.SimPriceConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create valuator: %w", err)
	}

	ledger, err := batch.New(&batch.Config{
		Converter: be.converter,
		Account:   be.account,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	return simulation.New(&simulation.Config{
		Params:    params,
		Ledger:    ledger,
		Valuer:    valuator,
		Reference: be.reference,
		Blocks:    be.blocks,
		Storage:   sinks,
		Logger:    logger,
	})
}
