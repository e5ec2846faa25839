package app

import (
	"context"
	"sync"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"github.com/mselser95/basket-slippage/internal/storage"
	"github.com/mselser95/basket-slippage/pkg/cache"
	"github.com/mselser95/basket-slippage/pkg/config"
	"github.com/mselser95/basket-slippage/pkg/healthprobe"
	"github.com/mselser95/basket-slippage/pkg/httpserver"
	"github.com/mselser95/basket-slippage/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	scenario      *config.Scenario
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server // nil when HTTP is disabled
	hub           *websocket.Hub     // nil when HTTP is disabled
	metaCache     *cache.RistrettoCache
	backend       *backend
	driver        *simulation.Driver
	storage       *storage.MultiStorage
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	keepServing   bool
	shutdownOnce  sync.Once
}

// Options holds application options.
type Options struct {
	// Scenario overrides SCENARIO_FILE and the built-in default.
	Scenario *config.Scenario
	// Sinks are added to the configured storage, mostly for tests.
	Sinks []storage.Storage
	// KeepServing keeps the HTTP surface up after the run ends until a signal arrives.
	KeepServing bool
}
