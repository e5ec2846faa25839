package app

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/basket-slippage/internal/simulation"
	"go.uber.org/zap"
)

// phaseInterval is how often the driver state is copied to the health probe.
const phaseInterval = 200 * time.Millisecond

type runResult struct {
	run *simulation.Run
	err error
}

// Run executes the simulation and blocks until it ends or a signal arrives,
// then shuts everything down. It returns the (possibly partial) run.
func (a *App) Run() (*simulation.Run, error) {
	a.logger.Info("application-starting",
		zap.String("backend", a.cfg.BackendMode),
		zap.String("scenario", a.scenario.Name),
		zap.Strings("storage", a.cfg.StorageModes()),
		zap.String("log-level", a.cfg.LogLevel))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.startComponents()

	done := make(chan runResult, 1)
	go func() {
		run, err := a.driver.Run(a.ctx)
		done <- runResult{run: run, err: err}
	}()

	var res runResult
	select {
	case res = <-done:
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
		a.cancel()
		res = <-done
	}

	a.reportRun(res)

	if a.keepServing && a.httpServer != nil && a.ctx.Err() == nil {
		a.logger.Info("serving-results-until-signal", zap.String("http-addr", ":"+a.cfg.HTTPPort))
		select {
		case sig := <-sigChan:
			a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
		case <-a.ctx.Done():
			a.logger.Info("context-cancelled")
		}
	}

	shutdownErr := a.Shutdown()
	if res.err != nil {
		return res.run, res.err
	}
	return res.run, shutdownErr
}

// Driver exposes the simulation driver.
func (a *App) Driver() *simulation.Driver {
	return a.driver
}

func (a *App) startComponents() {
	if a.httpServer != nil {
		a.wg.Add(1)
		go a.runHTTPServer()
	}

	a.wg.Add(1)
	go a.trackPhase()

	a.healthChecker.SetReady(true)
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// trackPhase mirrors the driver state into the health probe until shutdown.
func (a *App) trackPhase() {
	defer a.wg.Done()

	ticker := time.NewTicker(phaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.syncPhase()
			if a.driver.State().Terminal() {
				return
			}
		}
	}
}

func (a *App) syncPhase() {
	state := a.driver.State()
	a.healthChecker.SetPhase(state.String())
	if state == simulation.Aborted {
		a.healthChecker.SetReady(false)
	}
}

func (a *App) reportRun(res runResult) {
	a.syncPhase()

	if res.run == nil {
		a.logger.Error("simulation-not-started", zap.Error(res.err))
		return
	}

	summary := res.run.Summary()
	fields := []zap.Field{
		zap.String("run-id", summary.RunID),
		zap.String("status", string(summary.Status)),
		zap.Int("cycles", summary.Cycles),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
	}
	if summary.MaxSlippage != nil {
		fields = append(fields, zap.Stringer("max-slippage", summary.MaxSlippage))
	}

	if res.err != nil {
		a.logger.Error("simulation-aborted", append(fields, zap.Error(res.err))...)
		return
	}
	a.logger.Info("simulation-complete", fields...)
}
