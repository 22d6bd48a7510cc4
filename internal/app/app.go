package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/executor"
	"github.com/vk/tickgrid/internal/options"
	"github.com/vk/tickgrid/internal/schedule"
	"github.com/vk/tickgrid/internal/state"
)

// Phase names used in logs and errors.
const (
	PhaseStartup = "startup"
	PhaseMain    = "main"
)

// Runner decides how the main phase is driven once startup finished. It is
// handed the App and owns it until it returns; nothing else may use the App
// concurrently.
type Runner func(ctx context.Context, a *App) error

// App owns the shared State and the two phases that run against it. Each
// phase has its own schedule and executor slot; executors are created on
// first use.
type App struct {
	logger          *slog.Logger
	state           *state.State
	backend         executor.Backend
	execOpts        options.Options
	healthcheckPort int

	startup     *schedule.Schedule
	startupSlot schedule.Slot
	main        *schedule.Schedule
	mainSlot    schedule.Slot

	mu          sync.Mutex
	runner      Runner
	startupDone bool

	// tickMu serializes main ticks.
	tickMu sync.Mutex

	failedTicks atomic.Uint64
	lastErr     atomic.Pointer[tickError]

	httpServer *http.Server
}

type tickError struct{ err error }

// State returns the shared state.
func (a *App) State() *state.State { return a.state }

// Logger returns the App's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Backend returns the executor backend chosen at build time.
func (a *App) Backend() executor.Backend { return a.backend }

// Ticks returns the number of main ticks started.
func (a *App) Ticks() uint64 { return a.mainSlot.Ticks() }

// FailedTicks returns the number of main ticks that reported a failure.
func (a *App) FailedTicks() uint64 { return a.failedTicks.Load() }

// LastError returns the failure of the most recent main tick, or nil when it
// succeeded.
func (a *App) LastError() error {
	if te := a.lastErr.Load(); te != nil {
		return te.err
	}
	return nil
}

// withLogger makes the App's logger available to everything below ctx.
func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

func (a *App) newExecutor() schedule.NewExecutorFunc {
	return executor.New(a.backend, a.execOpts)
}

// Update runs one tick of the main schedule, initializing its executor on the
// first call. Concurrent calls are serialized, so ticks never overlap. It must
// not be called from inside a system.
func (a *App) Update(ctx context.Context) error {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	ctx = a.withLogger(ctx)
	if err := a.main.Initialize(ctx, a.state, &a.mainSlot, PhaseMain, true, a.newExecutor()); err != nil {
		return err
	}

	err := a.mainSlot.Run(ctx, a.state)
	if err != nil {
		a.failedTicks.Add(1)
		a.lastErr.Store(&tickError{err: err})
		return err
	}
	a.lastErr.Store(nil)
	return nil
}

// runStartup runs the startup schedule unless it already succeeded.
func (a *App) runStartup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.startupDone {
		return nil
	}
	if err := a.startup.Initialize(ctx, a.state, &a.startupSlot, PhaseStartup, false, a.newExecutor()); err != nil {
		return err
	}
	if err := a.startupSlot.Run(ctx, a.state); err != nil {
		return err
	}
	a.startupDone = true
	a.logger.Debug("Startup phase finished.", "systems", a.startup.Len())
	return nil
}

// takeRunner hands out the stored runner and puts RunOnce in its place, so a
// custom driver is used by exactly one Run.
func (a *App) takeRunner() Runner {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := a.runner
	a.runner = RunOnce
	return r
}

// Run executes the startup phase if it has not completed yet and then gives
// control to the stored runner.
func (a *App) Run(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.", "backend", a.backend)

	if err := a.runStartup(ctx); err != nil {
		return fmt.Errorf("startup phase failed: %w", err)
	}

	if a.healthcheckPort > 0 {
		a.startHealthcheckServer(ctx)
		defer func() {
			if err := a.closeHealthcheckServer(ctx); err != nil {
				a.logger.Warn("Health check server did not shut down cleanly.", "error", err)
			}
		}()
	}

	runner := a.takeRunner()
	a.logger.Info("🚀 Handing control to run driver.")
	if err := runner(ctx, a); err != nil {
		return fmt.Errorf("run driver failed: %w", err)
	}
	a.logger.Info("🏁 Run driver finished.", "ticks", a.Ticks(), "failed_ticks", a.FailedTicks())
	return nil
}

// Close releases both executors. The App can be used again afterwards; the
// executors are rebuilt on demand.
func (a *App) Close() error {
	a.logger.Debug("Closing executors.")
	return errors.Join(a.startupSlot.Close(), a.mainSlot.Close())
}
