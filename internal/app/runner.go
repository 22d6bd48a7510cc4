package app

import (
	"context"
	"fmt"
	"time"
)

// RunOnce is the default driver: it runs a single main tick.
func RunOnce(ctx context.Context, a *App) error {
	return a.Update(ctx)
}

// LoopConfig controls RunLoop.
type LoopConfig struct {
	// Interval is the minimum time between tick starts. Zero runs ticks back
	// to back.
	Interval time.Duration
	// MaxTicks stops the loop after that many ticks. Zero means no limit.
	MaxTicks uint64
	// ContinueOnError logs failed ticks and keeps going instead of returning.
	ContinueOnError bool
}

// RunLoop returns a driver that ticks until ctx is done, MaxTicks ticks ran,
// or a system requested exit with AppExit.
func RunLoop(cfg LoopConfig) Runner {
	return func(ctx context.Context, a *App) error {
		logger := a.Logger().With("driver", "loop")
		logger.Debug("Loop driver started.", "interval", cfg.Interval, "max_ticks", cfg.MaxTicks)

		var ticker *time.Ticker
		if cfg.Interval > 0 {
			ticker = time.NewTicker(cfg.Interval)
			defer ticker.Stop()
		}

		for n := uint64(0); cfg.MaxTicks == 0 || n < cfg.MaxTicks; n++ {
			if ticker != nil && n > 0 {
				select {
				case <-ctx.Done():
				case <-ticker.C:
				}
			}
			if ctx.Err() != nil {
				logger.Info("Loop driver stopped by context.", "ticks", n)
				return nil
			}

			if err := a.Update(ctx); err != nil {
				if ctx.Err() != nil {
					logger.Info("Loop driver stopped by context.", "ticks", n+1)
					return nil
				}
				if !cfg.ContinueOnError {
					return fmt.Errorf("loop stopped after %d ticks: %w", n+1, err)
				}
				logger.Error("Tick failed, continuing.", "error", err)
			}
			if consumeExit(a.State()) {
				logger.Info("Loop driver stopped by exit request.", "ticks", n+1)
				return nil
			}
		}
		logger.Info("Loop driver reached tick limit.", "ticks", cfg.MaxTicks)
		return nil
	}
}
