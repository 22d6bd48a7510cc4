package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/schedule"
	"github.com/vk/tickgrid/internal/state"
)

// Sequential runs systems one at a time on the caller's goroutine, in the
// plan's topological order. It is the reference the other backends are
// compared against.
type Sequential struct {
	closed atomic.Bool
}

// NewSequential creates a sequential executor.
func NewSequential() *Sequential {
	return &Sequential{}
}

// Name implements schedule.Executor.
func (s *Sequential) Name() string { return string(BackendSequential) }

// Run implements schedule.Executor. It stops at the first failing system.
func (s *Sequential) Run(ctx context.Context, plan *schedule.Plan, st *state.State) error {
	if s.closed.Load() {
		return ErrClosed
	}
	logger := ctxlog.FromContext(ctx).With("phase", plan.Phase, "tick", schedule.TickFrom(ctx))

	for _, i := range plan.Order {
		name := plan.Systems[i].Name
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tick interrupted before %q: %w", name, err)
		}
		logger.Debug("Running system.", "system", name)
		if err := plan.Invoke(ctx, i, st); err != nil {
			logger.Error("System failed.", "system", name, "error", err)
			return err
		}
	}
	return nil
}

// Close implements schedule.Executor.
func (s *Sequential) Close() error {
	s.closed.Store(true)
	return nil
}
