package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/options"
	"github.com/vk/tickgrid/internal/schedule"
	"github.com/vk/tickgrid/internal/state"
)

// Cooperative runs every system as a task that must hold a baton while it
// executes. With the default width of one, tasks run one at a time on a
// single logical thread and interleave only where a system calls Yield.
//
// A task becomes eligible once all of its dependencies in the plan finished,
// so conflicting systems never interleave. The order among eligible tasks is
// unspecified.
type Cooperative struct {
	width  int64
	closed atomic.Bool
}

// NewCooperative creates a cooperative executor. opts.Threads sets how many
// tasks may hold a baton at once; zero means one.
func NewCooperative(opts options.Options) (*Cooperative, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	width := int64(opts.Threads)
	if width == 0 {
		width = 1
	}
	return &Cooperative{width: width}, nil
}

// Name implements schedule.Executor.
func (c *Cooperative) Name() string { return string(BackendCooperative) }

// Width returns how many tasks may run at once.
func (c *Cooperative) Width() int { return int(c.width) }

// Run implements schedule.Executor. After a failure, tasks that have not yet
// started are skipped; tasks already holding a baton run to completion.
func (c *Cooperative) Run(ctx context.Context, plan *schedule.Plan, st *state.State) error {
	if c.closed.Load() {
		return ErrClosed
	}
	logger := ctxlog.FromContext(ctx).With("phase", plan.Phase, "tick", schedule.TickFrom(ctx))

	sem := semaphore.NewWeighted(c.width)
	done := make([]chan struct{}, plan.Len())
	for i := range done {
		done[i] = make(chan struct{})
	}
	errs := make([]error, plan.Len())
	var failed atomic.Bool

	var g errgroup.Group
	for i := range plan.Systems {
		g.Go(func() error {
			defer close(done[i])
			for _, dep := range plan.Deps[i] {
				<-done[dep]
			}
			name := plan.Systems[i].Name
			if failed.Load() {
				logger.Debug("Skipping task after failure.", "system", name)
				return nil
			}

			b := &baton{sem: sem}
			if err := b.acquire(ctx); err != nil {
				if failed.CompareAndSwap(false, true) {
					errs[i] = fmt.Errorf("tick interrupted before %q: %w", name, err)
				}
				return nil
			}
			logger.Debug("Running task.", "system", name)
			err := plan.Invoke(withBaton(ctx, b), i, st)
			b.release()

			if err != nil {
				logger.Error("Task failed.", "system", name, "error", err)
				errs[i] = err
				failed.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	return firstFailure(errs)
}

// Close implements schedule.Executor.
func (c *Cooperative) Close() error {
	c.closed.Store(true)
	return nil
}

// baton is a task's claim on the cooperative executor.
type baton struct {
	sem  *semaphore.Weighted
	held bool
}

func (b *baton) acquire(ctx context.Context) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	b.held = true
	return nil
}

func (b *baton) release() {
	if b.held {
		b.held = false
		b.sem.Release(1)
	}
}

type batonKey struct{}

func withBaton(ctx context.Context, b *baton) context.Context {
	return context.WithValue(ctx, batonKey{}, b)
}

// Yield is a suspension point for long-running systems. Under the
// cooperative executor it hands the baton to the next eligible task and
// waits to get it back; under the other backends it only yields the
// processor. It must be called from the goroutine the system was invoked on.
func Yield(ctx context.Context) error {
	b, ok := ctx.Value(batonKey{}).(*baton)
	if !ok || !b.held {
		runtime.Gosched()
		return ctx.Err()
	}
	b.release()
	runtime.Gosched()
	return b.acquire(ctx)
}
