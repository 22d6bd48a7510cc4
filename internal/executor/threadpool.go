package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/options"
	"github.com/vk/tickgrid/internal/schedule"
	"github.com/vk/tickgrid/internal/state"
)

// ThreadPool runs each group of the plan concurrently on a fixed pool of
// worker goroutines. Groups run one after another: the pool drains a group
// completely before the next one is dispatched, and Run returns only after
// the last group finished.
type ThreadPool struct {
	cfg    options.PoolConfig
	phase  string
	jobs   chan job
	logger *slog.Logger

	// mu is held for reading by Run and for writing by Close, so Close waits
	// for an in-flight tick and jobs is never sent on after it is closed.
	mu      sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// job is one system invocation handed to a worker.
type job struct {
	ctx   context.Context
	plan  *schedule.Plan
	index int
	st    *state.State
	done  func(error)
}

// NewThreadPool validates opts and starts the worker pool.
func NewThreadPool(ctx context.Context, phase string, opts options.Options) (*ThreadPool, error) {
	cfg, err := opts.PoolConfig()
	if err != nil {
		return nil, err
	}

	p := &ThreadPool{
		cfg:    cfg,
		phase:  phase,
		jobs:   make(chan job),
		logger: ctxlog.FromContext(ctx).With("phase", phase, "executor", BackendThreadPool),
	}
	if cfg.StackSize > 0 {
		p.logger.Debug("Stack size is advisory; goroutine stacks grow on demand.", "stack_size", cfg.StackSize)
	}

	p.logger.Debug("Starting worker pool.", "workers", cfg.Workers)
	p.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker(i)
	}
	return p, nil
}

// Name implements schedule.Executor.
func (p *ThreadPool) Name() string { return string(BackendThreadPool) }

// Workers returns the pool size.
func (p *ThreadPool) Workers() int { return p.cfg.Workers }

// Run implements schedule.Executor. When a system fails the other members of
// its group still run to completion; later groups are not started.
func (p *ThreadPool) Run(ctx context.Context, plan *schedule.Plan, st *state.State) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	logger := ctxlog.FromContext(ctx).With("phase", plan.Phase, "tick", schedule.TickFrom(ctx))

	for g, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tick interrupted before group %d: %w", g, err)
		}
		logger.Debug("Dispatching group.", "group", g, "systems", len(group))

		errs := make([]error, len(group))
		var wg sync.WaitGroup
		wg.Add(len(group))
		for k, index := range group {
			p.jobs <- job{
				ctx:   ctx,
				plan:  plan,
				index: index,
				st:    st,
				done: func(err error) {
					errs[k] = err
					wg.Done()
				},
			}
		}
		wg.Wait()

		if err := firstFailure(errs); err != nil {
			logger.Error("Group failed, aborting tick.", "group", g, "error", err)
			return err
		}
	}
	return nil
}

// Close stops the workers after any in-flight tick finished.
func (p *ThreadPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.workers.Wait()
	p.logger.Debug("Worker pool stopped.")
	return nil
}
