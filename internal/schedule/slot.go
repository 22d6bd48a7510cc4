package schedule

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vk/tickgrid/internal/state"
)

// Executor runs a compiled plan. Every implementation executes each system
// exactly once per Run and returns only after all of them finished, so a Run
// is a barrier between ticks.
type Executor interface {
	// Name identifies the backend in logs.
	Name() string
	// Run executes one tick of plan against st.
	Run(ctx context.Context, plan *Plan, st *state.State) error
	// Close releases backend resources. Run must not be called afterwards.
	Close() error
}

// NewExecutorFunc constructs the executor for one schedule. It is called at
// most once per successful Initialize.
type NewExecutorFunc func(ctx context.Context, phase string, repeating bool) (Executor, error)

// Slot holds the executor and compiled plan bound to one schedule. The zero
// value is an empty slot.
type Slot struct {
	mu       sync.Mutex
	executor Executor
	plan     *Plan
	ticks    atomic.Uint64
}

// Initialized reports whether an executor is bound.
func (s *Slot) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executor != nil
}

// Executor returns the bound executor, or nil.
func (s *Slot) Executor() Executor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executor
}

// Plan returns the bound plan, or nil.
func (s *Slot) Plan() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Ticks returns the number of ticks started through this slot.
func (s *Slot) Ticks() uint64 {
	return s.ticks.Load()
}

// Run executes one tick with the bound executor.
func (s *Slot) Run(ctx context.Context, st *state.State) error {
	s.mu.Lock()
	exec, plan := s.executor, s.plan
	s.mu.Unlock()

	if exec == nil {
		return ErrNotInitialized
	}
	tick := s.ticks.Add(1)
	return exec.Run(WithTick(ctx, tick), plan, st)
}

// Close releases the bound executor and empties the slot.
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.executor == nil {
		return nil
	}
	err := s.executor.Close()
	s.executor = nil
	s.plan = nil
	return err
}
