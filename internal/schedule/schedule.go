package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/tickgrid/internal/ctxlog"
	"github.com/vk/tickgrid/internal/state"
)

// Schedule is the ordered description of the systems in one phase. It says
// what runs and under which access; the executor bound at Initialize decides
// how.
type Schedule struct {
	mu      sync.Mutex
	systems []System
	names   map[string]struct{}
	sealed  bool
}

// New creates an empty schedule.
func New() *Schedule {
	return &Schedule{names: make(map[string]struct{})}
}

// AddSystem appends a system descriptor. Systems are fixed once the schedule
// is initialized.
func (s *Schedule) AddSystem(sys System) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return fmt.Errorf("add system %q: %w", sys.Name, ErrScheduleSealed)
	}
	if err := validateSystem(sys); err != nil {
		return err
	}
	if _, dup := s.names[sys.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateSystem, sys.Name)
	}
	s.names[sys.Name] = struct{}{}
	s.systems = append(s.systems, sys)
	return nil
}

// Len returns the number of systems.
func (s *Schedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.systems)
}

// Names returns the system names in declaration order.
func (s *Schedule) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.systems))
	for i, sys := range s.systems {
		out[i] = sys.Name
	}
	return out
}

// Sealed reports whether the schedule has been initialized.
func (s *Schedule) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// Initialize binds an executor to slot. When the slot already holds one it
// returns immediately. Otherwise it compiles the plan, builds the executor
// with newExecutor, runs each system's Init hook against st and stores both
// in the slot. On any error the slot is left empty so that a later call can
// retry, e.g. with a corrected configuration.
//
// phase and repeating are passed to newExecutor for diagnostics only.
func (s *Schedule) Initialize(ctx context.Context, st *state.State, slot *Slot, phase string, repeating bool, newExecutor NewExecutorFunc) error {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.executor != nil {
		return nil
	}
	if newExecutor == nil {
		return fmt.Errorf("initialize %s schedule: %w", phase, ErrNoExecutor)
	}

	logger := ctxlog.FromContext(ctx).With("phase", phase)

	s.mu.Lock()
	systems := append([]System(nil), s.systems...)
	s.mu.Unlock()

	plan, err := compile(phase, repeating, systems)
	if err != nil {
		return fmt.Errorf("compile %s schedule: %w", phase, err)
	}
	logger.Debug("Schedule compiled.", "systems", plan.Len(), "groups", len(plan.Groups))

	exec, err := newExecutor(ctx, phase, repeating)
	if err != nil {
		return fmt.Errorf("create %s executor: %w", phase, err)
	}

	for _, sys := range plan.Systems {
		if sys.Init == nil {
			continue
		}
		if err := sys.Init(st); err != nil {
			if closeErr := exec.Close(); closeErr != nil {
				logger.Warn("Closing executor after failed initialization.", "error", closeErr)
			}
			return fmt.Errorf("initialize system %q: %w", sys.Name, err)
		}
	}

	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()

	slot.executor = exec
	slot.plan = plan
	logger.Debug("Executor bound to schedule.", "executor", exec.Name(), "repeating", repeating)
	return nil
}
