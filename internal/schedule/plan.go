package schedule

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/vk/tickgrid/internal/access"
	"github.com/vk/tickgrid/internal/dag"
	"github.com/vk/tickgrid/internal/state"
)

// Plan is a schedule compiled for execution. It is immutable once built and
// shared by every tick of the executor it is bound to.
type Plan struct {
	Phase     string
	Repeating bool
	// Systems in declaration order; every other field indexes into it.
	Systems []System
	// Groups partitions the systems into ordered batches. Members of one group
	// have no ordering constraint and no conflicting access between them, so
	// they may run concurrently; group N+1 starts after group N finished.
	Groups [][]int
	// Deps lists, per system, the systems that must complete before it starts.
	Deps [][]int
	// Order is a topological order of all systems, declaration order breaking
	// ties. Without ordering constraints it equals declaration order.
	Order []int
}

// Len returns the number of systems in the plan.
func (p *Plan) Len() int { return len(p.Systems) }

// compile resolves the dependency graph implied by ordering constraints and
// declared access. Explicit constraints are applied first and yield a total
// order (declaration order breaks ties); every pair of conflicting systems is
// then ordered the same way, which can never introduce a cycle.
func compile(phase string, repeating bool, systems []System) (*Plan, error) {
	index := make(map[string]int, len(systems))
	explicit := dag.New()
	for i, sys := range systems {
		if err := validateSystem(sys); err != nil {
			return nil, err
		}
		if _, dup := index[sys.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSystem, sys.Name)
		}
		index[sys.Name] = i
		explicit.AddNode(sys.Name)
	}

	graph := dag.New()
	for _, sys := range systems {
		graph.AddNode(sys.Name)
	}
	for _, sys := range systems {
		for _, before := range sys.After {
			if _, ok := index[before]; !ok {
				return nil, fmt.Errorf("%w: %q runs after %q", ErrUnknownDependency, sys.Name, before)
			}
			if err := explicit.AddEdge(before, sys.Name); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOrderingCycle, err)
			}
			if err := graph.AddEdge(before, sys.Name); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOrderingCycle, err)
			}
		}
	}

	order, err := explicit.Sort()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderingCycle, err)
	}
	for i := range order {
		for j := i + 1; j < len(order); j++ {
			a, b := systems[index[order[i]]], systems[index[order[j]]]
			if access.Conflicts(a.Access, b.Access) {
				if err := graph.AddEdge(a.Name, b.Name); err != nil {
					return nil, err
				}
			}
		}
	}

	layers, err := graph.Layers()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderingCycle, err)
	}
	sorted, err := graph.Sort()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderingCycle, err)
	}

	plan := &Plan{
		Phase:     phase,
		Repeating: repeating,
		Systems:   append([]System(nil), systems...),
		Groups:    make([][]int, len(layers)),
		Deps:      make([][]int, len(systems)),
		Order:     make([]int, len(sorted)),
	}
	for k, name := range sorted {
		plan.Order[k] = index[name]
	}
	for g, layer := range layers {
		for _, name := range layer {
			plan.Groups[g] = append(plan.Groups[g], index[name])
		}
	}
	for i, sys := range systems {
		deps, err := graph.Dependencies(sys.Name)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			plan.Deps[i] = append(plan.Deps[i], index[d])
		}
	}

	if err := plan.verify(); err != nil {
		return nil, err
	}
	return plan, nil
}

// verify checks that no group holds two conflicting systems.
func (p *Plan) verify() error {
	for g, group := range p.Groups {
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				a, b := p.Systems[group[i]], p.Systems[group[j]]
				if on, ok := access.Conflict(a.Access, b.Access); ok {
					return &AccessConflictError{Group: g, First: a.Name, Second: b.Name, On: on}
				}
			}
		}
	}
	return nil
}

func validateSystem(sys System) error {
	if sys.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSystem)
	}
	if sys.Run == nil {
		return fmt.Errorf("%w: %q has no logic", ErrInvalidSystem, sys.Name)
	}
	return nil
}

// Invoke runs system i once. A returned error or a panic is reported as a
// *SystemFailure carrying the plan's phase and the tick from ctx.
func (p *Plan) Invoke(ctx context.Context, i int, st *state.State) (err error) {
	sys := &p.Systems[i]
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic: %v", r)
			if rErr, ok := r.(error); ok {
				cause = fmt.Errorf("panic: %w", rErr)
			}
			err = &SystemFailure{
				System: sys.Name,
				Phase:  p.Phase,
				Tick:   TickFrom(ctx),
				Err:    cause,
				Panic:  r,
				Stack:  debug.Stack(),
			}
		}
	}()

	if runErr := sys.Run(ctx, st); runErr != nil {
		var failure *SystemFailure
		if errors.As(runErr, &failure) {
			return runErr
		}
		return &SystemFailure{System: sys.Name, Phase: p.Phase, Tick: TickFrom(ctx), Err: runErr}
	}
	return nil
}

type tickKey struct{}

// WithTick returns a context carrying the tick number being executed.
func WithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, tickKey{}, tick)
}

// TickFrom returns the tick number stored in ctx, or zero.
func TickFrom(ctx context.Context) uint64 {
	tick, _ := ctx.Value(tickKey{}).(uint64)
	return tick
}
