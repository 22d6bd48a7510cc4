package schedule

import (
	"context"

	"github.com/vk/tickgrid/internal/access"
	"github.com/vk/tickgrid/internal/state"
)

// Func is the logic of a system. It is called once per tick with the shared
// state and must only touch the parts of it the system declared.
type Func func(ctx context.Context, st *state.State) error

// System describes one unit of logic and the shared state it needs.
type System struct {
	// Name identifies the system within its schedule and in logs and errors.
	Name string
	// Run is invoked once per tick.
	Run Func
	// Access declares what Run reads and writes.
	Access access.Access
	// After lists systems, by name, that must finish before this one starts,
	// whatever their declared access.
	After []string
	// Init, when set, runs once while the schedule is initialized. Systems use
	// it to register resources they expect to exist.
	Init func(st *state.State) error
}

// NewSystem is shorthand for a System with the given access declarations.
func NewSystem(name string, fn Func, decls ...access.Decl) System {
	return System{Name: name, Run: fn, Access: access.Of(decls...)}
}

// RunsAfter returns a copy of s ordered after the named systems.
func (s System) RunsAfter(names ...string) System {
	s.After = append(append([]string(nil), s.After...), names...)
	return s
}

// WithInit returns a copy of s with an initialization hook.
func (s System) WithInit(fn func(st *state.State) error) System {
	s.Init = fn
	return s
}
