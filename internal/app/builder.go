package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vk/tickgrid/internal/executor"
	"github.com/vk/tickgrid/internal/options"
	"github.com/vk/tickgrid/internal/schedule"
	"github.com/vk/tickgrid/internal/state"
)

// Builder collects systems, resources and settings before an App exists.
// Its methods return the Builder so calls can be chained.
type Builder struct {
	logger          *slog.Logger
	backend         executor.Backend
	execOpts        options.Options
	healthcheckPort int
	runner          Runner

	startup []schedule.System
	main    []schedule.System
	setup   []func(*state.State)
}

// Build starts a new App description with empty schedules, the default
// backend and the RunOnce driver.
func Build() *Builder {
	return &Builder{
		backend:  executor.DefaultBackend,
		execOpts: options.New(),
		runner:   RunOnce,
	}
}

// AddSystem appends a system to the main schedule.
func (b *Builder) AddSystem(systems ...schedule.System) *Builder {
	b.main = append(b.main, systems...)
	return b
}

// AddStartupSystem appends a system to the startup schedule.
func (b *Builder) AddStartupSystem(systems ...schedule.System) *Builder {
	b.startup = append(b.startup, systems...)
	return b
}

// WithState registers a function that prepares the State before any phase
// runs, e.g. to insert resources of several types.
func (b *Builder) WithState(fn func(st *state.State)) *Builder {
	if fn == nil {
		panic("app: WithState called with a nil function")
	}
	b.setup = append(b.setup, fn)
	return b
}

// InsertResource registers v as the initial value of resource T.
func InsertResource[T any](b *Builder, v T) *Builder {
	return b.WithState(func(st *state.State) {
		state.Insert(st.Resources, v)
	})
}

// SetRunner replaces the run driver.
func (b *Builder) SetRunner(r Runner) *Builder {
	if r == nil {
		panic("app: SetRunner called with a nil runner")
	}
	b.runner = r
	return b
}

// WithBackend selects the executor backend for both phases.
func (b *Builder) WithBackend(backend executor.Backend) *Builder {
	b.backend = backend
	return b
}

// WithExecutorOptions sets the options passed to every executor.
func (b *Builder) WithExecutorOptions(opts options.Options) *Builder {
	b.execOpts = opts
	return b
}

// WithLogger sets the App's logger. Without one, slog.Default is used.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithHealthcheckPort serves /health on port while Run is active. Zero
// disables the server.
func (b *Builder) WithHealthcheckPort(port int) *Builder {
	b.healthcheckPort = port
	return b
}

// App validates the description and creates the App. Schedule errors such as
// duplicate system names are reported here; ordering and access errors
// surface when a phase is first initialized.
func (b *Builder) App() (*App, error) {
	backend, err := executor.ParseBackend(string(b.backend))
	if err != nil {
		return nil, err
	}
	if b.healthcheckPort < 0 || b.healthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", b.healthcheckPort)
	}

	startup, err := newSchedule(PhaseStartup, b.startup)
	if err != nil {
		return nil, err
	}
	main, err := newSchedule(PhaseMain, b.main)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	st := state.New()
	for _, fn := range b.setup {
		fn(st)
	}

	logger.Debug("App built.",
		"backend", backend,
		"threads", b.execOpts.Threads,
		"startup_systems", startup.Len(),
		"main_systems", main.Len(),
		"resources", st.Resources.Len(),
	)

	return &App{
		logger:          logger,
		state:           st,
		backend:         backend,
		execOpts:        b.execOpts,
		healthcheckPort: b.healthcheckPort,
		startup:         startup,
		main:            main,
		runner:          b.runner,
	}, nil
}

// Run builds the App, runs it and closes it.
func (b *Builder) Run(ctx context.Context) error {
	a, err := b.App()
	if err != nil {
		return err
	}
	return errors.Join(a.Run(ctx), a.Close())
}

func newSchedule(phase string, systems []schedule.System) (*schedule.Schedule, error) {
	s := schedule.New()
	for _, sys := range systems {
		if err := s.AddSystem(sys); err != nil {
			return nil, fmt.Errorf("%s schedule: %w", phase, err)
		}
	}
	return s, nil
}
