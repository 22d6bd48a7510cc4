package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/tickgrid/internal/executor"
	"github.com/vk/tickgrid/internal/options"
)

// Run driver modes.
const (
	RunnerOnce     = "once"
	RunnerLoop     = "loop"
	RunnerSocketIO = "socketio"
)

// Config holds every setting a tickgrid process needs before it builds its
// App.
type Config struct {
	LogLevel  string
	LogFormat string

	Backend   string
	Threads   int
	StackSize int

	Runner          string
	Interval        time.Duration
	MaxTicks        uint64
	ContinueOnError bool

	HealthcheckPort int

	SocketIO SocketIO
}

// SocketIO configures the socket.io run driver.
type SocketIO struct {
	URL            string
	Namespace      string
	TickEvent      string
	ExitEvent      string
	AckEvent       string
	ConnectTimeout time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Backend:   string(executor.DefaultBackend),
		Runner:    RunnerOnce,
		SocketIO: SocketIO{
			Namespace:      "/",
			TickEvent:      "tick",
			ExitEvent:      "exit",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// ExecutorOptions returns the executor options described by c.
func (c *Config) ExecutorOptions() options.Options {
	return options.New().WithThreads(c.Threads).WithStackSize(c.StackSize)
}

// Validate checks enumerations and ranges. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.LogFormat))
	}

	if _, err := executor.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if err := c.ExecutorOptions().Validate(); err != nil {
		errs = append(errs, err)
	}

	switch c.Runner {
	case RunnerOnce, RunnerLoop:
	case RunnerSocketIO:
		if c.SocketIO.URL == "" {
			errs = append(errs, errors.New("runner 'socketio' requires a socketio url"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid runner mode %q: must be 'once', 'loop', or 'socketio'", c.Runner))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("invalid runner interval %s: must not be negative", c.Interval))
	}
	if c.SocketIO.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid socketio connect timeout %s: must not be negative", c.SocketIO.ConnectTimeout))
	}

	if c.HealthcheckPort < 0 || c.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid healthcheck port %d", c.HealthcheckPort))
	}

	return errors.Join(errs...)
}
