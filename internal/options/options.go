// Package options holds the executor configuration value shared by every
// backend. Only the thread-pool backend consumes the resolved pool settings;
// the other backends accept and ignore them.
package options

import (
	"fmt"
	"runtime"
)

// MaxThreads bounds the worker count a pool may be configured with.
const MaxThreads = 4096

// Options configures the concurrency backend. Zero values mean "use the
// backend default". Values are not checked until a backend builds itself
// from them.
type Options struct {
	// Threads is the number of workers in the pool (thread pool) or the number
	// of tasks allowed to hold the baton at once (cooperative).
	Threads int
	// StackSize is the requested per-worker stack size in bytes. Go grows
	// goroutine stacks on demand, so it is validated and reported but never
	// applied to the runtime.
	StackSize int
}

// New returns options with every value left at the backend default.
func New() Options {
	return Options{}
}

// WithThreads returns a copy of o with the thread count set.
func (o Options) WithThreads(n int) Options {
	o.Threads = n
	return o
}

// WithStackSize returns a copy of o with the stack size set.
func (o Options) WithStackSize(n int) Options {
	o.StackSize = n
	return o
}

// Validate reports values no backend can accept.
func (o Options) Validate() error {
	if o.Threads < 0 {
		return &ConfigurationError{Field: "threads", Value: o.Threads, Reason: "must not be negative"}
	}
	if o.Threads > MaxThreads {
		return &ConfigurationError{Field: "threads", Value: o.Threads, Reason: fmt.Sprintf("must not exceed %d", MaxThreads)}
	}
	if o.StackSize < 0 {
		return &ConfigurationError{Field: "stack_size", Value: o.StackSize, Reason: "must not be negative"}
	}
	return nil
}

// PoolConfig is the resolved configuration a worker pool is built from.
type PoolConfig struct {
	Workers   int
	StackSize int
}

// PoolConfig resolves o into concrete pool settings, substituting
// GOMAXPROCS for an unset thread count.
func (o Options) PoolConfig() (PoolConfig, error) {
	if err := o.Validate(); err != nil {
		return PoolConfig{}, err
	}
	cfg := PoolConfig{Workers: o.Threads, StackSize: o.StackSize}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return cfg, nil
}

// ConfigurationError reports an executor configuration value that a backend
// refused while constructing itself.
type ConfigurationError struct {
	Field  string
	Value  int
	Reason string
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid executor configuration: %s=%d %s", e.Field, e.Value, e.Reason)
}
