// Package executor provides the interchangeable backends that run a compiled
// schedule plan: Sequential, ThreadPool and Cooperative. All of them execute
// every system exactly once per Run and return only when the tick is over;
// they differ only in how much of the plan they overlap.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vk/tickgrid/internal/options"
	"github.com/vk/tickgrid/internal/schedule"
)

// Backend selects the concurrency strategy. It is fixed when a runtime is
// built and shared by all of its schedules.
type Backend string

const (
	BackendSequential  Backend = "sequential"
	BackendThreadPool  Backend = "thread_pool"
	BackendCooperative Backend = "cooperative"
)

// DefaultBackend is used when no backend is configured.
const DefaultBackend = BackendThreadPool

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("executor is closed")

// Backends lists every supported backend.
func Backends() []Backend {
	return []Backend{BackendSequential, BackendThreadPool, BackendCooperative}
}

// ParseBackend converts a configuration string into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return DefaultBackend, nil
	case BackendSequential, BackendThreadPool, BackendCooperative:
		return b, nil
	default:
		return "", fmt.Errorf("unknown executor backend %q", s)
	}
}

// New returns the factory that builds the given backend for each schedule.
// Options are validated when the factory runs, so a bad configuration surfaces
// from schedule initialization and leaves the slot empty.
func New(backend Backend, opts options.Options) schedule.NewExecutorFunc {
	return func(ctx context.Context, phase string, repeating bool) (schedule.Executor, error) {
		switch backend {
		case BackendSequential:
			if err := opts.Validate(); err != nil {
				return nil, err
			}
			return NewSequential(), nil
		case BackendThreadPool, "":
			return NewThreadPool(ctx, phase, opts)
		case BackendCooperative:
			return NewCooperative(opts)
		default:
			return nil, fmt.Errorf("unknown executor backend %q", backend)
		}
	}
}

// firstFailure returns the lowest-indexed non-nil error, joined with the rest
// so that errors.As still finds every SystemFailure.
func firstFailure(errs []error) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return failed[0]
	default:
		return errors.Join(failed...)
	}
}
