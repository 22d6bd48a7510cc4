package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrScheduleSealed is returned when a system is added after the schedule
	// was initialized.
	ErrScheduleSealed = errors.New("schedule is already initialized")
	// ErrInvalidSystem is returned for a descriptor without a name or logic.
	ErrInvalidSystem = errors.New("invalid system descriptor")
	// ErrDuplicateSystem is returned when two systems share a name.
	ErrDuplicateSystem = errors.New("duplicate system name")
	// ErrUnknownDependency is returned when After names a missing system.
	ErrUnknownDependency = errors.New("unknown system in ordering constraint")
	// ErrOrderingCycle is returned when ordering constraints form a cycle.
	ErrOrderingCycle = errors.New("ordering constraints form a cycle")
	// ErrNotInitialized is returned when a slot is run before Initialize.
	ErrNotInitialized = errors.New("schedule is not initialized")
	// ErrNoExecutor is returned when Initialize is given no executor factory.
	ErrNoExecutor = errors.New("no executor factory")
)

// AccessConflictError reports two systems compiled into the same group
// although their declared access conflicts.
type AccessConflictError struct {
	Group  int
	First  string
	Second string
	On     string
}

// Error implements the error interface for AccessConflictError.
func (e *AccessConflictError) Error() string {
	return fmt.Sprintf("systems %q and %q conflict on %s but share group %d", e.First, e.Second, e.On, e.Group)
}

// SystemFailure reports a system that returned an error or panicked during
// a tick.
type SystemFailure struct {
	System string
	Phase  string
	Tick   uint64
	// Err is the error returned by the system, or one describing the panic.
	Err error
	// Panic holds the recovered value when the system panicked.
	Panic any
	// Stack is the goroutine stack captured at the panic.
	Stack []byte
}

// Error implements the error interface for SystemFailure.
func (e *SystemFailure) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("system %q panicked in %s tick %d: %v", e.System, e.Phase, e.Tick, e.Panic)
	}
	return fmt.Sprintf("system %q failed in %s tick %d: %v", e.System, e.Phase, e.Tick, e.Err)
}

// Unwrap returns the underlying error.
func (e *SystemFailure) Unwrap() error {
	return e.Err
}
