// Package schedule describes what runs in a phase and compiles that
// description into an executable plan.
//
// # Lifecycle
//
// A Schedule starts empty and is populated by the builder with AddSystem.
// The first Initialize call against an empty Slot compiles the systems into a
// Plan, constructs the phase's Executor and seals the schedule; later calls
// against the same Slot are no-ops. A failed Initialize leaves the Slot empty.
//
// # Compilation
//
// Every system becomes a node in a dependency graph (package dag). Edges come
// from two sources:
//
//   - explicit ordering: System.After names systems that must finish first;
//   - declared access: for every pair of systems whose access conflicts, the
//     one earlier in the explicit order (declaration order breaking ties)
//     runs first.
//
// The graph is layered by longest path into Plan.Groups. Members of a group
// share no edge and therefore never conflict; the compiled plan is checked for
// this and an AccessConflictError is returned if it is violated.
//
// # Failures
//
// Plan.Invoke converts both returned errors and panics into a
// *SystemFailure tagged with the phase and tick. Executors use it for every
// system call.
package schedule
