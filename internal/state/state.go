// Package state holds the single mutable container every system runs
// against: a World of entities and components, plus a typed registry of
// singleton Resources.
//
// The package does not arbitrate between systems. Each system declares which
// parts of the State it reads and writes (see package access) and the
// executor guarantees that no two running systems hold conflicting access.
// The locks inside World and Resources only keep their maps consistent.
package state

// State is the shared container owned by one runtime. It outlives every
// schedule and executor and is handed to each system invocation by pointer.
type State struct {
	World     *World
	Resources *Resources
}

// New creates an empty State.
func New() *State {
	return &State{
		World:     NewWorld(),
		Resources: NewResources(),
	}
}
