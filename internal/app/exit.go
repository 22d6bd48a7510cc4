package app

import (
	"github.com/vk/tickgrid/internal/access"
	"github.com/vk/tickgrid/internal/state"
)

// AppExit asks the run driver to stop after the current tick. It carries no
// data; systems send it through the State's event queue.
type AppExit struct{}

// ExitAccess is the access a system needs to call RequestExit.
func ExitAccess() access.Decl {
	return access.Write[state.Events[AppExit]]()
}

// RequestExit queues an AppExit event.
func RequestExit(st *state.State) {
	state.Send(st.Resources, AppExit{})
}

// ExitRequested reports whether an AppExit event is pending.
func ExitRequested(st *state.State) bool {
	return state.EventsOf[AppExit](st.Resources).Len() > 0
}

// consumeExit drains pending AppExit events and reports whether there were
// any, so that the next Run starts with an empty queue.
func consumeExit(st *state.State) bool {
	return len(state.EventsOf[AppExit](st.Resources).Drain()) > 0
}
