package dncore

import (
	"sync"

	"github.com/open-control-systems/dnssd-hub/components/status"
)

// State is a browser life-cycle state.
type State int

const (
	// StateCreated - the browser is ready to be started.
	StateCreated State = iota

	// StateStarted - the browser is running.
	StateStarted

	// StateStopped - the browser was stopped.
	StateStopped

	// StateDestroyed - the browser was destroyed.
	StateDestroyed
)

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	default:
		return "<none>"
	}
}

// Lifecycle guards browser state transitions.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Start moves created browser to the started state.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateCreated {
		return status.StatusInvalidState
	}

	l.state = StateStarted

	return nil
}

// Stop moves the browser to the stopped state.
//
// Returns the previous state, nothing is changed for the destroyed browser.
func (l *Lifecycle) Stop() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state
	if prev != StateDestroyed {
		l.state = StateStopped
	}

	return prev
}

// Destroy moves the browser to the destroyed state.
//
// Returns the previous state.
func (l *Lifecycle) Destroy() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state
	l.state = StateDestroyed

	return prev
}
