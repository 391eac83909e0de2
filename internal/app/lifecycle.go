package app

import (
	"context"
	"sync"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// State represents the lifecycle state of an upload worker.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFinishing
	StateDone
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateActive:
		return "Active"
	case StateFinishing:
		return "Finishing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle manages the state machine for one upload worker.
// Done is closed once a terminal state is reached.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	done         chan struct{}
	logger       ports.Logger
	eventEmitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateIdle.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateIdle,
		done:         make(chan struct{}),
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateActive || to == StateFailed
	case StateActive:
		return to == StateFinishing || to == StateFailed
	case StateFinishing:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// TransitionTo attempts to transition to a new state.
// Returns domain.ErrInvalidState if the transition is not valid.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !validTransition(oldState, newState) {
		l.mu.Unlock()
		return domain.ErrInvalidState
	}
	l.state = newState
	if newState.Terminal() {
		close(l.done)
	}
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)

	return nil
}

// Done returns a channel closed when the worker reaches Done or Failed.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until a terminal state is reached or ctx is done.
func (l *Lifecycle) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
