// Package link tracks the connection of the two MIDI directions and fires a
// one-time resynchronization once both are live.
package link

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Port identifies one MIDI direction
type Port int

const (
	In Port = iota
	Out
)

func (p Port) String() string {
	switch p {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("port(%d)", int(p))
	}
}

// State is the connection progress
type State int

const (
	Disconnected State = iota
	HalfConnected
	Synced
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case HalfConnected:
		return "half-connected"
	case Synced:
		return "synced"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Tracker is the connection state machine. Synced is terminal: the sync
// callback runs exactly once and later events are ignored.
type Tracker struct {
	mu        sync.Mutex
	connected [2]bool
	state     State
	onSync    func()
	log       *zap.Logger
}

// NewTracker creates a tracker calling onSync when both ports are connected.
// onSync may be nil.
func NewTracker(onSync func(), log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{onSync: onSync, log: log}
}

// PortConnected records a connection of port and returns the resulting state
func (t *Tracker) PortConnected(port Port) State {
	if port != In && port != Out {
		t.log.Warn("ignoring event for unknown port", zap.Stringer("port", port))
		return t.State()
	}

	t.mu.Lock()
	if t.state == Synced {
		t.mu.Unlock()
		t.log.Debug("port connected after sync, ignored", zap.Stringer("port", port))
		return Synced
	}
	t.connected[port] = true
	fire := false
	switch {
	case t.connected[In] && t.connected[Out]:
		t.state = Synced
		fire = true
	default:
		t.state = HalfConnected
	}
	state := t.state
	t.mu.Unlock()

	t.log.Info("midi port connected", zap.Stringer("port", port), zap.Stringer("state", state))
	// run outside the lock so the callback may query the tracker
	if fire && t.onSync != nil {
		t.onSync()
	}
	return state
}

// PortDisconnected logs a disconnection. The state never moves backwards.
func (t *Tracker) PortDisconnected(port Port) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.Info("midi port disconnected", zap.Stringer("port", port), zap.Stringer("state", t.state))
	return t.state
}

// State returns the current state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
