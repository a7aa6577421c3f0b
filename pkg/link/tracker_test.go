package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerSyncsOnceBothPortsConnect(t *testing.T) {
	for _, order := range [][2]Port{{In, Out}, {Out, In}} {
		t.Run(order[0].String()+"-first", func(t *testing.T) {
			syncs := 0
			tr := NewTracker(func() { syncs++ }, nil)
			assert.Equal(t, Disconnected, tr.State())

			assert.Equal(t, HalfConnected, tr.PortConnected(order[0]))
			assert.Equal(t, 0, syncs)

			assert.Equal(t, Synced, tr.PortConnected(order[1]))
			assert.Equal(t, 1, syncs)
		})
	}
}

func TestTrackerRepeatedHalfConnection(t *testing.T) {
	syncs := 0
	tr := NewTracker(func() { syncs++ }, nil)

	tr.PortConnected(In)
	tr.PortConnected(In)
	assert.Equal(t, HalfConnected, tr.State())
	assert.Equal(t, 0, syncs)
}

func TestTrackerIgnoresEventsAfterSync(t *testing.T) {
	syncs := 0
	tr := NewTracker(func() { syncs++ }, nil)
	tr.PortConnected(In)
	tr.PortConnected(Out)

	tr.PortDisconnected(In)
	tr.PortDisconnected(Out)
	assert.Equal(t, Synced, tr.PortConnected(In))
	assert.Equal(t, Synced, tr.PortConnected(Out))
	assert.Equal(t, 1, syncs)
}

func TestTrackerUnknownPort(t *testing.T) {
	tr := NewTracker(nil, nil)
	assert.Equal(t, Disconnected, tr.PortConnected(Port(7)))
}

func TestTrackerCallbackMayQueryState(t *testing.T) {
	var seen State
	var tr *Tracker
	tr = NewTracker(func() { seen = tr.State() }, nil)
	tr.PortConnected(Out)
	tr.PortConnected(In)
	assert.Equal(t, Synced, seen)
}
