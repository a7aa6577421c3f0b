package mixer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultStep is the volume change applied by IncreaseVolume and DecreaseVolume
const DefaultStep = 2

// MirrorSink receives volume and mute changes for channels mirrored to an
// external device. Notify must not block.
type MirrorSink interface {
	Notify(ref string, kind PropertyKind, value int)
}

// Engine is the shared state of the bridge: the channel map, the outbound
// queue and the dirty flag. The MIDI side and the control side both go
// through it; every critical section is a short, allocation-free copy or
// update with no I/O under the lock.
type Engine struct {
	mu       sync.Mutex
	channels []Channel
	index    map[string]int
	queue    []Message

	dirty  atomic.Bool
	closed atomic.Bool

	step   int
	mirror MirrorSink
	log    *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithStep sets the relative volume step
func WithStep(step int) Option {
	return func(e *Engine) {
		e.step = step
	}
}

// WithMirror sets the device mirroring sink
func WithMirror(sink MirrorSink) Option {
	return func(e *Engine) {
		e.mirror = sink
	}
}

// WithLogger sets the engine logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates an engine over the given channels. Names are normalized;
// when two channels share a name the first one wins.
func NewEngine(channels []Channel, opts ...Option) *Engine {
	e := &Engine{
		channels: make([]Channel, len(channels)),
		index:    make(map[string]int, len(channels)),
		queue:    make([]Message, 0, 64),
		step:     DefaultStep,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	copy(e.channels, channels)
	for i := range e.channels {
		e.channels[i].Name = NormalizeName(e.channels[i].Name)
		if _, exists := e.index[e.channels[i].Name]; !exists {
			e.index[e.channels[i].Name] = i
		}
	}
	return e
}

// Apply executes a control command on the named channel. The targeted
// property is updated, a control-change echo is queued for the surface, and
// the complete post-update status of the channel is returned. An unknown name
// returns ErrNotFound with no side effects. Apply does not mark the session
// dirty; the change is saved once the surface reports it back through Ingest.
func (e *Engine) Apply(name string, cmd Command) (Status, error) {
	if e.closed.Load() {
		return Status{}, ErrClosed
	}
	if !cmd.Valid() {
		return Status{}, fmt.Errorf("%w: %s", ErrInvalidCommand, cmd)
	}

	key := NormalizeName(name)

	e.mu.Lock()
	i, ok := e.index[key]
	if !ok {
		e.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	ch := &e.channels[i]
	prop := ch.Property(cmd.Target())
	prop.Value = transition(prop.Value, cmd, e.step)
	// unbound properties have no control to echo to
	if prop.Bound() {
		e.queue = append(e.queue, ControlChange(prop.CC, prop.Value))
	}
	status := ch.Status()
	e.mu.Unlock()

	e.log.Debug("set state",
		zap.String("channel", status.Name),
		zap.Stringer("command", cmd),
		zap.Int("volume", status.Volume),
		zap.Bool("mute", status.Mute),
		zap.Bool("solo", status.Solo),
	)
	return status, nil
}

func transition(current int, cmd Command, step int) int {
	switch cmd.Kind {
	case SetVolume:
		return Clamp(cmd.Value)
	case IncreaseVolume:
		return Clamp(current + step)
	case DecreaseVolume:
		return Clamp(current - step)
	case MuteChannel:
		return MaxValue
	case UnmuteChannel:
		return MinValue
	case ToggleMute, ToggleSolo:
		if current == MaxValue {
			return MinValue
		}
		return MaxValue
	}
	return current
}

// Ingest records a value reported by the control surface. Channels are
// scanned in map order and properties in volume, mute, solo order; the first
// bound property with a matching control-id takes the raw value. It never
// queues an outbound message. It reports whether anything matched.
func (e *Engine) Ingest(cc, value int) bool {
	if cc == 0 {
		return false
	}

	e.mu.Lock()
	var (
		matched bool
		kind    PropertyKind
		ref     string
	)
scan:
	for i := range e.channels {
		ch := &e.channels[i]
		for _, k := range Kinds {
			if p := ch.Property(k); p.CC == cc {
				p.Value = value
				matched, kind, ref = true, k, ch.Mirror
				break scan
			}
		}
	}
	e.mu.Unlock()

	if !matched {
		return false
	}
	e.dirty.Store(true)
	if ref != "" && kind != Solo && e.mirror != nil {
		e.mirror.Notify(ref, kind, value)
	}
	return true
}

// Enqueue appends a control-change to the outbound queue directly
func (e *Engine) Enqueue(cc, value int) {
	e.mu.Lock()
	e.queue = append(e.queue, ControlChange(cc, value))
	e.mu.Unlock()
}

// Drain moves all pending outbound messages into buf and clears the queue.
// Passing the previous result back in avoids allocating on every call.
func (e *Engine) Drain(buf []Message) []Message {
	e.mu.Lock()
	buf = append(buf[:0], e.queue...)
	e.queue = e.queue[:0]
	e.mu.Unlock()
	return buf
}

// Pending returns the number of queued outbound messages
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Channels returns a copy of the channel map
func (e *Engine) Channels() []Channel {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Channel, len(e.channels))
	copy(out, e.channels)
	return out
}

// Status returns the state of the named channel
func (e *Engine) Status(name string) (Status, error) {
	key := NormalizeName(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[key]
	if !ok {
		return Status{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e.channels[i].Status(), nil
}

// Bound returns every bound property in channel, then volume/mute/solo order
func (e *Engine) Bound() []Property {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Property, 0, len(e.channels)*len(Kinds))
	for i := range e.channels {
		for _, k := range Kinds {
			if p := e.channels[i].Property(k); p.Bound() {
				out = append(out, *p)
			}
		}
	}
	return out
}

// Dirty reports whether there are changes not yet snapshotted
func (e *Engine) Dirty() bool {
	return e.dirty.Load()
}

// TakeDirty clears the dirty flag and reports whether it was set
func (e *Engine) TakeDirty() bool {
	return e.dirty.CompareAndSwap(true, false)
}

// Close makes the engine reject further commands. Ingest keeps working so the
// final snapshot reflects the surface.
func (e *Engine) Close() {
	e.closed.Store(true)
}

// Closed reports whether Close was called
func (e *Engine) Closed() bool {
	return e.closed.Load()
}
