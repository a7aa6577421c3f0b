package midiport

import (
	"context"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

// DefaultPeriod is the pump cycle, close to one audio buffer
const DefaultPeriod = 2 * time.Millisecond

// Pump sends the engine's outbound queue to the current output every period.
// Messages drained while no output is open are dropped.
type Pump struct {
	engine *mixer.Engine
	period time.Duration
	log    *zap.Logger

	mu  sync.Mutex
	out Output
	buf []mixer.Message
}

// NewPump creates a pump over the engine queue
func NewPump(engine *mixer.Engine, period time.Duration, log *zap.Logger) *Pump {
	if period <= 0 {
		period = DefaultPeriod
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pump{
		engine: engine,
		period: period,
		log:    log,
		buf:    make([]mixer.Message, 0, 64),
	}
}

// SetOutput switches the destination; nil detaches it
func (p *Pump) SetOutput(out Output) {
	p.mu.Lock()
	p.out = out
	p.mu.Unlock()
}

// Run drains and sends until ctx is cancelled
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush runs one pump cycle and returns the number of messages sent
func (p *Pump) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = p.engine.Drain(p.buf)
	if len(p.buf) == 0 {
		return 0
	}
	if p.out == nil {
		p.log.Debug("no midi output, dropping messages", zap.Int("count", len(p.buf)))
		return 0
	}

	sent := 0
	for _, m := range p.buf {
		msg := midi.ControlChange(0, uint8(m.CC), uint8(mixer.Clamp(m.Value)))
		if err := p.out.Send(msg); err != nil {
			p.log.Error("midi send failed", zap.Int("cc", m.CC), zap.Int("value", m.Value), zap.Error(err))
			continue
		}
		p.log.Debug("midi out", zap.Int("status", m.Status), zap.Int("cc", m.CC), zap.Int("value", m.Value))
		sent++
	}
	return sent
}
