package midiport

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/link"
	"github.com/james-see/jackmixercc/pkg/mixer"
)

// DefaultScanInterval is how often the port lists are polled
const DefaultScanInterval = time.Second

// Watcher polls the driver for the configured ports, keeps them open while
// they exist and reports every change to the link tracker.
type Watcher struct {
	driver  Driver
	engine  *mixer.Engine
	pump    *Pump
	tracker *link.Tracker
	inName  string
	outName string
	log     *zap.Logger

	mu      sync.Mutex
	inPort  string
	stopIn  func()
	outPort string
	out     Output
}

// WatcherConfig holds the port name fragments to look for
type WatcherConfig struct {
	In  string
	Out string
}

// NewWatcher creates a watcher; ports with an empty fragment are never opened
func NewWatcher(driver Driver, engine *mixer.Engine, pump *Pump, tracker *link.Tracker, cfg WatcherConfig, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		driver:  driver,
		engine:  engine,
		pump:    pump,
		tracker: tracker,
		inName:  cfg.In,
		outName: cfg.Out,
		log:     log,
	}
}

// Run scans immediately and then every interval until ctx is cancelled.
// Open ports are closed on return.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Scan()
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-ticker.C:
			w.Scan()
		}
	}
}

// Scan reconciles the open ports with the driver's current port lists
func (w *Watcher) Scan() {
	ins := w.driver.Inputs()
	outs := w.driver.Outputs()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.scanIn(ins)
	w.scanOut(outs)
}

func (w *Watcher) scanIn(names []string) {
	if w.inPort != "" {
		if slices.Contains(names, w.inPort) {
			return
		}
		w.closeIn()
	}
	name, ok := Match(names, w.inName)
	if !ok {
		return
	}
	stop, err := w.driver.Listen(name, w.receive)
	if err != nil {
		w.log.Error("failed to open midi input", zap.String("port", name), zap.Error(err))
		return
	}
	w.inPort, w.stopIn = name, stop
	w.log.Info("midi input open", zap.String("port", name))
	w.report(link.In)
}

func (w *Watcher) scanOut(names []string) {
	if w.outPort != "" {
		if slices.Contains(names, w.outPort) {
			return
		}
		w.closeOut()
	}
	name, ok := Match(names, w.outName)
	if !ok {
		return
	}
	out, err := w.driver.Open(name)
	if err != nil {
		w.log.Error("failed to open midi output", zap.String("port", name), zap.Error(err))
		return
	}
	w.outPort, w.out = name, out
	if w.pump != nil {
		w.pump.SetOutput(out)
	}
	w.log.Info("midi output open", zap.String("port", name))
	w.report(link.Out)
}

// report is called with w.mu held, so the sync callback must not use the watcher
func (w *Watcher) report(port link.Port) {
	if w.tracker != nil {
		w.tracker.PortConnected(port)
	}
}

func (w *Watcher) receive(cc, value uint8) {
	if !w.engine.Ingest(int(cc), int(value)) {
		w.log.Debug("midi in, unmapped", zap.Uint8("cc", cc), zap.Uint8("value", value))
		return
	}
	w.log.Debug("midi in", zap.Uint8("cc", cc), zap.Uint8("value", value))
}

func (w *Watcher) closeIn() {
	if w.stopIn != nil {
		w.stopIn()
	}
	w.log.Info("midi input gone", zap.String("port", w.inPort))
	if w.tracker != nil {
		w.tracker.PortDisconnected(link.In)
	}
	w.inPort, w.stopIn = "", nil
}

func (w *Watcher) closeOut() {
	if w.pump != nil {
		w.pump.SetOutput(nil)
	}
	if w.out != nil {
		if err := w.out.Close(); err != nil {
			w.log.Warn("failed to close midi output", zap.String("port", w.outPort), zap.Error(err))
		}
	}
	w.log.Info("midi output gone", zap.String("port", w.outPort))
	if w.tracker != nil {
		w.tracker.PortDisconnected(link.Out)
	}
	w.outPort, w.out = "", nil
}

// Close releases any open port
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inPort != "" {
		w.closeIn()
	}
	if w.outPort != "" {
		w.closeOut()
	}
}

// Connected returns the names of the open input and output ports
func (w *Watcher) Connected() (in, out string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inPort, w.outPort
}
