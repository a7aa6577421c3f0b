// Package mirror forwards channel volume and mute changes to PipeWire nodes
// through pw-cli.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/config"
	"github.com/james-see/jackmixercc/pkg/mixer"
)

// ErrMirrorSink wraps every PipeWire failure
var ErrMirrorSink = errors.New("pipewire mirror failed")

// DefaultQueueSize is the number of pending changes kept before new ones are dropped
const DefaultQueueSize = 64

var nodeID = regexp.MustCompile(`id\s([0-9]*)`)

// Runner runs pw-cli and returns its standard output
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// PWCLI runs the pw-cli binary from PATH
func PWCLI(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pw-cli", args...).Output()
}

// Resolve looks up the node id of every mapping and returns them keyed by the
// normalized channel name. Any unknown node fails the whole lookup.
func Resolve(ctx context.Context, run Runner, maps []config.PipeWireMap) (map[string]string, error) {
	ids := make(map[string]string, len(maps))
	for _, m := range maps {
		out, err := run(ctx, "ls", m.Node)
		if err != nil {
			return nil, fmt.Errorf("%w: pw-cli ls %s: %w", ErrMirrorSink, m.Node, err)
		}
		match := nodeID.FindSubmatch(out)
		if match == nil || len(match[1]) == 0 {
			return nil, fmt.Errorf("%w: device not found: %s", ErrMirrorSink, m.Node)
		}
		ids[mixer.NormalizeName(m.Channel)] = string(match[1])
	}
	return ids, nil
}

// Attach sets the mirror reference of every channel that has a resolved node
func Attach(channels []mixer.Channel, ids map[string]string) {
	for i := range channels {
		if id, ok := ids[mixer.NormalizeName(channels[i].Name)]; ok {
			channels[i].Mirror = id
		}
	}
}

// Props renders the pw-cli property block for a change. Volume follows a
// cubic curve; mute maps to a boolean.
func Props(kind mixer.PropertyKind, value int) string {
	if kind == mixer.Volume {
		v := strconv.FormatFloat(math.Pow(float64(mixer.Clamp(value))/mixer.MaxValue, 3), 'f', -1, 64)
		return "volume:" + v + ", monitorVolumes:[" + v + ", " + v + "]"
	}
	sw := strconv.FormatBool(value != 0)
	return "mute:" + sw + ", monitorMute:" + sw
}

type change struct {
	node  string
	kind  mixer.PropertyKind
	value int
}

// Sink applies changes on a single worker goroutine. Notify never blocks;
// changes arriving while the queue is full are dropped.
type Sink struct {
	run   Runner
	queue chan change
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
	log   *zap.Logger
}

// NewSink starts a sink worker
func NewSink(run Runner, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Sink{
		run:   run,
		queue: make(chan change, DefaultQueueSize),
		done:  make(chan struct{}),
		log:   log,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Notify queues a change for the node
func (s *Sink) Notify(ref string, kind mixer.PropertyKind, value int) {
	if ref == "" || kind == mixer.Solo {
		return
	}
	select {
	case <-s.done:
	case s.queue <- change{node: ref, kind: kind, value: value}:
	default:
		s.log.Warn("pipewire queue full, dropping change",
			zap.String("node", ref), zap.Stringer("kind", kind), zap.Int("value", value))
	}
}

// Close stops the worker. Pending changes are discarded.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case c := <-s.queue:
			if err := s.apply(c); err != nil {
				s.log.Error("pipewire control failed", zap.Error(err))
			}
		}
	}
}

func (s *Sink) apply(c change) error {
	prop := Props(c.kind, c.value)
	if _, err := s.run(context.Background(), "set-param "+c.node+" Props { "+prop+" }"); err != nil {
		return fmt.Errorf("%w: node %s: %w", ErrMirrorSink, c.node, err)
	}
	s.log.Debug("pipewire control",
		zap.String("node", c.node), zap.Stringer("kind", c.kind), zap.Int("value", c.value), zap.String("prop", prop))
	return nil
}
