package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

// DefaultInterval is how often the dirty flag is checked
const DefaultInterval = 10 * time.Second

// Store manages the scratch and durable session files
type Store struct {
	durable string
	scratch string
	log     *zap.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewStore creates a store over the durable and scratch paths
func NewStore(durable, scratch string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		durable: durable,
		scratch: scratch,
		log:     log,
		now:     time.Now,
	}
}

// Durable returns the durable file path
func (s *Store) Durable() string { return s.durable }

// Scratch returns the scratch file path
func (s *Store) Scratch() string { return s.scratch }

// Load restores the durable session into the engine. Each entry updates the
// channel map like an incoming MIDI event and is queued for the surface so
// the hardware reflects the restored state. Failures leave the engine as it
// was and are only logged by the caller.
func (s *Store) Load(e *mixer.Engine) (int, error) {
	snap, err := Read(s.durable)
	if err != nil {
		s.log.Info("session could not be restored", zap.String("path", s.durable), zap.Error(err))
		return 0, err
	}

	restored := Restore(e, snap)
	s.log.Info("session restored", zap.String("path", s.durable), zap.Int("entries", restored))
	return restored, nil
}

// Restore applies every bound entry of a snapshot to the engine and queues it
// for the surface. Values are taken as stored, like incoming MIDI; the MIDI
// pump clamps on send. It returns the number of entries applied.
func Restore(e *mixer.Engine, snap Snapshot) int {
	restored := 0
	for _, entry := range snap.Entries {
		if entry.CC == 0 {
			continue
		}
		e.Ingest(entry.CC, entry.Value)
		e.Enqueue(entry.CC, entry.Value)
		restored++
	}
	return restored
}

// FlushToScratch writes the current channel map to the scratch file
func (s *Store) FlushToScratch(e *mixer.Engine) error {
	snap := Capture(e, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := Write(s.scratch, snap); err != nil {
		return err
	}
	s.log.Debug("session saved", zap.String("path", s.scratch), zap.Int("entries", len(snap.Entries)))
	return nil
}

// Flush writes a scratch snapshot if the engine is dirty. The dirty flag is
// consumed before writing; a failed write is not retried until the next change.
func (s *Store) Flush(e *mixer.Engine) (bool, error) {
	if !e.TakeDirty() {
		return false, nil
	}
	return true, s.FlushToScratch(e)
}

// Run flushes dirty state every interval until ctx is done
func (s *Store) Run(ctx context.Context, e *mixer.Engine, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Flush(e); err != nil {
				s.log.Error("session could not be saved", zap.String("path", s.scratch), zap.Error(err))
			}
		}
	}
}

// PromoteToDurable copies the scratch snapshot to the durable file
func (s *Store) PromoteToDurable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.scratch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionSave, err)
	}
	if err := writeFile(s.durable, data); err != nil {
		return err
	}
	s.log.Info("session saved", zap.String("path", s.durable))
	return nil
}

// Shutdown writes pending changes to scratch and promotes scratch to durable.
// A missing scratch file means nothing changed this run and is not an error.
func (s *Store) Shutdown(e *mixer.Engine) error {
	if _, err := s.Flush(e); err != nil {
		s.log.Error("session could not be saved", zap.String("path", s.scratch), zap.Error(err))
	}
	err := s.PromoteToDurable()
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("no session changes to save")
		return nil
	}
	return err
}
