// Package session persists the channel map between runs. Snapshots are
// written to a fast scratch file while running and promoted to the durable
// file on shutdown.
package session

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

// RootElement is the root tag of a session file
const RootElement = "jack_mixer_cc"

// TimeLayout formats the modified attribute
const TimeLayout = time.ANSIC

var (
	// ErrSessionLoad is returned when a session file cannot be read or parsed
	ErrSessionLoad = errors.New("session could not be restored")
	// ErrSessionSave is returned when a session file cannot be written
	ErrSessionSave = errors.New("session could not be saved")
)

// Entry is one persisted control value
type Entry struct {
	CC    int `xml:"cc,attr"`
	Value int `xml:"val,attr"`
}

// Snapshot is the content of a session file
type Snapshot struct {
	XMLName  xml.Name
	Modified string  `xml:"modified,attr,omitempty"`
	Entries  []Entry `xml:"channel"`
}

// NewSnapshot builds a snapshot from entries stamped with t
func NewSnapshot(entries []Entry, t time.Time) Snapshot {
	return Snapshot{
		XMLName:  xml.Name{Local: RootElement},
		Modified: t.Format(TimeLayout),
		Entries:  entries,
	}
}

// Capture snapshots every bound property of the engine
func Capture(e *mixer.Engine, t time.Time) Snapshot {
	props := e.Bound()
	entries := make([]Entry, 0, len(props))
	for _, p := range props {
		entries = append(entries, Entry{CC: p.CC, Value: p.Value})
	}
	return NewSnapshot(entries, t)
}

// Read parses a session file
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrSessionLoad, err)
	}
	var snap Snapshot
	if err := xml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: parse %s: %w", ErrSessionLoad, path, err)
	}
	return snap, nil
}

// Write stores a snapshot at path, replacing any previous file atomically
func Write(path string, snap Snapshot) error {
	if snap.XMLName.Local == "" {
		snap.XMLName.Local = RootElement
	}
	data, err := xml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrSessionSave, err)
	}
	return writeFile(path, append([]byte(xml.Header), data...))
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionSave, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSessionSave, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSessionSave, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrSessionSave, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrSessionSave, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionSave, err)
	}
	return nil
}
