package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

const ticksPerQuarter = 480

// ExportSMF writes a snapshot as a single-track Standard MIDI File holding one
// control-change per entry, so a session can be replayed by any MIDI player.
func ExportSMF(snap Snapshot, w io.Writer) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(RootElement))
	if snap.Modified != "" {
		track.Add(0, smf.MetaText(snap.Modified))
	}
	for _, e := range snap.Entries {
		if e.CC <= 0 || e.CC > 127 {
			continue
		}
		track.Add(0, midi.ControlChange(0, uint8(e.CC), uint8(mixer.Clamp(e.Value))))
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}

// ImportSMF reads the control-changes of a Standard MIDI File into a
// snapshot. Entries keep the order of the first event for each control-id;
// a later event for the same control-id overrides the value.
func ImportSMF(r io.Reader) (Snapshot, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	var entries []Entry
	index := make(map[int]int)
	for _, track := range s.Tracks {
		for _, ev := range track {
			var ch, cc, val uint8
			if !midi.Message(ev.Message).GetControlChange(&ch, &cc, &val) {
				continue
			}
			if cc == 0 {
				continue
			}
			if i, ok := index[int(cc)]; ok {
				entries[i].Value = int(val)
				continue
			}
			index[int(cc)] = len(entries)
			entries = append(entries, Entry{CC: int(cc), Value: int(val)})
		}
	}
	if len(entries) == 0 {
		return Snapshot{}, errors.New("no control-change events found")
	}
	return NewSnapshot(entries, time.Now()), nil
}

// ExportSMFBytes is ExportSMF into a byte slice
func ExportSMFBytes(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := ExportSMF(snap, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
