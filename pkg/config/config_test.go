package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

const jackMixerConfig = `<?xml version="1.0" ?>
<jack_mixer geometry="600x400" paned_position="0" visible="True">
  <input_channel name="Bass" type="Stereo" volume="0.0" balance="0.0" volume_midi_cc="10" balance_midi_cc="40" mute_midi_cc="11" solo_midi_cc="12"/>
  <input_channel name="MIC" type="Mono" volume_midi_cc="20" mute_midi_cc="21" solo_midi_cc="0"/>
  <output_channel name="Main" type="Stereo" volume_midi_cc="30" mute_midi_cc="31"/>
</jack_mixer>`

func TestParseChannels(t *testing.T) {
	channels, err := ParseChannels(strings.NewReader(jackMixerConfig))
	require.NoError(t, err)

	assert.Equal(t, []mixer.Channel{
		{Name: "bass", Volume: mixer.Property{CC: 10}, Mute: mixer.Property{CC: 11}, Solo: mixer.Property{CC: 12}},
		{Name: "mic", Volume: mixer.Property{CC: 20}, Mute: mixer.Property{CC: 21}},
		{Name: "main", Volume: mixer.Property{CC: 30}, Mute: mixer.Property{CC: 31}},
	}, channels)
}

func TestParseChannelsErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"no channels", `<jack_mixer></jack_mixer>`},
		{"missing volume", `<jack_mixer><input_channel name="a" mute_midi_cc="1"/></jack_mixer>`},
		{"bad mute", `<jack_mixer><input_channel name="a" volume_midi_cc="1" mute_midi_cc="x"/></jack_mixer>`},
		{"no name", `<jack_mixer><input_channel volume_midi_cc="1" mute_midi_cc="2"/></jack_mixer>`},
		{"truncated", `<jack_mixer><input_channel name="a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChannels(strings.NewReader(tt.xml))
			assert.Error(t, err)
		})
	}
}

func TestLoadChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte(jackMixerConfig), 0644))

	channels, err := LoadChannels(path)
	require.NoError(t, err)
	assert.Len(t, channels, 3)

	_, err = LoadChannels(filepath.Join(t.TempDir(), "missing.xml"))
	assert.ErrorIs(t, err, ErrConfigLoad)
}

func TestDuplicateControls(t *testing.T) {
	channels := []mixer.Channel{
		{Name: "a", Volume: mixer.Property{CC: 5}},
		{Name: "b", Volume: mixer.Property{CC: 6}, Mute: mixer.Property{CC: 5}},
	}
	dups := DuplicateControls(channels)
	require.Len(t, dups, 1)
	assert.Contains(t, dups[0], "cc 5")

	assert.Empty(t, DuplicateControls(channels[:1]))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "localhost", s.Listen.Host)
	assert.Equal(t, 9797, s.Listen.Port)
	assert.Equal(t, 2, s.Mixer.Step)
	assert.Equal(t, 10*time.Second, s.Session.Interval)
	assert.True(t, s.Session.Enabled)
	require.NoError(t, s.Validate())
	assert.False(t, strings.HasPrefix(s.Session.Durable, "~"))
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
listen:
  host: 0.0.0.0
  port: 9800
mixer:
  step: 4
session:
  interval: 30s
pipewire:
  - channel: mic
    node: alsa_input.usb-MIC
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("JMCC_PORT", "9900")
	t.Setenv("JMCC_SESSION", "false")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", s.Listen.Host)
	assert.Equal(t, 9900, s.Listen.Port)
	assert.Equal(t, 4, s.Mixer.Step)
	assert.Equal(t, 30*time.Second, s.Session.Interval)
	assert.False(t, s.Session.Enabled)
	assert.Equal(t, []PipeWireMap{{Channel: "mic", Node: "alsa_input.usb-MIC"}}, s.PipeWire)
	assert.Equal(t, "0.0.0.0:9900", s.Listen.Addr())
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigLoad)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"port", func(s *Settings) { s.Listen.Port = 0 }},
		{"step", func(s *Settings) { s.Mixer.Step = -1 }},
		{"interval", func(s *Settings) { s.Session.Interval = 0 }},
		{"scratch", func(s *Settings) { s.Session.Scratch = "" }},
		{"period", func(s *Settings) { s.MIDI.Period = 0 }},
		{"pipewire", func(s *Settings) { s.PipeWire = []PipeWireMap{{Channel: "mic"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(s)
			assert.ErrorIs(t, s.Validate(), ErrConfigLoad)
		})
	}
}

func TestParsePipeWireMap(t *testing.T) {
	m, err := ParsePipeWireMap("mic,alsa_input.usb-MICROPHONE")
	require.NoError(t, err)
	assert.Equal(t, PipeWireMap{Channel: "mic", Node: "alsa_input.usb-MICROPHONE"}, m)

	for _, bad := range []string{"mic", ",node", "mic,"} {
		_, err := ParsePipeWireMap(bad)
		assert.ErrorIs(t, err, ErrConfigLoad, bad)
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config/x.xml"), ExpandPath("~/.config/x.xml"))
	assert.Equal(t, "/dev/shm/a.xml", ExpandPath("/dev/shm/a.xml"))
	assert.Equal(t, "", ExpandPath(""))
}
