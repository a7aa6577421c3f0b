// Package config loads the bridge settings and the jack_mixer channel map.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfigLoad is returned for any configuration the bridge cannot start with
var ErrConfigLoad = errors.New("invalid configuration")

// Settings holds every tunable of the bridge
type Settings struct {
	Listen   ListenConfig  `yaml:"listen"`
	HTTP     HTTPConfig    `yaml:"http"`
	Mixer    MixerConfig   `yaml:"mixer"`
	Session  SessionConfig `yaml:"session"`
	MIDI     MIDIConfig    `yaml:"midi"`
	PipeWire []PipeWireMap `yaml:"pipewire"`
	Log      LogConfig     `yaml:"log"`
}

// ListenConfig holds the control server address
type ListenConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// Addr returns host:port
func (l ListenConfig) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// HTTPConfig holds the optional status API address; empty disables it
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MixerConfig points at the jack_mixer channel definitions
type MixerConfig struct {
	Config string `yaml:"config"`
	Step   int    `yaml:"step"`
}

// SessionConfig holds session persistence settings
type SessionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Durable  string        `yaml:"durable"`
	Scratch  string        `yaml:"scratch"`
	Interval time.Duration `yaml:"interval"`
}

// MIDIConfig selects the MIDI ports to bridge
type MIDIConfig struct {
	In     string        `yaml:"in"`  // input port name fragment
	Out    string        `yaml:"out"` // output port name fragment
	Period time.Duration `yaml:"period"`
	Scan   time.Duration `yaml:"scan"`
}

// PipeWireMap mirrors a mixer channel to a PipeWire node
type PipeWireMap struct {
	Channel string `yaml:"channel"`
	Node    string `yaml:"node"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// Default returns the settings used when nothing else is configured
func Default() *Settings {
	return &Settings{
		Listen: ListenConfig{
			Host:        "localhost",
			Port:        9797,
			ReadTimeout: 3 * time.Second,
		},
		Mixer: MixerConfig{
			Config: "~/.config/jack_mixer/config.xml",
			Step:   2,
		},
		Session: SessionConfig{
			Enabled:  true,
			Durable:  "~/.config/jack_mixer/jack_mixer_cc.xml",
			Scratch:  "/dev/shm/jack_mixer_cc.xml",
			Interval: 10 * time.Second,
		},
		MIDI: MIDIConfig{
			In:     "jack_mixer",
			Out:    "jack_mixer",
			Period: 2 * time.Millisecond,
			Scan:   time.Second,
		},
	}
}

// DefaultPath is the settings file read when none is given
const DefaultPath = "~/.config/jack_mixer/jack_mixer_cc.yaml"

// Load builds the settings from defaults, the settings file and environment.
// An explicit path must exist; the default path is optional.
func Load(path string) (*Settings, error) {
	s := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := s.loadFile(ExpandPath(path)); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
		}
	}

	s.applyEnv()
	return s, nil
}

func (s *Settings) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv() {
	if host := os.Getenv("JMCC_HOST"); host != "" {
		s.Listen.Host = host
	}
	if port := os.Getenv("JMCC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			s.Listen.Port = p
		}
	}
	if step := os.Getenv("JMCC_STEP"); step != "" {
		if v, err := strconv.Atoi(step); err == nil {
			s.Mixer.Step = v
		}
	}
	if enabled := os.Getenv("JMCC_SESSION"); enabled != "" {
		if v, err := strconv.ParseBool(enabled); err == nil {
			s.Session.Enabled = v
		}
	}
}

// Validate checks the settings and expands every path
func (s *Settings) Validate() error {
	if s.Listen.Port <= 0 || s.Listen.Port > 65535 {
		return fmt.Errorf("%w: port %d outside [1, 65535]", ErrConfigLoad, s.Listen.Port)
	}
	if s.Listen.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read timeout must be positive", ErrConfigLoad)
	}
	if s.Mixer.Step < 0 || s.Mixer.Step > 127 {
		return fmt.Errorf("%w: volume step %d outside [0, 127]", ErrConfigLoad, s.Mixer.Step)
	}
	if s.Mixer.Config == "" {
		return fmt.Errorf("%w: no jack_mixer config given", ErrConfigLoad)
	}
	if s.Session.Enabled {
		if s.Session.Durable == "" || s.Session.Scratch == "" {
			return fmt.Errorf("%w: session enabled without durable and scratch paths", ErrConfigLoad)
		}
		if s.Session.Interval <= 0 {
			return fmt.Errorf("%w: session interval must be positive", ErrConfigLoad)
		}
	}
	if s.MIDI.Period <= 0 || s.MIDI.Scan <= 0 {
		return fmt.Errorf("%w: midi period and scan interval must be positive", ErrConfigLoad)
	}
	for _, m := range s.PipeWire {
		if m.Channel == "" || m.Node == "" {
			return fmt.Errorf("%w: pipewire mapping needs a channel and a node", ErrConfigLoad)
		}
	}

	s.Mixer.Config = ExpandPath(s.Mixer.Config)
	s.Session.Durable = ExpandPath(s.Session.Durable)
	s.Session.Scratch = ExpandPath(s.Session.Scratch)
	s.Log.File = ExpandPath(s.Log.File)
	return nil
}

// ParsePipeWireMap parses a "<channel>,<node>" mapping
func ParsePipeWireMap(v string) (PipeWireMap, error) {
	channel, node, ok := strings.Cut(v, ",")
	channel, node = strings.TrimSpace(channel), strings.TrimSpace(node)
	if !ok || channel == "" || node == "" {
		return PipeWireMap{}, fmt.Errorf("%w: pipewire mapping %q, expected <channel>,<node>", ErrConfigLoad, v)
	}
	return PipeWireMap{Channel: channel, Node: node}, nil
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
