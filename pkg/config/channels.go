package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

// LoadChannels reads the channel map from a jack_mixer config file. Every
// input_channel and output_channel element becomes a channel in file order.
func LoadChannels(path string) ([]mixer.Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: could not load jack_mixer config from %s: %w", ErrConfigLoad, path, err)
	}
	defer f.Close()

	channels, err := ParseChannels(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigLoad, path, err)
	}
	return channels, nil
}

// ParseChannels decodes jack_mixer channel definitions
func ParseChannels(r io.Reader) ([]mixer.Channel, error) {
	dec := xml.NewDecoder(r)
	var channels []mixer.Channel
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.Contains(start.Name.Local, "put_channel") {
			continue
		}
		ch, err := channelFromElement(start)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		return nil, errors.New("no channels defined")
	}
	return channels, nil
}

func channelFromElement(el xml.StartElement) (mixer.Channel, error) {
	attrs := make(map[string]string, len(el.Attr))
	for _, a := range el.Attr {
		attrs[a.Name.Local] = a.Value
	}

	name := mixer.NormalizeName(attrs["name"])
	if name == "" {
		return mixer.Channel{}, fmt.Errorf("%s without a name", el.Name.Local)
	}
	volume, err := ccAttr(attrs, "volume_midi_cc", true)
	if err != nil {
		return mixer.Channel{}, fmt.Errorf("channel %q: %w", name, err)
	}
	mute, err := ccAttr(attrs, "mute_midi_cc", true)
	if err != nil {
		return mixer.Channel{}, fmt.Errorf("channel %q: %w", name, err)
	}
	solo, err := ccAttr(attrs, "solo_midi_cc", false)
	if err != nil {
		return mixer.Channel{}, fmt.Errorf("channel %q: %w", name, err)
	}

	return mixer.Channel{
		Name:   name,
		Volume: mixer.Property{CC: volume},
		Mute:   mixer.Property{CC: mute},
		Solo:   mixer.Property{CC: solo},
	}, nil
}

func ccAttr(attrs map[string]string, key string, required bool) (int, error) {
	raw, ok := attrs[key]
	if !ok || raw == "" {
		if required {
			return 0, fmt.Errorf("missing %s", key)
		}
		return 0, nil
	}
	cc, err := strconv.Atoi(raw)
	if err != nil || cc < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return cc, nil
}

// DuplicateControls describes every control-id bound more than once. At
// runtime the first binding in channel order wins.
func DuplicateControls(channels []mixer.Channel) []string {
	type owner struct {
		channel string
		kind    mixer.PropertyKind
	}
	seen := make(map[int]owner)
	var out []string
	for i := range channels {
		for _, k := range mixer.Kinds {
			p := channels[i].Property(k)
			if !p.Bound() {
				continue
			}
			if first, ok := seen[p.CC]; ok {
				out = append(out, fmt.Sprintf("cc %d: %s %s shadowed by %s %s",
					p.CC, channels[i].Name, k, first.channel, first.kind))
				continue
			}
			seen[p.CC] = owner{channels[i].Name, k}
		}
	}
	return out
}
