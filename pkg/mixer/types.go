// Package mixer holds the channel map shared by the MIDI side and the control
// side, and the transitions that keep it consistent with the control surface.
package mixer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Value range for every controlled property
const (
	MinValue = 0
	MaxValue = 127
)

// StatusControlChange is the status byte of a control-change on MIDI channel 1
const StatusControlChange = 176

var (
	// ErrNotFound is returned when no channel matches the requested name
	ErrNotFound = errors.New("channel not found")
	// ErrInvalidCommand is returned for a command with an unknown kind
	ErrInvalidCommand = errors.New("invalid command")
	// ErrClosed is returned once the engine stopped accepting commands
	ErrClosed = errors.New("engine closed")
)

// PropertyKind identifies one of the three controlled properties of a channel
type PropertyKind int

const (
	Volume PropertyKind = iota
	Mute
	Solo
)

// Kinds lists the properties in lookup order
var Kinds = [...]PropertyKind{Volume, Mute, Solo}

func (k PropertyKind) String() string {
	switch k {
	case Volume:
		return "volume"
	case Mute:
		return "mute"
	case Solo:
		return "solo"
	default:
		return fmt.Sprintf("property(%d)", int(k))
	}
}

// Property binds a control-id to its current value.
// A control-id of 0 means the property has no control assigned.
type Property struct {
	CC    int
	Value int
}

// Bound reports whether a control is assigned to the property
func (p Property) Bound() bool {
	return p.CC != 0
}

// On reports whether a toggle property is switched on
func (p Property) On() bool {
	return p.Value == MaxValue
}

// Channel is a named mixer strip
type Channel struct {
	Name   string
	Volume Property
	Mute   Property
	Solo   Property
	Mirror string // external device reference, empty when not mirrored
}

// Property returns a pointer to the property of the given kind
func (c *Channel) Property(kind PropertyKind) *Property {
	switch kind {
	case Volume:
		return &c.Volume
	case Mute:
		return &c.Mute
	case Solo:
		return &c.Solo
	}
	return nil
}

// Status returns the channel's complete state
func (c *Channel) Status() Status {
	return Status{
		Name:   c.Name,
		Volume: c.Volume.Value,
		Mute:   c.Mute.On(),
		Solo:   c.Solo.On(),
	}
}

// Status is the state of a channel as reported to clients
type Status struct {
	Name   string `json:"name"`
	Volume int    `json:"volume"`
	Mute   bool   `json:"mute"`
	Solo   bool   `json:"solo"`
}

// Message is a control-change waiting to be sent to the control surface
type Message struct {
	Status int
	CC     int
	Value  int
}

// ControlChange builds an outbound control-change message
func ControlChange(cc, value int) Message {
	return Message{Status: StatusControlChange, CC: cc, Value: value}
}

// CommandKind identifies a control command
type CommandKind int

const (
	SetVolume CommandKind = iota + 1
	IncreaseVolume
	DecreaseVolume
	MuteChannel
	UnmuteChannel
	ToggleMute
	ToggleSolo
)

func (k CommandKind) String() string {
	switch k {
	case SetVolume:
		return "set-volume"
	case IncreaseVolume:
		return "increase-volume"
	case DecreaseVolume:
		return "decrease-volume"
	case MuteChannel:
		return "mute"
	case UnmuteChannel:
		return "unmute"
	case ToggleMute:
		return "toggle-mute"
	case ToggleSolo:
		return "toggle-solo"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is a decoded control command. Value is only used by SetVolume.
type Command struct {
	Kind  CommandKind
	Value int
}

// Target returns the property a command acts on
func (c Command) Target() PropertyKind {
	switch c.Kind {
	case MuteChannel, UnmuteChannel, ToggleMute:
		return Mute
	case ToggleSolo:
		return Solo
	default:
		return Volume
	}
}

// Valid reports whether the command kind is known
func (c Command) Valid() bool {
	return c.Kind >= SetVolume && c.Kind <= ToggleSolo
}

func (c Command) String() string {
	if c.Kind == SetVolume {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Value)
	}
	return c.Kind.String()
}

// NormalizeName case-folds a channel name so lookups are case-insensitive
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// DisplayName returns the name with its first letter upper-cased
func DisplayName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// Clamp limits v to the property value range
func Clamp(v int) int {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}
