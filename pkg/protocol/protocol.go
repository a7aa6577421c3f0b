// Package protocol implements the text frames exchanged with remote control
// clients: "<channel>⚏<command>" requests and
// "<Name>⚏<volume>⚏<mute>⚏<solo>" responses.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/james-see/jackmixercc/pkg/mixer"
)

// Separator delimits the fields of every frame
const Separator = "⚏"

// UnknownChannel is the name field returned when a request cannot be served
const UnknownChannel = "unknown channel"

// ErrProtocolDecode is returned for frames that do not follow the grammar
var ErrProtocolDecode = errors.New("malformed request")

// Request is a decoded client request
type Request struct {
	Channel string
	Command mixer.Command
}

// Decode parses a request frame
func Decode(frame string) (Request, error) {
	frame = strings.TrimRight(frame, "\r\n\x00")
	name, control, ok := strings.Cut(frame, Separator)
	if !ok {
		return Request{}, fmt.Errorf("%w: missing separator", ErrProtocolDecode)
	}
	if strings.TrimSpace(name) == "" {
		return Request{}, fmt.Errorf("%w: empty channel name", ErrProtocolDecode)
	}
	cmd, err := ParseCommand(control)
	if err != nil {
		return Request{}, err
	}
	return Request{Channel: name, Command: cmd}, nil
}

// ParseCommand parses the command part of a request.
//
//	1v,<n>  set volume      2m  mute
//	1i      volume up       2u  unmute
//	1d      volume down     2t  toggle mute (also bare "2")
//	                        3t  toggle solo (also bare "3")
func ParseCommand(control string) (mixer.Command, error) {
	control = strings.TrimSpace(control)
	switch control {
	case "1i":
		return mixer.Command{Kind: mixer.IncreaseVolume}, nil
	case "1d":
		return mixer.Command{Kind: mixer.DecreaseVolume}, nil
	case "2m":
		return mixer.Command{Kind: mixer.MuteChannel}, nil
	case "2u":
		return mixer.Command{Kind: mixer.UnmuteChannel}, nil
	case "2t", "2":
		return mixer.Command{Kind: mixer.ToggleMute}, nil
	case "3t", "3":
		return mixer.Command{Kind: mixer.ToggleSolo}, nil
	}

	if value, ok := strings.CutPrefix(control, "1v,"); ok {
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return mixer.Command{}, fmt.Errorf("%w: bad volume %q", ErrProtocolDecode, value)
		}
		return mixer.Command{Kind: mixer.SetVolume, Value: v}, nil
	}
	return mixer.Command{}, fmt.Errorf("%w: unknown command %q", ErrProtocolDecode, control)
}

// FormatCommand renders a command in wire form
func FormatCommand(cmd mixer.Command) string {
	switch cmd.Kind {
	case mixer.SetVolume:
		return "1v," + strconv.Itoa(cmd.Value)
	case mixer.IncreaseVolume:
		return "1i"
	case mixer.DecreaseVolume:
		return "1d"
	case mixer.MuteChannel:
		return "2m"
	case mixer.UnmuteChannel:
		return "2u"
	case mixer.ToggleMute:
		return "2t"
	case mixer.ToggleSolo:
		return "3t"
	}
	return ""
}

// EncodeRequest builds a request frame
func EncodeRequest(channel string, cmd mixer.Command) string {
	return channel + Separator + FormatCommand(cmd)
}

// Encode builds the response frame for a channel status
func Encode(s mixer.Status) string {
	var b strings.Builder
	b.WriteString(mixer.DisplayName(s.Name))
	b.WriteString(Separator)
	b.WriteString(strconv.Itoa(s.Volume))
	b.WriteString(Separator)
	b.WriteString(onOff(s.Mute))
	b.WriteString(Separator)
	b.WriteString(onOff(s.Solo))
	return b.String()
}

// EncodeUnknown builds the response frame for a request that matched no channel
func EncodeUnknown() string {
	return UnknownChannel + Separator + "0" + Separator + "Off" + Separator + "Off"
}

func onOff(on bool) string {
	if on {
		return "On"
	}
	return "Off"
}
