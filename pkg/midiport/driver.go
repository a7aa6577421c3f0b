// Package midiport moves control-change messages between the mixer engine
// and the system MIDI ports.
package midiport

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortEvent wraps failures to open, listen on or send to a port
var ErrPortEvent = errors.New("midi port event failed")

// Output is an open MIDI output
type Output interface {
	Send(msg midi.Message) error
	Close() error
}

// Driver lists and opens MIDI ports by name
type Driver interface {
	Inputs() []string
	Outputs() []string
	// Listen delivers every control-change on the named input until stop is called
	Listen(port string, onCC func(cc, value uint8)) (stop func(), err error)
	Open(port string) (Output, error)
}

// System is the Driver backed by the registered gomidi driver
type System struct{}

// Inputs lists the input port names
func (System) Inputs() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// Outputs lists the output port names
func (System) Outputs() []string {
	var names []string
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return names
}

// Listen opens the input and forwards its control-changes
func (System) Listen(port string, onCC func(cc, value uint8)) (func(), error) {
	in, err := midi.FindInPort(port)
	if err != nil {
		return nil, fmt.Errorf("%w: input %q: %w", ErrPortEvent, port, err)
	}
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var ch, cc, val uint8
		if msg.GetControlChange(&ch, &cc, &val) {
			onCC(cc, val)
		}
	})
	if err != nil {
		_ = in.Close()
		return nil, fmt.Errorf("%w: listen %q: %w", ErrPortEvent, port, err)
	}
	return func() {
		stop()
		_ = in.Close()
	}, nil
}

// Open opens the output port
func (System) Open(port string) (Output, error) {
	out, err := midi.FindOutPort(port)
	if err != nil {
		return nil, fmt.Errorf("%w: output %q: %w", ErrPortEvent, port, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", ErrPortEvent, port, err)
	}
	return &output{port: out, send: send}, nil
}

type output struct {
	port drivers.Out
	send func(msg midi.Message) error
}

func (o *output) Send(msg midi.Message) error { return o.send(msg) }

func (o *output) Close() error { return o.port.Close() }

// Match returns the first name containing fragment, ignoring case
func Match(names []string, fragment string) (string, bool) {
	if fragment == "" {
		return "", false
	}
	fragment = strings.ToLower(fragment)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), fragment) {
			return name, true
		}
	}
	return "", false
}
