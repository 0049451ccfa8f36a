// Package gomidi serves the midi_list, midi_start and midi_stop backend
// commands with gomidi. Without cgo, no driver is available and the commands
// report so.
package gomidi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/vsariola/mixrack/backend"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type (
	// Context owns the MIDI driver and the currently listened input.
	Context struct {
		mu     sync.Mutex
		driver drivers.Driver
		in     drivers.In
		stop   func()
		onNote func(NoteEvent)
	}

	// NoteEvent is a note on or off received from the MIDI input. A note on
	// with zero velocity is reported as a note off.
	NoteEvent struct {
		On       bool
		Channel  uint8
		Key      uint8
		Velocity uint8
	}
)

// NoDevices is the listing when no MIDI inputs are found.
const NoDevices = "No midi devices found"

var errNoDriver = errors.New("no MIDI driver available")

// NewContext opens the driver. onNote is called from the driver goroutine for
// every note received after Start; it may be nil. If the driver cannot be
// opened, the context still works but lists no devices.
func NewContext(onNote func(NoteEvent)) *Context {
	c := &Context{onNote: onNote}
	// there's not much we can do if this fails, so just use c.driver = nil to
	// indicate no driver available
	c.driver, _ = newDriver()
	return c
}

// Names returns the names of the MIDI inputs.
func (c *Context) Names() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ins, err := c.ins()
	if err != nil {
		return nil, err
	}
	ret := make([]string, len(ins))
	for i, in := range ins {
		ret[i] = in.String()
	}
	return ret, nil
}

func (c *Context) ins() ([]drivers.In, error) {
	if c.driver == nil {
		return nil, errNoDriver
	}
	return c.driver.Ins()
}

// FormatList formats the input names as "index: name" lines.
func FormatList(names []string) string {
	if len(names) == 0 {
		return NoDevices
	}
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("%d: %s", i, n)
	}
	return strings.Join(lines, "\n")
}

// Start listens to the input selected by port, which is either an index or a
// name prefix; an empty port selects the first input. A previously started
// input is stopped first. It returns the name of the input.
func (c *Context) Start(port string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ins, err := c.ins()
	if err != nil {
		return "", err
	}
	in, err := selectInput(ins, port)
	if err != nil {
		return "", err
	}
	c.stopLocked()
	if err := in.Open(); err != nil {
		return "", fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(in, c.handleMessage)
	if err != nil {
		in.Close()
		return "", fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	c.in, c.stop = in, stop
	return in.String(), nil
}

func selectInput(ins []drivers.In, port string) (drivers.In, error) {
	if len(ins) == 0 {
		return nil, errors.New(NoDevices)
	}
	if port == "" {
		return ins[0], nil
	}
	if i, err := strconv.Atoi(port); err == nil {
		if i < 0 || i >= len(ins) {
			return nil, fmt.Errorf("MIDI input %d does not exist", i)
		}
		return ins[i], nil
	}
	for _, in := range ins {
		if strings.HasPrefix(strings.ToLower(in.String()), strings.ToLower(port)) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("could not find MIDI input starting with %q", port)
}

// Stop stops listening. It reports whether an input was open.
func (c *Context) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Context) stopLocked() bool {
	if c.in == nil {
		return false
	}
	if c.stop != nil {
		c.stop()
	}
	if c.in.IsOpen() {
		c.in.Close()
	}
	c.in, c.stop = nil, nil
	return true
}

func (c *Context) Close() {
	c.Stop()
	if c.driver != nil {
		c.driver.Close()
	}
}

func (c *Context) handleMessage(msg midi.Message, timestampms int32) {
	if c.onNote == nil {
		return
	}
	var e NoteEvent
	switch {
	case msg.GetNoteOn(&e.Channel, &e.Key, &e.Velocity):
		e.On = e.Velocity > 0
	case msg.GetNoteOff(&e.Channel, &e.Key, &e.Velocity):
	default:
		return
	}
	c.onNote(e)
}

// Register adds the MIDI commands to m.
func (c *Context) Register(m *backend.Mux) {
	m.Handle(backend.MIDIList, func(context.Context, json.RawMessage) (any, error) {
		names, err := c.Names()
		if err != nil && !errors.Is(err, errNoDriver) {
			return nil, err
		}
		return backend.Status{Message: FormatList(names), Value: names}, nil
	})
	backend.HandleFunc(m, backend.MIDIStart, func(_ context.Context, a backend.PortArgs) (any, error) {
		name, err := c.Start(a.Port)
		if err != nil {
			return nil, err
		}
		return backend.Status{Message: "listening to " + name, Value: name}, nil
	})
	m.Handle(backend.MIDIStop, func(context.Context, json.RawMessage) (any, error) {
		if !c.Stop() {
			return backend.Status{Message: "no MIDI input open"}, nil
		}
		return backend.Status{Message: "MIDI input closed"}, nil
	})
}
