// Package backend defines the request/response calls the control surface
// makes to the engine, and a Mux that routes them to handlers.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

type (
	// Command names one backend call.
	Command string

	// Names is the result of the list commands, in the order given by the
	// engine.
	Names []string

	// Status is the result of commands that change something. Message is
	// meant for the user; Value is the value that was actually set, e.g. the
	// canonical name of the selected device.
	Status struct {
		Message string `json:"message"`
		Value   any    `json:"value,omitempty"`
	}

	NameArgs struct {
		Name string `json:"name"`
	}

	SizeArgs struct {
		Size int `json:"size"`
	}

	PathArgs struct {
		Path string `json:"path"`
	}

	// PortArgs selects a MIDI input by index ("0") or by name prefix.
	PortArgs struct {
		Port string `json:"port"`
	}

	// Caller makes backend calls. args is encoded and the result is decoded
	// into reply, which may be nil if the result is not needed.
	Caller interface {
		Call(ctx context.Context, cmd Command, args, reply any) error
	}

	// Handler serves one command. args is the JSON encoded argument, or nil.
	Handler func(ctx context.Context, args json.RawMessage) (any, error)

	// Mux routes commands to handlers. It is safe for concurrent use.
	Mux struct {
		mu       sync.RWMutex
		handlers map[Command]Handler
	}
)

const (
	ListHosts           Command = "list_hosts"
	ListOutputDevices   Command = "list_output_devices"
	ListInputDevices    Command = "list_input_devices"
	ListOutputStreams   Command = "list_output_streams"
	ListInputStreams    Command = "list_input_streams"
	SetHost             Command = "set_host"
	SetOutputDevice     Command = "set_output_device"
	SetInputDevice      Command = "set_input_device"
	SetOutputStream     Command = "set_output_stream"
	SetInputStream      Command = "set_input_stream"
	SetOutputBufferSize Command = "set_output_buffer_size"
	SetInputBufferSize  Command = "set_input_buffer_size"
	PlaySample          Command = "play_sample"
	MIDIList            Command = "midi_list"
	MIDIStart           Command = "midi_start"
	MIDIStop            Command = "midi_stop"
	GetRack             Command = "get_rack"
)

var ErrUnknownCommand = errors.New("unknown backend command")

func NewMux() *Mux {
	return &Mux{handlers: map[Command]Handler{}}
}

// Handle registers h for cmd, replacing any previous handler.
func (m *Mux) Handle(cmd Command, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[cmd] = h
}

// HandleFunc registers a handler with typed arguments.
func HandleFunc[A any](m *Mux, cmd Command, fn func(ctx context.Context, args A) (any, error)) {
	m.Handle(cmd, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("%s: decoding arguments: %w", cmd, err)
			}
		}
		return fn(ctx, args)
	})
}

// Commands returns the registered commands, sorted.
func (m *Mux) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]Command, 0, len(m.handlers))
	for c := range m.handlers {
		ret = append(ret, c)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// Serve runs the handler of cmd and returns its JSON encoded result.
func (m *Mux) Serve(ctx context.Context, cmd Command, args json.RawMessage) (json.RawMessage, error) {
	m.mu.RLock()
	h, ok := m.handlers[cmd]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", cmd, ErrUnknownCommand)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := h(ctx, args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// Call implements Caller, so a Mux can serve calls within one process. The
// arguments and results go through JSON as they would over a transport.
func (m *Mux) Call(ctx context.Context, cmd Command, args, reply any) error {
	raw, err := Encode(args)
	if err != nil {
		return err
	}
	result, err := m.Serve(ctx, cmd, raw)
	if err != nil {
		return err
	}
	return Decode(result, reply)
}

// Encode encodes call arguments; nil encodes as no arguments.
func Encode(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}
	return b, nil
}

// Decode decodes a call result into reply. A nil reply discards the result.
func Decode(result json.RawMessage, reply any) error {
	if reply == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, reply); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}
