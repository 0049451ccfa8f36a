package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/config"
	"golang.org/x/text/cases"
)

// Buffer sizes accepted by set_*_buffer_size.
const (
	MinBufferSize = 16
	MaxBufferSize = 8192
)

// Register adds the device, sample and rack commands of the engine to m.
func (e *Engine) Register(m *backend.Mux) {
	list := func(names []string) backend.Handler {
		return func(context.Context, json.RawMessage) (any, error) {
			return backend.Names(slices.Clone(names)), nil
		}
	}
	m.Handle(backend.ListHosts, list(e.opts.Hosts))
	m.Handle(backend.ListOutputDevices, list(e.opts.OutputDevices))
	m.Handle(backend.ListInputDevices, list(e.opts.InputDevices))
	m.Handle(backend.ListOutputStreams, list(e.opts.OutputStreams))
	m.Handle(backend.ListInputStreams, list(e.opts.InputStreams))

	set := func(what, key string, names []string) backend.Handler {
		return func(_ context.Context, raw json.RawMessage) (any, error) {
			var a backend.NameArgs
			if err := backend.Decode(raw, &a); err != nil {
				return nil, err
			}
			return e.selectName(what, key, names, a.Name)
		}
	}
	m.Handle(backend.SetHost, set("host", config.KeyHost, e.opts.Hosts))
	m.Handle(backend.SetOutputDevice, set("output device", config.KeyOutputDevice, e.opts.OutputDevices))
	m.Handle(backend.SetInputDevice, set("input device", config.KeyInputDevice, e.opts.InputDevices))
	m.Handle(backend.SetOutputStream, set("output stream", config.KeyOutputStream, e.opts.OutputStreams))
	m.Handle(backend.SetInputStream, set("input stream", config.KeyInputStream, e.opts.InputStreams))

	size := func(key string) backend.Handler {
		return func(_ context.Context, raw json.RawMessage) (any, error) {
			var a backend.SizeArgs
			if err := backend.Decode(raw, &a); err != nil {
				return nil, err
			}
			return e.setBufferSize(key, a.Size)
		}
	}
	m.Handle(backend.SetOutputBufferSize, size(config.KeyOutputBufferSize))
	m.Handle(backend.SetInputBufferSize, size(config.KeyInputBufferSize))

	backend.HandleFunc(m, backend.PlaySample, func(_ context.Context, a backend.PathArgs) (any, error) {
		return e.PlaySample(a.Path)
	})
	m.Handle(backend.GetRack, func(context.Context, json.RawMessage) (any, error) {
		return e.Rack(), nil
	})
}

// selectName picks the entry of names matching name, ignoring case. "default"
// or an empty name picks the first entry; an unknown name also falls back to
// the first entry, and the status says so.
func (e *Engine) selectName(what, key string, names []string, name string) (backend.Status, error) {
	if len(names) == 0 {
		return backend.Status{}, fmt.Errorf("no %s available", what)
	}
	fold := cases.Fold()
	chosen := names[0]
	msg := fmt.Sprintf("%s set to %s", what, chosen)
	if name != "" && fold.String(name) != "default" {
		found := false
		for _, n := range names {
			if fold.String(n) == fold.String(name) {
				chosen, found = n, true
				break
			}
		}
		if found {
			msg = fmt.Sprintf("%s set to %s", what, chosen)
		} else {
			msg = fmt.Sprintf("unknown %s %q, using default %s", what, name, chosen)
		}
	}
	e.mu.Lock()
	e.config.Set(key, chosen)
	e.mu.Unlock()
	return backend.Status{Message: msg, Value: chosen}, nil
}

func (e *Engine) setBufferSize(key string, size int) (backend.Status, error) {
	if size < MinBufferSize || size > MaxBufferSize {
		return backend.Status{}, fmt.Errorf("buffer size %d not in %d..%d: %w", size, MinBufferSize, MaxBufferSize, mixrack.ErrOutOfRange)
	}
	e.mu.Lock()
	e.config.Set(key, size)
	e.mu.Unlock()
	return backend.Status{Message: fmt.Sprintf("buffer size set to %d", size), Value: size}, nil
}

// PlaySample plays a sample through the Sampler generator, creating a strip
// for it with stereo output if there is none.
func (e *Engine) PlaySample(path string) (backend.Status, error) {
	if path == "" {
		return backend.Status{}, fmt.Errorf("empty sample path")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.ensureGenerator("Sampler", mixrack.StereoRoute(0, 1))
	e.logger.Info("playing sample", "path", path, "strip", i)
	return backend.Status{Message: fmt.Sprintf("playing %s on strip %d", path, i), Value: i}, nil
}
