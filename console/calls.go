package console

import (
	"context"
	"fmt"
	"time"

	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/config"
)

const defaultBackendTimeout = 2 * time.Second

// call makes a backend call on a new goroutine and runs done with the result
// in the model goroutine, once the model processes the continuation. A failed
// call is also reported as an Error message. The call is abandoned after
// console.backend_timeout.
func call[T any](m *Model, cmd backend.Command, args any, done func(T, error)) {
	timeout := m.config.GetDuration(config.KeyBackendTimeout, defaultBackendTimeout)
	caller := m.backend
	m.pendingCalls.Add(1)
	go func() {
		var result T
		var err error
		if caller == nil {
			err = fmt.Errorf("no backend")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			err = caller.Call(ctx, cmd, args, &result)
			cancel()
		}
		cont := func() {
			m.pendingCalls.Add(-1)
			if err != nil {
				m.AddMessage(Error, fmt.Sprintf("%s: %v", cmd, err))
			}
			if done != nil {
				done(result, err)
			}
		}
		select {
		case m.broker.ToModel <- bus.MsgToModel{Continuation: cont}:
		case <-time.After(timeout):
			m.pendingCalls.Add(-1)
			m.logger.Warn("backend result dropped, model not receiving", "command", cmd)
		}
	}()
}

func (m *Model) ListHosts(done func(backend.Names, error)) {
	call(m, backend.ListHosts, nil, done)
}

func (m *Model) ListOutputDevices(done func(backend.Names, error)) {
	call(m, backend.ListOutputDevices, nil, done)
}

func (m *Model) ListInputDevices(done func(backend.Names, error)) {
	call(m, backend.ListInputDevices, nil, done)
}

func (m *Model) ListOutputStreams(done func(backend.Names, error)) {
	call(m, backend.ListOutputStreams, nil, done)
}

func (m *Model) ListInputStreams(done func(backend.Names, error)) {
	call(m, backend.ListInputStreams, nil, done)
}

func (m *Model) SetHost(name string, done func(backend.Status, error)) {
	m.setName(backend.SetHost, config.KeyHost, name, done)
}

func (m *Model) SetOutputDevice(name string, done func(backend.Status, error)) {
	m.setName(backend.SetOutputDevice, config.KeyOutputDevice, name, done)
}

func (m *Model) SetInputDevice(name string, done func(backend.Status, error)) {
	m.setName(backend.SetInputDevice, config.KeyInputDevice, name, done)
}

func (m *Model) SetOutputStream(name string, done func(backend.Status, error)) {
	m.setName(backend.SetOutputStream, config.KeyOutputStream, name, done)
}

func (m *Model) SetInputStream(name string, done func(backend.Status, error)) {
	m.setName(backend.SetInputStream, config.KeyInputStream, name, done)
}

func (m *Model) SetOutputBufferSize(size int, done func(backend.Status, error)) {
	m.setStatus(backend.SetOutputBufferSize, config.KeyOutputBufferSize, backend.SizeArgs{Size: size}, done)
}

func (m *Model) SetInputBufferSize(size int, done func(backend.Status, error)) {
	m.setStatus(backend.SetInputBufferSize, config.KeyInputBufferSize, backend.SizeArgs{Size: size}, done)
}

func (m *Model) setName(cmd backend.Command, key, name string, done func(backend.Status, error)) {
	m.setStatus(cmd, key, backend.NameArgs{Name: name}, done)
}

// setStatus makes a set_* call. On success the value chosen by the engine is
// stored under key; the engine keeps the same value, so it is not published.
func (m *Model) setStatus(cmd backend.Command, key string, args any, done func(backend.Status, error)) {
	call(m, cmd, args, func(s backend.Status, err error) {
		if err == nil {
			if s.Value != nil {
				m.config.Apply(key, s.Value)
			}
			m.AddMessage(Console, s.Message)
		}
		if done != nil {
			done(s, err)
		}
	})
}

func (m *Model) PlaySample(path string, done func(backend.Status, error)) {
	m.status(backend.PlaySample, backend.PathArgs{Path: path}, done)
}

func (m *Model) MIDIList(done func(backend.Status, error)) {
	m.status(backend.MIDIList, nil, done)
}

func (m *Model) MIDIStart(port string, done func(backend.Status, error)) {
	m.status(backend.MIDIStart, backend.PortArgs{Port: port}, done)
}

func (m *Model) MIDIStop(done func(backend.Status, error)) {
	m.status(backend.MIDIStop, nil, done)
}

func (m *Model) status(cmd backend.Command, args any, done func(backend.Status, error)) {
	call(m, cmd, args, func(s backend.Status, err error) {
		if err == nil && s.Message != "" {
			m.AddMessage(Console, s.Message)
		}
		if done != nil {
			done(s, err)
		}
	})
}
