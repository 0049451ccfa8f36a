// Package engine is the engine side of the event bus: it keeps its own copy
// of the rack, applies the mutations sent by the control surface, confirms
// them and answers backend calls. Signal processing is not part of it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/config"
)

type (
	// Engine applies bus messages to its rack. All methods are safe for
	// concurrent use.
	Engine struct {
		mu     sync.Mutex
		rack   mixrack.Rack
		config *config.Store
		opts   Options
		broker *bus.Broker
		logger *slog.Logger
		notes  map[uint8]uint8 // held MIDI notes, key -> velocity
	}

	// Options describe the audio system the engine reports. Device
	// enumeration happens outside the engine, so the names are given here.
	Options struct {
		Hosts         []string
		OutputDevices []string
		InputDevices  []string
		OutputStreams []string
		InputStreams  []string
		// Channels is the number of audio channels; routes to channels at or
		// above it are rejected. 0 means no limit.
		Channels int
		Logger   *slog.Logger
	}
)

func New(broker *bus.Broker, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		config: config.NewStore(logger),
		opts:   opts,
		broker: broker,
		logger: logger.With("component", "engine"),
		notes:  map[uint8]uint8{},
	}
	e.config.SetPublisher(func(key string, value any) {
		e.send(bus.ConfigUpdate, bus.ConfigUpdatePayload{Key: key, Value: value})
	})
	return e
}

// Run processes messages until ctx is done or closing is requested through
// the broker. It reports the thread state to the model when starting and
// stopping, and closes broker.FinishedEngine when done.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.broker.FinishedEngine)
	e.send(bus.ThreadState, true)
	defer e.send(bus.ThreadState, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.broker.CloseEngine:
			return
		case msg := <-e.broker.ToEngine:
			e.handleLogged(msg)
		}
	}
}

// ProcessMessages handles all messages waiting in the broker without
// blocking.
func (e *Engine) ProcessMessages() {
loop:
	for {
		select {
		case msg := <-e.broker.ToEngine:
			e.handleLogged(msg)
		default:
			break loop
		}
	}
}

func (e *Engine) handleLogged(msg bus.Message) {
	if err := e.Handle(msg); err != nil {
		e.logger.Warn("discarded message", "topic", msg.Topic, "err", err)
	}
}

// Handle applies one message from the control surface.
func (e *Engine) Handle(msg bus.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch msg.Topic {
	case bus.AddStrip:
		var p bus.AddStripPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return e.addStrip(p)
	case bus.RemoveStrip:
		var p bus.RemoveStripPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		i, err := e.resolve(p.Strip, p.ID)
		if err != nil {
			return err
		}
		s, _ := e.rack.Remove(i)
		e.send(bus.StripRemoved, bus.StripRemovedPayload{Index: i, ID: s.ID})
	case bus.ClearStrips:
		e.rack.Clear()
		e.send(bus.StripsCleared, nil)
	case bus.SetEffect:
		var p bus.SetEffectPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return e.setEffect(p)
	case bus.RemoveEffect:
		var p bus.RemoveEffectPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		i, err := e.resolve(p.Strip, p.ID)
		if err != nil {
			return err
		}
		s := &e.rack.Strips[i]
		slot := p.Index
		if p.EffectID != "" {
			if slot = s.FindEffect(p.EffectID); slot < 0 {
				return fmt.Errorf("effect %s: %w", p.EffectID, mixrack.ErrStaleUpdate)
			}
		}
		if _, err := s.RemoveEffect(slot); err != nil {
			return err
		}
		e.send(bus.EffectRemoved, bus.EffectRemovedPayload{Strip: i, ID: s.ID, Index: slot, EffectID: p.EffectID})
	case bus.SetEffectValue:
		var p bus.SetEffectValuePayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return e.setEffectValue(p)
	case bus.UpdateStrip:
		var p bus.UpdateStripPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return e.updateStrip(p)
	case bus.ConfigUpdate:
		var p bus.ConfigUpdatePayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		e.config.Apply(p.Key, p.Value)
	case bus.RequestSnapshot:
		var p bus.RequestSnapshotPayload
		if len(msg.Payload) > 0 {
			if err := msg.Decode(&p); err != nil {
				return err
			}
		}
		e.send(bus.RackSnapshot, bus.RackSnapshotPayload{Seq: p.Seq, Strips: e.rack.Copy().Strips})
	default:
		return fmt.Errorf("topic %q: %w", msg.Topic, mixrack.ErrTypeMismatch)
	}
	return nil
}

func (e *Engine) addStrip(p bus.AddStripPayload) error {
	if i := e.rack.IndexOf(p.ID); i >= 0 {
		// already added, confirm again
		e.send(bus.StripAnnounced, bus.AnnounceStrip(&e.rack.Strips[i]))
		return nil
	}
	if err := e.checkRoute(p.Input, true); err != nil {
		return err
	}
	if err := e.checkRoute(p.Output, false); err != nil {
		return err
	}
	s := mixrack.Strip{ID: p.ID, Input: p.Input, Output: p.Output, Gain: mixrack.GainRange.Clamp(p.Gain)}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := s.SetChain(p.Chain); err != nil {
		return err
	}
	i := e.rack.Add(s)
	e.send(bus.StripAnnounced, bus.AnnounceStrip(&e.rack.Strips[i]))
	return nil
}

func (e *Engine) setEffect(p bus.SetEffectPayload) error {
	i, err := e.resolve(p.Strip, p.ID)
	if err != nil {
		return err
	}
	effect, err := mixrack.NewEffect(p.Option)
	if err != nil {
		return err
	}
	if p.EffectID != "" {
		effect.ID = p.EffectID
	}
	s := &e.rack.Strips[i]
	if err := s.SetEffect(p.Index, effect); err != nil {
		return err
	}
	e.send(bus.EffectSet, bus.EffectSetPayload{Strip: i, ID: s.ID, Index: p.Index, Effect: effect.Copy()})
	return nil
}

func (e *Engine) setEffectValue(p bus.SetEffectValuePayload) error {
	i, err := e.resolve(p.Strip, p.ID)
	if err != nil {
		return err
	}
	s := &e.rack.Strips[i]
	slot := p.Index
	if p.EffectID != "" {
		slot = s.FindEffect(p.EffectID)
	}
	if slot < 0 || slot >= mixrack.ChainLength || s.Chain[slot] == nil {
		return fmt.Errorf("effect slot %d of strip %d: %w", p.Index, i, mixrack.ErrStaleUpdate)
	}
	c := s.Chain[slot].Control(p.ValueName)
	if c == nil {
		return fmt.Errorf("control %q: %w", p.ValueName, mixrack.ErrTypeMismatch)
	}
	c.Set(p.Value)
	return nil
}

func (e *Engine) updateStrip(p bus.UpdateStripPayload) error {
	i, err := e.resolve(p.Index, p.ID)
	if err != nil {
		return err
	}
	s := &e.rack.Strips[i]
	if p.IsControl() {
		if p.Name != bus.GainControl {
			return fmt.Errorf("strip control %q: %w", p.Name, mixrack.ErrTypeMismatch)
		}
		s.Gain = mixrack.GainRange.Clamp(p.Value)
		return nil
	}
	input, r, err := p.Route()
	if err != nil {
		return err
	}
	if err := e.checkRoute(r, input); err != nil {
		return err
	}
	if input {
		s.Input = r
	} else {
		s.Output = r
	}
	return nil
}

// checkRoute validates r, including the channel bounds that only the engine
// knows.
func (e *Engine) checkRoute(r mixrack.Route, input bool) error {
	if err := r.Validate(input); err != nil {
		return err
	}
	n := e.opts.Channels
	if n <= 0 {
		return nil
	}
	if (r.Kind == mixrack.Mono && r.Channel >= n) || (r.Kind == mixrack.Stereo && (r.Left >= n || r.Right >= n)) {
		return fmt.Errorf("%v with %d channels: %w", r, n, mixrack.ErrInvalidRoute)
	}
	return nil
}

// resolve finds the strip addressed by a message: by ID when given, by index
// otherwise.
func (e *Engine) resolve(index int, id string) (int, error) {
	if id != "" {
		if i := e.rack.IndexOf(id); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("strip %s: %w", id, mixrack.ErrStaleUpdate)
	}
	if _, err := e.rack.Strip(index); err != nil {
		return -1, err
	}
	return index, nil
}

func (e *Engine) send(topic bus.Topic, payload any) {
	msg, err := bus.NewMessage(topic, payload)
	if err != nil {
		e.logger.Error("encoding message", "topic", topic, "err", err)
		return
	}
	if !bus.TrySend(e.broker.ToModel, bus.MsgToModel{Message: msg}) {
		e.logger.Warn("model queue full, message dropped", "topic", topic)
	}
}

// Announce sends the whole rack to the model: strips-cleared followed by one
// strip-announced per strip.
func (e *Engine) Announce() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.send(bus.StripsCleared, nil)
	for i := range e.rack.Strips {
		e.send(bus.StripAnnounced, bus.AnnounceStrip(&e.rack.Strips[i]))
	}
}

// Rack returns a copy of the rack of the engine.
func (e *Engine) Rack() mixrack.Rack {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rack.Copy()
}

// LoadConfig loads settings into the engine config. Every loaded value is
// published to the model.
func (e *Engine) LoadConfig(p config.Persister) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Load(p)
}

func (e *Engine) SaveConfig(p config.Persister) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Save(p)
}

// ConfigValue returns a setting of the engine.
func (e *Engine) ConfigValue(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config.Lookup(key)
}

// ensureGenerator returns the index of the first strip whose input is the
// named generator, adding and announcing one if there is none.
func (e *Engine) ensureGenerator(name string, output mixrack.Route) int {
	for i := range e.rack.Strips {
		if e.rack.Strips[i].Input.IsGenerator(name) {
			return i
		}
	}
	s := mixrack.NewStrip()
	s.Input = mixrack.GeneratorRoute(name)
	s.Output = output
	i := e.rack.Add(s)
	e.send(bus.StripAnnounced, bus.AnnounceStrip(&e.rack.Strips[i]))
	return i
}

// NoteOn holds a note played on the MIDI input. Notes are played by the Sine
// generator, so a strip for it is created if needed.
func (e *Engine) NoteOn(key, velocity uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.notes) == 0 {
		e.ensureGenerator("Sine", mixrack.StereoRoute(0, 1))
	}
	e.notes[key] = velocity
	e.logger.Debug("note on", "key", key, "velocity", velocity)
}

func (e *Engine) NoteOff(key uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.notes, key)
	e.logger.Debug("note off", "key", key)
}

// HeldNotes returns the number of notes currently held.
func (e *Engine) HeldNotes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.notes)
}

// IsStale reports whether err means the message addressed something the
// engine no longer has.
func IsStale(err error) bool {
	return errors.Is(err, mixrack.ErrStaleUpdate) || errors.Is(err, mixrack.ErrOutOfRange)
}
