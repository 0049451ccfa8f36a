// Package console is the control surface side of the mixer: Model keeps the
// local copy of the rack and the settings, turns user operations into bus
// messages for the engine and applies the messages coming back.
//
// A Model is owned by a single goroutine. Engine messages and completed
// backend calls reach that goroutine through the broker's ToModel channel,
// so no locking is needed.
package console

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/backend"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/config"
)

type (
	Model struct {
		rack          mixrack.Rack
		config        *config.Store
		broker        *bus.Broker
		backend       backend.Caller
		logger        *slog.Logger
		messages      []Message
		threadRunning bool
		pendingCalls  atomic.Int32 // decremented off the model goroutine if a result is dropped

		// mutationSeq counts published mutations; snapshotSeq is its value
		// when the last snapshot was requested.
		mutationSeq uint64
		snapshotSeq uint64

		// echoes counts the confirmations the engine will send for mutations
		// already applied here; they are skipped when they arrive.
		echoes map[string]int
	}

	Options struct {
		// Backend serves the backend calls. If nil, calls fail.
		Backend backend.Caller
		// Config is the settings store of the model. If nil, an empty store
		// is created. The model publishes its changes to the engine.
		Config *config.Store
		Logger *slog.Logger
	}
)

func New(broker *bus.Broker, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		config:  opts.Config,
		broker:  broker,
		backend: opts.Backend,
		logger:  logger.With("component", "console"),
		echoes:  map[string]int{},
	}
	if m.config == nil {
		m.config = config.NewStore(logger)
	}
	m.config.SetPublisher(func(key string, value any) {
		m.publish(bus.ConfigUpdate, bus.ConfigUpdatePayload{Key: key, Value: value})
	})
	return m
}

// Config returns the settings store. Changes made with Set are published to
// the engine.
func (m *Model) Config() *config.Store { return m.config }

// Rack returns a copy of the local rack.
func (m *Model) Rack() mixrack.Rack { return m.rack.Copy() }

func (m *Model) NumStrips() int { return m.rack.Len() }

// Strip returns a copy of the strip at index i.
func (m *Model) Strip(i int) (mixrack.Strip, bool) {
	s, err := m.rack.Strip(i)
	if err != nil {
		return mixrack.Strip{}, false
	}
	return s.Copy(), true
}

// ThreadRunning reports whether the engine said its processing thread runs.
func (m *Model) ThreadRunning() bool { return m.threadRunning }

// PendingCalls returns the number of backend calls in flight.
func (m *Model) PendingCalls() int { return int(m.pendingCalls.Load()) }

// Run processes messages from the broker until ctx is done. It requests a
// snapshot of the engine rack at start and then every
// console.reconcile_interval; an interval of 0 disables the periodic
// requests.
func (m *Model) Run(ctx context.Context) {
	interval := m.config.GetDuration(config.KeyReconcileInterval, 5*time.Second)
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	m.RequestSnapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.broker.ToModel:
			m.ProcessMsg(msg)
		case <-tick:
			m.RequestSnapshot()
		}
	}
}

// ProcessMessages handles all messages waiting in the broker without
// blocking.
func (m *Model) ProcessMessages() {
loop:
	for {
		select {
		case msg := <-m.broker.ToModel:
			m.ProcessMsg(msg)
		default:
			break loop
		}
	}
}

// ProcessMsg handles one message from the broker: it runs a continuation or
// applies an engine message. Discarded messages are only logged.
func (m *Model) ProcessMsg(msg bus.MsgToModel) {
	if msg.Continuation != nil {
		msg.Continuation()
		return
	}
	if msg.Message.Topic == "" {
		return
	}
	err := m.ProcessMessage(msg.Message)
	switch {
	case err == nil:
	case errors.Is(err, mixrack.ErrStaleUpdate):
		m.logger.Debug("discarded stale message", "topic", msg.Message.Topic, "err", err)
	default:
		m.logger.Warn("discarded message", "topic", msg.Message.Topic, "err", err)
	}
}

// RequestSnapshot asks the engine for its full rack, which is then
// reconciled with the local one.
func (m *Model) RequestSnapshot() {
	m.snapshotSeq = m.mutationSeq
	m.publish(bus.RequestSnapshot, bus.RequestSnapshotPayload{Seq: m.snapshotSeq})
}

func (m *Model) publish(topic bus.Topic, payload any) {
	msg, err := bus.NewMessage(topic, payload)
	if err != nil {
		m.logger.Error("encoding message", "topic", topic, "err", err)
		return
	}
	if topic != bus.RequestSnapshot {
		m.mutationSeq++
	}
	if !bus.TrySend(m.broker.ToEngine, msg) {
		m.logger.Warn("engine queue full, message dropped", "topic", topic)
	}
}

func echoKey(topic bus.Topic, id string) string { return string(topic) + "/" + id }

// expectEcho records that the engine will confirm a mutation made here.
func (m *Model) expectEcho(topic bus.Topic, id string) {
	m.echoes[echoKey(topic, id)]++
}

// isEcho consumes an expected confirmation.
func (m *Model) isEcho(topic bus.Topic, id string) bool {
	k := echoKey(topic, id)
	if m.echoes[k] == 0 {
		return false
	}
	if m.echoes[k]--; m.echoes[k] == 0 {
		delete(m.echoes, k)
	}
	return true
}
