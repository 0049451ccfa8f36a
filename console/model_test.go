package console_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/bus"
	"github.com/vsariola/mixrack/console"
)

// sent drains the messages the model published to the engine.
func sent(b *bus.Broker) []bus.Message {
	var ret []bus.Message
	for {
		select {
		case msg := <-b.ToEngine:
			ret = append(ret, msg)
		default:
			return ret
		}
	}
}

func receive(t *testing.T, m *console.Model, topic bus.Topic, payload string) error {
	t.Helper()
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	return m.ProcessMessage(bus.Message{Topic: topic, Payload: raw})
}

func TestScenario(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	nulls := `[null,null,null,null,null,null,null,null,null,null]`
	if err := receive(t, m, bus.StripAnnounced, `{"input":{"kind":"mono","channel":0},"chain":`+nulls+`,"output":{"kind":"stereo","left":0,"right":1}}`); err != nil {
		t.Fatal(err)
	}
	if m.NumStrips() != 1 {
		t.Fatalf("%d strips, want 1", m.NumStrips())
	}
	s, _ := m.Strip(0)
	if s.NumEffects() != 0 {
		t.Fatalf("new strip has %d effects", s.NumEffects())
	}
	if err := receive(t, m, bus.EffectSet, `{"strip":0,"index":3,"effect":{"type":"Gain","controls":[{"name":"gain","value":0}]}}`); err != nil {
		t.Fatal(err)
	}
	s, _ = m.Strip(0)
	gain := s.Chain[3].Control("gain")
	if s.Chain[3].Type != "Gain" || gain == nil || gain.Value != 0 {
		t.Fatalf("slot 3 holds %+v", s.Chain[3])
	}
	if !m.SetControlValue(0, 3, "gain", 12) {
		t.Fatal("SetControlValue failed")
	}
	s, _ = m.Strip(0)
	if v := s.Chain[3].Control("gain").Value; v != 12 {
		t.Fatalf("gain %v, want 12", v)
	}
	msgs := sent(b)
	if len(msgs) != 1 || msgs[0].Topic != bus.SetEffectValue {
		t.Fatalf("sent %v", msgs)
	}
	var p bus.SetEffectValuePayload
	if err := msgs[0].Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Strip != 0 || p.Index != 3 || p.ValueName != "gain" || p.ValueKind != "float" || p.Value != 12 {
		t.Fatalf("sent %+v", p)
	}
	if err := receive(t, m, bus.StripRemoved, `0`); err != nil {
		t.Fatal(err)
	}
	if m.NumStrips() != 0 {
		t.Fatalf("%d strips, want 0", m.NumStrips())
	}
}

func TestSetControlValueClamps(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	m.AddStrip()
	m.SetEffect(0, 0, "Gain")
	sent(b)
	if !m.SetControlValue(0, 0, "gain", 1000) {
		t.Fatal("SetControlValue failed")
	}
	if v := m.ControlValue(0, 0, "gain").Value(); v != 24 {
		t.Fatalf("gain %v, want 24", v)
	}
	if m.SetControlValue(0, 0, "gain", 500) {
		t.Fatal("setting the same clamped value reported a change")
	}
	m.SetControlValue(0, 0, "gain", -1000)
	if v := m.ControlValue(0, 0, "gain").Value(); v != -60 {
		t.Fatalf("gain %v, want -60", v)
	}
	if len(sent(b)) != 2 {
		t.Fatal("expected two set-effect-value messages")
	}
	if m.SetControlValue(0, 1, "gain", 1) || m.SetControlValue(0, 0, "volume", 1) || m.SetControlValue(3, 0, "gain", 1) {
		t.Fatal("SetControlValue succeeded on a missing control")
	}
}

func TestSetRemoveEffectRoundTrip(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	m.AddStrip()
	if !m.SetEffect(0, 4, "Delay") {
		t.Fatal("SetEffect failed")
	}
	if !m.RemoveEffect(0, 4) {
		t.Fatal("RemoveEffect failed")
	}
	s, _ := m.Strip(0)
	if s.Chain[4] != nil {
		t.Fatal("slot not empty")
	}
	if m.RemoveEffect(0, 4) {
		t.Fatal("removing from an empty slot reported a change")
	}
	var topics []bus.Topic
	for _, msg := range sent(b) {
		topics = append(topics, msg.Topic)
	}
	want := []bus.Topic{bus.AddStrip, bus.SetEffect, bus.RemoveEffect}
	if len(topics) != len(want) {
		t.Fatalf("sent %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("sent %v, want %v", topics, want)
		}
	}
	if m.SetEffect(0, mixrack.ChainLength, "Gain") || m.SetEffect(0, 0, "Reverb") || m.SetEffect(2, 0, "Gain") {
		t.Fatal("invalid SetEffect succeeded")
	}
}

func TestEffectSetForUnknownStripIsDiscarded(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	m.AddStrip()
	m.SetEffect(0, 1, "Clip")
	before := m.Rack()
	effect := `{"type":"Gain","controls":[]}`
	if err := receive(t, m, bus.EffectSet, `{"strip":5,"index":1,"effect":`+effect+`}`); err == nil {
		t.Fatal("effect-set for strip 5 accepted")
	}
	if err := receive(t, m, bus.EffectSet, `{"strip":0,"id":"gone","index":1,"effect":`+effect+`}`); err == nil {
		t.Fatal("effect-set for an unknown strip id accepted")
	}
	if err := receive(t, m, bus.EffectSet, `{"strip":0,"index":12,"effect":`+effect+`}`); err == nil {
		t.Fatal("effect-set for slot 12 accepted")
	}
	if err := receive(t, m, bus.EffectSet, `{"strip":0,"index":1,"effect":{"type":"Phaser"}}`); err == nil {
		t.Fatal("effect-set with unknown type accepted")
	}
	after := m.Rack()
	if !after.Strips[0].Equal(&before.Strips[0]) {
		t.Fatal("discarded message changed the strip")
	}
}

func TestUnknownTopic(t *testing.T) {
	m := console.New(bus.NewBroker(), console.Options{})
	if err := receive(t, m, "rust-updatestrip", `{}`); err == nil {
		t.Fatal("unknown topic accepted")
	}
}

func TestStripRemovedOutOfRange(t *testing.T) {
	m := console.New(bus.NewBroker(), console.Options{})
	m.AddStrip()
	if err := receive(t, m, bus.StripRemoved, `3`); err == nil {
		t.Fatal("strip-removed 3 accepted")
	}
	if m.NumStrips() != 1 {
		t.Fatal("strip removed by an out of range message")
	}
}

func TestSetRoute(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	m.AddStrip()
	sent(b)
	if !m.SetRoute(0, true, mixrack.GeneratorRoute("Sine")) {
		t.Fatal("SetRoute failed")
	}
	if m.SetRoute(0, true, mixrack.GeneratorRoute("Sine")) {
		t.Fatal("setting the same route reported a change")
	}
	if m.SetRoute(0, false, mixrack.GeneratorRoute("Sine")) {
		t.Fatal("generator accepted as output")
	}
	if m.SetRoute(0, false, mixrack.BusRoute("")) {
		t.Fatal("empty bus accepted")
	}
	msgs := sent(b)
	if len(msgs) != 1 {
		t.Fatalf("sent %v", msgs)
	}
	var p bus.UpdateStripPayload
	if err := msgs[0].Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Kind != "input-generator" || p.Generator != "Sine" {
		t.Fatalf("sent %+v", p)
	}
	failures := 0
	for _, msg := range m.Messages() {
		if msg.Kind == console.Error {
			failures++
		}
	}
	if failures != 2 {
		t.Fatalf("%d error messages, want 2", failures)
	}
}

func TestSetGain(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	m.AddStrip()
	sent(b)
	if m.SetGain(0, 150) {
		t.Fatal("gain above the maximum of a strip at full gain reported a change")
	}
	if !m.SetGain(0, 40) {
		t.Fatal("SetGain failed")
	}
	msgs := sent(b)
	if len(msgs) != 1 {
		t.Fatalf("sent %v", msgs)
	}
	var p bus.UpdateStripPayload
	if err := msgs[0].Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Kind != "control" || p.Name != bus.GainControl || p.Value != 40 {
		t.Fatalf("sent %+v", p)
	}
}

func TestConfigUpdate(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	calls := 0
	m.Config().OnChange("audio.host", func(string, any) { calls++ })
	if err := receive(t, m, bus.ConfigUpdate, `{"key":"audio.host","value":"JACK"}`); err != nil {
		t.Fatal(err)
	}
	if calls != 1 || m.Config().GetString("audio.host", "") != "JACK" {
		t.Fatalf("listener called %d times, host %q", calls, m.Config().GetString("audio.host", ""))
	}
	if len(sent(b)) != 0 {
		t.Fatal("remote config update was sent back")
	}
	m.Config().Set("audio.host", "JACK")
	if len(sent(b)) != 0 || calls != 1 {
		t.Fatal("unchanged Set was not a no-op")
	}
	m.Config().Set("audio.host", "ALSA")
	msgs := sent(b)
	if len(msgs) != 1 || msgs[0].Topic != bus.ConfigUpdate || calls != 2 {
		t.Fatalf("sent %v, %d calls", msgs, calls)
	}
}

func TestThreadState(t *testing.T) {
	m := console.New(bus.NewBroker(), console.Options{})
	if err := receive(t, m, bus.ThreadState, `true`); err != nil || !m.ThreadRunning() {
		t.Fatalf("thread state not applied: %v", err)
	}
}

func TestActions(t *testing.T) {
	m := console.New(bus.NewBroker(), console.Options{})
	if m.ClearStripsAction().Enabled() || m.RemoveStripAction(0).Enabled() {
		t.Fatal("actions enabled on an empty rack")
	}
	m.AddStripAction().Do()
	m.AddStripAction().Do()
	m.RemoveStripAction(5).Do()
	if m.NumStrips() != 2 {
		t.Fatalf("%d strips, want 2", m.NumStrips())
	}
	m.SetEffect(1, 2, "Clip")
	if !m.RemoveEffectAction(1, 2).Enabled() || m.RemoveEffectAction(1, 3).Enabled() {
		t.Fatal("unexpected RemoveEffectAction state")
	}
	m.RemoveEffectAction(1, 2).Do()
	m.ClearStripsAction().Do()
	if m.NumStrips() != 0 {
		t.Fatal("rack not cleared")
	}
}

func TestInvalidRoutesFromEngineAreDiscarded(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	announcements := []string{
		`{"input":{"kind":"bus","bus":""},"output":{"kind":"mono","channel":0}}`,
		`{"input":{"kind":"mono","channel":0},"output":{"kind":"generator","generator":"Sine"}}`,
		`{"input":{"kind":"generator","generator":"Nope"},"output":{"kind":"mono","channel":0}}`,
		`{"input":{"kind":"stereo","left":-1,"right":1},"output":{"kind":"mono","channel":0}}`,
	}
	for _, a := range announcements {
		if err := receive(t, m, bus.StripAnnounced, a); !errors.Is(err, mixrack.ErrInvalidRoute) {
			t.Errorf("announcement %s: got %v, want ErrInvalidRoute", a, err)
		}
	}
	if m.NumStrips() != 0 {
		t.Fatalf("%d strips tracked after invalid announcements", m.NumStrips())
	}
	m.AddStrip()
	sent(b)
	m.RequestSnapshot()
	snapshot := `{"seq":1,"strips":[{"id":"x","input":{"kind":"bus","bus":""},"output":{"kind":"mono","channel":0},"gain":100}]}`
	if err := receive(t, m, bus.RackSnapshot, snapshot); !errors.Is(err, mixrack.ErrInvalidRoute) {
		t.Fatalf("snapshot with invalid route: %v", err)
	}
	s, _ := m.Strip(0)
	if m.NumStrips() != 1 || !s.Input.Equal(mixrack.DefaultInput()) {
		t.Fatalf("invalid snapshot changed the rack: %+v", m.Rack())
	}
}

func TestNudge(t *testing.T) {
	b := bus.NewBroker()
	m := console.New(b, console.Options{})
	m.AddStrip()
	m.SetEffect(0, 0, "Gain")
	sent(b)
	if !m.StripGain(0).Add(-30) || m.StripGain(0).Value() != 70 {
		t.Fatalf("gain %v, want 70", m.StripGain(0).Value())
	}
	if !m.ControlValue(0, 0, "gain").Add(100) || m.ControlValue(0, 0, "gain").Value() != 24 {
		t.Fatalf("control %v, want 24", m.ControlValue(0, 0, "gain").Value())
	}
	if m.ControlValue(0, 0, "gain").Add(1) {
		t.Fatal("Add beyond the maximum changed the value")
	}
	if len(sent(b)) != 2 {
		t.Fatal("expected one message per change")
	}
	m.RequestSnapshotAction().Do()
	msgs := sent(b)
	if len(msgs) != 1 || msgs[0].Topic != bus.RequestSnapshot {
		t.Fatalf("snapshot action sent %v", msgs)
	}
}
