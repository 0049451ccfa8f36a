package console

import (
	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/bus"
)

type (
	// Float is a continuous value of the model that the UI can read and
	// change, e.g. with a dial. Changes are clamped to the range and sent to
	// the engine.
	Float struct {
		FloatData
	}

	FloatData interface {
		Value() float64
		Range() mixrack.Range
		Enabled() bool

		setValue(float64)
	}

	controlValue struct {
		m     *Model
		strip int
		slot  int
		name  string
	}

	stripGain struct {
		m     *Model
		strip int
	}
)

func (v Float) Set(value float64) (ok bool) {
	if !v.Enabled() {
		return false
	}
	value = v.Range().Clamp(value)
	if value == v.Value() {
		return false
	}
	v.setValue(value)
	return true
}

func (v Float) Add(delta float64) (ok bool) {
	return v.Set(v.Value() + delta)
}

// Model methods

// ControlValue returns the named control of the effect in the given slot. If
// there is no such control, the value is disabled.
func (m *Model) ControlValue(strip, slot int, name string) Float {
	return Float{&controlValue{m: m, strip: strip, slot: slot, name: name}}
}

// StripGain returns the linear gain of a strip.
func (m *Model) StripGain(strip int) Float {
	return Float{&stripGain{m: m, strip: strip}}
}

// controlValue methods

func (v *controlValue) effect() (*mixrack.Strip, *mixrack.Effect, *mixrack.Control) {
	s, err := v.m.rack.Strip(v.strip)
	if err != nil || v.slot < 0 || v.slot >= mixrack.ChainLength {
		return nil, nil, nil
	}
	e := s.Chain[v.slot]
	return s, e, e.Control(v.name)
}

func (v *controlValue) Enabled() bool {
	_, _, c := v.effect()
	return c != nil
}

func (v *controlValue) Value() float64 {
	if _, _, c := v.effect(); c != nil {
		return c.Value
	}
	return 0
}

func (v *controlValue) Range() mixrack.Range {
	if _, _, c := v.effect(); c != nil {
		return c.Range()
	}
	return mixrack.Range{}
}

func (v *controlValue) setValue(value float64) {
	s, e, c := v.effect()
	if c == nil {
		return
	}
	c.Value = value
	v.m.publish(bus.SetEffectValue, bus.SetEffectValuePayload{
		Strip:     v.strip,
		ID:        s.ID,
		Index:     v.slot,
		EffectID:  e.ID,
		ValueName: c.Name,
		ValueKind: c.ValueKind(),
		Value:     value,
	})
}

// stripGain methods

func (v *stripGain) Enabled() bool {
	_, err := v.m.rack.Strip(v.strip)
	return err == nil
}

func (v *stripGain) Value() float64 {
	if s, err := v.m.rack.Strip(v.strip); err == nil {
		return s.Gain
	}
	return 0
}

func (v *stripGain) Range() mixrack.Range { return mixrack.GainRange }

func (v *stripGain) setValue(value float64) {
	s, err := v.m.rack.Strip(v.strip)
	if err != nil {
		return
	}
	s.Gain = value
	v.m.publish(bus.UpdateStrip, bus.GainUpdate(v.strip, s.ID, value))
}
