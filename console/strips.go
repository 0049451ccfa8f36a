package console

import (
	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/bus"
)

// AddStrip appends an empty strip with default routes and tells the engine.
// It returns the index of the new strip.
func (m *Model) AddStrip() int {
	s := mixrack.NewStrip()
	i := m.rack.Add(s)
	m.expectEcho(bus.StripAnnounced, s.ID)
	m.publish(bus.AddStrip, bus.AddStripPayload{ID: s.ID, Input: s.Input, Output: s.Output, Gain: s.Gain})
	return i
}

// RemoveStrip removes the strip at index i; later strips shift down by one.
// It does nothing and returns false if there is no such strip.
func (m *Model) RemoveStrip(i int) (ok bool) {
	s, err := m.rack.Remove(i)
	if err != nil {
		return false
	}
	m.expectEcho(bus.StripRemoved, s.ID)
	m.publish(bus.RemoveStrip, bus.RemoveStripPayload{Strip: i, ID: s.ID})
	return true
}

// ClearStrips removes all strips.
func (m *Model) ClearStrips() {
	m.rack.Clear()
	m.expectEcho(bus.StripsCleared, "")
	m.publish(bus.ClearStrips, nil)
}

// SetEffect installs a new effect of type typ with default controls in the
// given slot, replacing any previous occupant.
func (m *Model) SetEffect(strip, slot int, typ string) (ok bool) {
	s, err := m.rack.Strip(strip)
	if err != nil || slot < 0 || slot >= mixrack.ChainLength {
		return false
	}
	e, err := mixrack.NewEffect(typ)
	if err != nil {
		m.AddMessage(Error, err.Error())
		return false
	}
	s.Chain[slot] = e
	m.expectEcho(bus.EffectSet, e.ID)
	m.publish(bus.SetEffect, bus.SetEffectPayload{Option: e.Type, Strip: strip, ID: s.ID, Index: slot, EffectID: e.ID})
	return true
}

// RemoveEffect empties the given slot. Removing from an empty slot does
// nothing and returns false.
func (m *Model) RemoveEffect(strip, slot int) (ok bool) {
	s, err := m.rack.Strip(strip)
	if err != nil {
		return false
	}
	e, err := s.RemoveEffect(slot)
	if err != nil || e == nil {
		return false
	}
	m.expectEcho(bus.EffectRemoved, e.ID)
	m.publish(bus.RemoveEffect, bus.RemoveEffectPayload{Strip: strip, ID: s.ID, Index: slot, EffectID: e.ID})
	return true
}

// SetControlValue clamps value to the range of the named control and stores
// it. Every change is sent to the engine without waiting for a reply, so
// this can be called for every step of a drag.
func (m *Model) SetControlValue(strip, slot int, name string, value float64) (ok bool) {
	return m.ControlValue(strip, slot, name).Set(value)
}

// SetRoute replaces the input or output route of a strip.
func (m *Model) SetRoute(strip int, input bool, r mixrack.Route) (ok bool) {
	s, err := m.rack.Strip(strip)
	if err != nil {
		return false
	}
	if err := r.Validate(input); err != nil {
		m.AddMessage(Error, err.Error())
		return false
	}
	target := &s.Output
	if input {
		target = &s.Input
	}
	if target.Equal(r) {
		return false
	}
	*target = r
	m.publish(bus.UpdateStrip, bus.RouteUpdate(strip, s.ID, input, r))
	return true
}

// SetGain sets the linear gain of a strip, clamped to 0..100.
func (m *Model) SetGain(strip int, gain float64) (ok bool) {
	return m.StripGain(strip).Set(gain)
}
