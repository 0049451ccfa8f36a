package console

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/bus"
	"gopkg.in/yaml.v3"
)

// WriteSession writes the rack as YAML.
func (m *Model) WriteSession(w io.Writer) error {
	b, err := yaml.Marshal(m.rack)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// ReadSession replaces the rack with one read from r, in JSON or YAML. The
// engine is told to clear its rack and is sent every strip again. On error,
// the rack is left unchanged.
func (m *Model) ReadSession(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	var rack mixrack.Rack
	if errJSON := json.Unmarshal(b, &rack); errJSON != nil {
		rack = mixrack.Rack{}
		if errYaml := yaml.Unmarshal(b, &rack); errYaml != nil {
			return fmt.Errorf("unmarshaling session: %v / %v", errYaml, errJSON)
		}
	}
	for i := range rack.Strips {
		s := &rack.Strips[i]
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if err := s.SetChain(s.Chain[:]); err != nil {
			return fmt.Errorf("session strip %d: %w", i, err)
		}
		for _, e := range s.Chain {
			if e != nil && e.ID == "" {
				e.ID = uuid.NewString()
			}
		}
		if err := s.ValidateRoutes(); err != nil {
			return fmt.Errorf("session strip %d: %w", i, err)
		}
		s.Gain = mixrack.GainRange.Clamp(s.Gain)
	}
	m.rack = rack
	m.expectEcho(bus.StripsCleared, "")
	m.publish(bus.ClearStrips, nil)
	for i := range m.rack.Strips {
		s := &m.rack.Strips[i]
		chain := make([]*mixrack.Effect, len(s.Chain))
		for j, e := range s.Chain {
			chain[j] = e.Copy()
		}
		m.expectEcho(bus.StripAnnounced, s.ID)
		m.publish(bus.AddStrip, bus.AddStripPayload{ID: s.ID, Input: s.Input, Output: s.Output, Gain: s.Gain, Chain: chain})
	}
	return nil
}
