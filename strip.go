package mixrack

import (
	"fmt"

	"github.com/google/uuid"
)

// ChainLength is the number of effect slots in every strip.
const ChainLength = 10

// DefaultGain is the linear gain of a new strip, on the 0..100 scale.
const DefaultGain = 100

// GainRange is the allowed range of Strip.Gain.
var GainRange = Range{Min: 0, Max: 100}

// Strip is one channel of the rack: an input route, a chain of effect slots
// and an output route. A nil slot is an empty slot.
type Strip struct {
	ID     string               `json:"id,omitempty" yaml:",omitempty"`
	Input  Route                `json:"input"`
	Chain  [ChainLength]*Effect `json:"chain"`
	Output Route                `json:"output"`
	Gain   float64              `json:"gain"`
}

// NewStrip returns an empty strip with default routes and a fresh ID.
func NewStrip() Strip {
	return Strip{ID: uuid.NewString(), Input: DefaultInput(), Output: DefaultOutput(), Gain: DefaultGain}
}

// Copy makes a deep copy of a strip.
func (s *Strip) Copy() Strip {
	ret := *s
	for i, e := range s.Chain {
		ret.Chain[i] = e.Copy()
	}
	return ret
}

// Equal reports whether two strips have the same routes, gain and chain.
func (s *Strip) Equal(o *Strip) bool {
	if s.ID != o.ID || !s.Input.Equal(o.Input) || !s.Output.Equal(o.Output) || s.Gain != o.Gain {
		return false
	}
	for i := range s.Chain {
		if !s.Chain[i].Equal(o.Chain[i]) {
			return false
		}
	}
	return true
}

// SetChain replaces the chain with the given slots. Missing slots are empty;
// a chain longer than ChainLength is rejected. Every effect is normalized
// against the catalog.
func (s *Strip) SetChain(chain []*Effect) error {
	if len(chain) > ChainLength {
		return fmt.Errorf("chain of %d slots: %w", len(chain), ErrOutOfRange)
	}
	var ret [ChainLength]*Effect
	for i, e := range chain {
		if e == nil {
			continue
		}
		e = e.Copy()
		if err := e.Normalize(); err != nil {
			return fmt.Errorf("slot %d: %w", i, err)
		}
		ret[i] = e
	}
	s.Chain = ret
	return nil
}

// ValidateRoutes checks the input and output routes of the strip.
func (s *Strip) ValidateRoutes() error {
	if err := s.Input.Validate(true); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := s.Output.Validate(false); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// SetEffect installs e in the given slot, replacing any previous occupant.
func (s *Strip) SetEffect(slot int, e *Effect) error {
	if slot < 0 || slot >= ChainLength {
		return fmt.Errorf("slot %d: %w", slot, ErrOutOfRange)
	}
	s.Chain[slot] = e
	return nil
}

// RemoveEffect empties the given slot. It returns the removed effect, or nil
// if the slot was already empty.
func (s *Strip) RemoveEffect(slot int) (*Effect, error) {
	if slot < 0 || slot >= ChainLength {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrOutOfRange)
	}
	e := s.Chain[slot]
	s.Chain[slot] = nil
	return e, nil
}

// FindEffect returns the slot of the effect instance with the given ID, or -1.
func (s *Strip) FindEffect(id string) int {
	if id == "" {
		return -1
	}
	for i, e := range s.Chain {
		if e != nil && e.ID == id {
			return i
		}
	}
	return -1
}

// NumEffects returns the number of occupied slots.
func (s *Strip) NumEffects() (n int) {
	for _, e := range s.Chain {
		if e != nil {
			n++
		}
	}
	return
}
