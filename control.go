package mixrack

import (
	"fmt"
	"math"
)

type (
	// Control is a single adjustable parameter of an effect. Dials and sliders
	// are continuous between Min and Max, optionally snapped to Step. Toggles
	// have States discrete positions 0..States-1.
	Control struct {
		Name   string      `json:"name"`
		Kind   ControlKind `json:"kind"`
		Min    float64     `json:"min"`
		Max    float64     `json:"max"`
		Step   float64     `json:"step,omitempty" yaml:",omitempty"`
		States int         `json:"states,omitempty" yaml:",omitempty"`
		Value  float64     `json:"value"`
	}

	ControlKind int

	// Range is an inclusive range of values. If Step is positive, values are
	// snapped to Min + k*Step.
	Range struct {
		Min, Max, Step float64
	}
)

const (
	Dial ControlKind = iota
	Slider
	Toggle
)

var controlKindNames = [...]string{Dial: "dial", Slider: "slider", Toggle: "toggle"}

func (k ControlKind) String() string {
	if k < 0 || int(k) >= len(controlKindNames) {
		return fmt.Sprintf("ControlKind(%d)", int(k))
	}
	return controlKindNames[k]
}

func (k ControlKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(controlKindNames) {
		return nil, fmt.Errorf("control kind %d: %w", int(k), ErrTypeMismatch)
	}
	return []byte(controlKindNames[k]), nil
}

func (k *ControlKind) UnmarshalText(text []byte) error {
	for i, name := range controlKindNames {
		if name == string(text) {
			*k = ControlKind(i)
			return nil
		}
	}
	return fmt.Errorf("control kind %q: %w", text, ErrTypeMismatch)
}

// Continuous reports whether the control takes fractional values.
func (k ControlKind) Continuous() bool { return k != Toggle }

// Clamp returns the value closest to v that lies within the range. NaN is
// mapped to Min.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	if r.Step > 0 {
		v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	}
	return max(min(v, r.Max), r.Min)
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Range returns the allowed values of the control.
func (c *Control) Range() Range {
	if c.Kind == Toggle {
		return Range{Min: 0, Max: float64(max(c.States, 1) - 1), Step: 1}
	}
	return Range{Min: c.Min, Max: c.Max, Step: c.Step}
}

// Set clamps v to the range of the control and stores it. It returns the
// stored value.
func (c *Control) Set(v float64) float64 {
	c.Value = c.Range().Clamp(v)
	return c.Value
}

// ValueKind names the wire type of the control value: "float" for dials and
// sliders, "int" for toggles.
func (c *Control) ValueKind() string {
	if c.Kind.Continuous() {
		return "float"
	}
	return "int"
}
