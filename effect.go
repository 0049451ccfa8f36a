package mixrack

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

type (
	// Effect is one instance of an effect type, occupying one slot of a strip's
	// chain. The controls are always the ones defined for the type in
	// EffectTypes, in the same order.
	Effect struct {
		// ID identifies this effect instance across the event bus. Empty ID
		// means the instance was created by a peer that does not assign IDs.
		ID       string    `json:"id,omitempty" yaml:",omitempty"`
		Type     string    `json:"type"`
		Controls []Control `json:"controls" yaml:",flow"`
	}

	// ControlDef documents one control that an effect type takes.
	ControlDef struct {
		Name    string
		Kind    ControlKind
		Min     float64 // minimum value, inclusive; ignored for toggles
		Max     float64 // maximum value, inclusive; ignored for toggles
		Step    float64 // 0 means no snapping
		States  int     // number of positions of a toggle
		Default float64
	}
)

// EffectTypes is the catalog of known effect types and the controls they
// take. The order of the controls is the order of Effect.Controls.
var EffectTypes = map[string][]ControlDef{
	"BitCrusher": {
		{Name: "bits", Kind: Slider, Min: 1, Max: 16, Step: 1, Default: 8}},
	"Clip": {
		{Name: "threshold", Kind: Dial, Min: 0, Max: 1, Step: 0.01, Default: 1}},
	"Delay": {
		{Name: "length", Kind: Dial, Min: 1, Max: 192000, Step: 1, Default: 22050},
		{Name: "feedback", Kind: Dial, Min: 0, Max: 1, Step: 0.01, Default: 0.5},
		{Name: "stereo", Kind: Toggle, States: 2, Default: 0}},
	"Gain": {
		{Name: "gain", Kind: Slider, Min: -60, Max: 24, Step: 0.5, Default: 0}},
}

// EffectTypeNames returns the names of the known effect types, sorted.
func EffectTypeNames() []string {
	ret := make([]string, 0, len(EffectTypes))
	for name := range EffectTypes {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// LookupEffectType returns the canonical name of the effect type matching
// name, ignoring case.
func LookupEffectType(name string) (string, bool) {
	if _, ok := EffectTypes[name]; ok {
		return name, true
	}
	fold := cases.Fold() // a Caser is not safe for concurrent use
	folded := fold.String(name)
	for typ := range EffectTypes {
		if fold.String(typ) == folded {
			return typ, true
		}
	}
	return "", false
}

// Control returns the control definition with the given name.
func (d ControlDef) Control() Control {
	c := Control{Name: d.Name, Kind: d.Kind, Min: d.Min, Max: d.Max, Step: d.Step, States: d.States}
	if d.Kind == Toggle {
		c.Min, c.Max, c.Step = 0, float64(max(d.States, 1)-1), 1
	}
	c.Set(d.Default)
	return c
}

// NewEffect creates an effect of the given type with default control values
// and a fresh ID.
func NewEffect(typ string) (*Effect, error) {
	name, ok := LookupEffectType(typ)
	if !ok {
		return nil, fmt.Errorf("%q: %w", typ, ErrUnknownEffect)
	}
	defs := EffectTypes[name]
	e := &Effect{ID: uuid.NewString(), Type: name, Controls: make([]Control, len(defs))}
	for i, d := range defs {
		e.Controls[i] = d.Control()
	}
	return e, nil
}

// Copy makes a deep copy of an effect. Copy of nil is nil.
func (e *Effect) Copy() *Effect {
	if e == nil {
		return nil
	}
	controls := make([]Control, len(e.Controls))
	copy(controls, e.Controls)
	return &Effect{ID: e.ID, Type: e.Type, Controls: controls}
}

// Control returns a pointer to the control with the given name, or nil.
func (e *Effect) Control(name string) *Control {
	if e == nil {
		return nil
	}
	for i := range e.Controls {
		if e.Controls[i].Name == name {
			return &e.Controls[i]
		}
	}
	return nil
}

// Normalize rebuilds the controls of the effect from its type definition.
// Values present in the effect are kept by name, clamped to their range;
// missing controls get their defaults and unknown ones are dropped. Bounds
// and kinds always come from the catalog, so a peer cannot widen them.
func (e *Effect) Normalize() error {
	name, ok := LookupEffectType(e.Type)
	if !ok {
		return fmt.Errorf("%q: %w", e.Type, ErrUnknownEffect)
	}
	defs := EffectTypes[name]
	controls := make([]Control, len(defs))
	for i, d := range defs {
		controls[i] = d.Control()
		if old := e.Control(d.Name); old != nil {
			controls[i].Set(old.Value)
		}
	}
	e.Type = name
	e.Controls = controls
	return nil
}

// Equal reports whether two effects have the same type and control values.
// IDs are compared only when both are set.
func (e *Effect) Equal(o *Effect) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Type != o.Type || len(e.Controls) != len(o.Controls) {
		return false
	}
	if e.ID != "" && o.ID != "" && e.ID != o.ID {
		return false
	}
	for i := range e.Controls {
		if e.Controls[i] != o.Controls[i] {
			return false
		}
	}
	return true
}
