package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vsariola/mixrack"
)

type (
	// StripAnnouncedPayload describes a strip that exists in the engine.
	StripAnnouncedPayload struct {
		ID     string            `json:"id,omitempty"`
		Input  mixrack.Route     `json:"input"`
		Chain  []*mixrack.Effect `json:"chain"`
		Output mixrack.Route     `json:"output"`
		Gain   *float64          `json:"gain,omitempty"`
	}

	// StripRemovedPayload encodes as a bare index when it has no ID, and as
	// {"index":…,"id":…} otherwise. Both forms are accepted when decoding.
	StripRemovedPayload struct {
		Index int
		ID    string
	}

	EffectSetPayload struct {
		Strip  int             `json:"strip"`
		ID     string          `json:"id,omitempty"`
		Index  int             `json:"index"`
		Effect *mixrack.Effect `json:"effect"`
	}

	EffectRemovedPayload struct {
		Strip    int    `json:"strip"`
		ID       string `json:"id,omitempty"`
		Index    int    `json:"index"`
		EffectID string `json:"effect_id,omitempty"`
	}

	ConfigUpdatePayload struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}

	// UpdateStripPayload changes a route or the gain of a strip. Kind is e.g.
	// "input-mono" or "output-stereo" for routes and "control" for the gain;
	// the remaining fields depend on the kind.
	UpdateStripPayload struct {
		Index     int     `json:"index"`
		ID        string  `json:"id,omitempty"`
		Kind      string  `json:"kind"`
		Channel   int     `json:"channel,omitempty"`
		Left      int     `json:"left,omitempty"`
		Right     int     `json:"right,omitempty"`
		Bus       string  `json:"bus,omitempty"`
		Generator string  `json:"generator,omitempty"`
		Name      string  `json:"name,omitempty"`
		Value     float64 `json:"value,omitempty"`
	}

	SetEffectPayload struct {
		Option   string `json:"option"`
		Strip    int    `json:"strip"`
		ID       string `json:"id,omitempty"`
		Index    int    `json:"index"`
		EffectID string `json:"effect_id,omitempty"`
	}

	RemoveEffectPayload struct {
		Strip    int    `json:"strip"`
		ID       string `json:"id,omitempty"`
		Index    int    `json:"index"`
		EffectID string `json:"effect_id,omitempty"`
	}

	SetEffectValuePayload struct {
		Strip     int     `json:"strip"`
		ID        string  `json:"id,omitempty"`
		Index     int     `json:"index"`
		EffectID  string  `json:"effect_id,omitempty"`
		ValueName string  `json:"value_name"`
		ValueKind string  `json:"value_kind"`
		Value     float64 `json:"value"`
	}

	AddStripPayload struct {
		ID     string            `json:"id,omitempty"`
		Input  mixrack.Route     `json:"input"`
		Output mixrack.Route     `json:"output"`
		Gain   float64           `json:"gain"`
		Chain  []*mixrack.Effect `json:"chain,omitempty"`
	}

	RemoveStripPayload struct {
		Strip int    `json:"strip"`
		ID    string `json:"id,omitempty"`
	}

	// RequestSnapshotPayload is optional. Seq is echoed in the snapshot, so
	// the requester can tell which of its mutations the snapshot includes.
	RequestSnapshotPayload struct {
		Seq uint64 `json:"seq,omitempty"`
	}

	RackSnapshotPayload struct {
		Seq    uint64          `json:"seq,omitempty"`
		Strips []mixrack.Strip `json:"strips"`
	}
)

// GainControl is the name used in "control" strip updates for the strip gain.
const GainControl = "gain"

// AnnounceStrip builds the announcement of a strip.
func AnnounceStrip(s *mixrack.Strip) StripAnnouncedPayload {
	chain := make([]*mixrack.Effect, len(s.Chain))
	for i, e := range s.Chain {
		chain[i] = e.Copy()
	}
	gain := s.Gain
	return StripAnnouncedPayload{ID: s.ID, Input: s.Input, Chain: chain, Output: s.Output, Gain: &gain}
}

// Strip builds the strip described by the announcement. Effects are
// normalized against the catalog; invalid routes and a chain longer than
// mixrack.ChainLength are errors.
func (p StripAnnouncedPayload) Strip() (mixrack.Strip, error) {
	s := mixrack.Strip{ID: p.ID, Input: p.Input, Output: p.Output, Gain: mixrack.DefaultGain}
	if p.Gain != nil {
		s.Gain = mixrack.GainRange.Clamp(*p.Gain)
	}
	if err := s.ValidateRoutes(); err != nil {
		return mixrack.Strip{}, err
	}
	if err := s.SetChain(p.Chain); err != nil {
		return mixrack.Strip{}, err
	}
	return s, nil
}

func (p StripRemovedPayload) MarshalJSON() ([]byte, error) {
	if p.ID == "" {
		return json.Marshal(p.Index)
	}
	return json.Marshal(struct {
		Index int    `json:"index"`
		ID    string `json:"id"`
	}{p.Index, p.ID})
}

func (p *StripRemovedPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		*p = StripRemovedPayload{}
		return json.Unmarshal(data, &p.Index)
	}
	var w struct {
		Index int    `json:"index"`
		ID    string `json:"id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = StripRemovedPayload{Index: w.Index, ID: w.ID}
	return nil
}

// RouteUpdate builds the strip update that sets the input or output route.
func RouteUpdate(index int, id string, input bool, r mixrack.Route) UpdateStripPayload {
	dir := "output"
	if input {
		dir = "input"
	}
	return UpdateStripPayload{
		Index:     index,
		ID:        id,
		Kind:      dir + "-" + r.Kind.String(),
		Channel:   r.Channel,
		Left:      r.Left,
		Right:     r.Right,
		Bus:       r.Bus,
		Generator: r.Generator,
	}
}

// GainUpdate builds the strip update that sets the gain.
func GainUpdate(index int, id string, gain float64) UpdateStripPayload {
	return UpdateStripPayload{Index: index, ID: id, Kind: "control", Name: GainControl, Value: gain}
}

// IsControl reports whether the update changes a strip control instead of a
// route.
func (p UpdateStripPayload) IsControl() bool { return p.Kind == "control" }

// Route decodes a route update. It fails with mixrack.ErrTypeMismatch for an
// unknown kind.
func (p UpdateStripPayload) Route() (input bool, r mixrack.Route, err error) {
	dir, variant, ok := strings.Cut(p.Kind, "-")
	if !ok || (dir != "input" && dir != "output") {
		return false, mixrack.Route{}, fmt.Errorf("update kind %q: %w", p.Kind, mixrack.ErrTypeMismatch)
	}
	kind, err := mixrack.ParseRouteKind(variant)
	if err != nil {
		return false, mixrack.Route{}, fmt.Errorf("update kind %q: %w", p.Kind, err)
	}
	switch kind {
	case mixrack.Mono:
		r = mixrack.MonoRoute(p.Channel)
	case mixrack.Stereo:
		r = mixrack.StereoRoute(p.Left, p.Right)
	case mixrack.Bus:
		r = mixrack.BusRoute(p.Bus)
	case mixrack.Generator:
		r = mixrack.GeneratorRoute(p.Generator)
	}
	return dir == "input", r, nil
}
