package mixrack

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	// Route tells where the signal of a strip comes from (input) or goes to
	// (output). Only the fields of the variant named by Kind are meaningful.
	Route struct {
		Kind      RouteKind
		Channel   int    // Mono
		Left      int    // Stereo
		Right     int    // Stereo
		Bus       string // Bus
		Generator string // Generator, inputs only
	}

	RouteKind int
)

const (
	NoRoute RouteKind = iota
	Mono
	Stereo
	Bus
	Generator
)

// Generators lists the signal generators a strip input can be bound to.
var Generators = []string{"Sine", "Sampler"}

var routeKindNames = [...]string{NoRoute: "none", Mono: "mono", Stereo: "stereo", Bus: "bus", Generator: "generator"}

func (k RouteKind) String() string {
	if k < 0 || int(k) >= len(routeKindNames) {
		return fmt.Sprintf("RouteKind(%d)", int(k))
	}
	return routeKindNames[k]
}

// ParseRouteKind returns the kind with the given discriminator.
func ParseRouteKind(s string) (RouteKind, error) {
	for i, name := range routeKindNames {
		if name == s {
			return RouteKind(i), nil
		}
	}
	return NoRoute, fmt.Errorf("route kind %q: %w", s, ErrTypeMismatch)
}

func MonoRoute(channel int) Route         { return Route{Kind: Mono, Channel: channel} }
func StereoRoute(left, right int) Route   { return Route{Kind: Stereo, Left: left, Right: right} }
func BusRoute(name string) Route          { return Route{Kind: Bus, Bus: name} }
func GeneratorRoute(name string) Route    { return Route{Kind: Generator, Generator: name} }
func DefaultInput() Route                 { return MonoRoute(0) }
func DefaultOutput() Route                { return MonoRoute(0) }
func (r Route) Equal(o Route) bool        { return r.normalized() == o.normalized() }
func (r Route) IsGenerator(n string) bool { return r.Kind == Generator && r.Generator == n }

// normalized zeroes the fields not used by the variant.
func (r Route) normalized() Route {
	switch r.Kind {
	case Mono:
		return Route{Kind: Mono, Channel: r.Channel}
	case Stereo:
		return Route{Kind: Stereo, Left: r.Left, Right: r.Right}
	case Bus:
		return Route{Kind: Bus, Bus: r.Bus}
	case Generator:
		return Route{Kind: Generator, Generator: r.Generator}
	}
	return Route{}
}

// Validate checks the local invariants of the route. Channel indices are only
// checked for sign; their upper bound is known only by the engine.
func (r Route) Validate(input bool) error {
	switch r.Kind {
	case NoRoute:
		return nil
	case Mono:
		if r.Channel < 0 {
			return fmt.Errorf("mono channel %d: %w", r.Channel, ErrInvalidRoute)
		}
	case Stereo:
		if r.Left < 0 || r.Right < 0 {
			return fmt.Errorf("stereo channels %d, %d: %w", r.Left, r.Right, ErrInvalidRoute)
		}
	case Bus:
		if strings.TrimSpace(r.Bus) == "" {
			return fmt.Errorf("empty bus name: %w", ErrInvalidRoute)
		}
	case Generator:
		if !input {
			return fmt.Errorf("generator %q as output: %w", r.Generator, ErrInvalidRoute)
		}
		for _, g := range Generators {
			if g == r.Generator {
				return nil
			}
		}
		return fmt.Errorf("unknown generator %q: %w", r.Generator, ErrInvalidRoute)
	default:
		return fmt.Errorf("route kind %d: %w", int(r.Kind), ErrTypeMismatch)
	}
	return nil
}

// String formats the route as e.g. "mono(0)", "stereo(0, 1)", "bus(fx)",
// "generator(Sine)" or "none".
func (r Route) String() string {
	switch r.Kind {
	case Mono:
		return fmt.Sprintf("mono(%d)", r.Channel)
	case Stereo:
		return fmt.Sprintf("stereo(%d, %d)", r.Left, r.Right)
	case Bus:
		return fmt.Sprintf("bus(%s)", r.Bus)
	case Generator:
		return fmt.Sprintf("generator(%s)", r.Generator)
	}
	return r.Kind.String()
}

// ParseRoute parses the format produced by Route.String. A bare generator
// name, e.g. "Sine", is also accepted.
func ParseRoute(s string) (Route, error) {
	s = strings.TrimSpace(s)
	for _, g := range Generators {
		if strings.EqualFold(s, g) {
			return GeneratorRoute(g), nil
		}
	}
	name, args, found := strings.Cut(s, "(")
	kind, err := ParseRouteKind(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return Route{}, err
	}
	if kind == NoRoute {
		return Route{}, nil
	}
	if !found || !strings.HasSuffix(args, ")") {
		return Route{}, fmt.Errorf("route %q: missing arguments: %w", s, ErrInvalidRoute)
	}
	fields := strings.Split(strings.TrimSuffix(args, ")"), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	ints := func(n int) ([]int, error) {
		if len(fields) != n {
			return nil, fmt.Errorf("route %q: want %d arguments: %w", s, n, ErrInvalidRoute)
		}
		ret := make([]int, n)
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", s, ErrInvalidRoute)
			}
			ret[i] = v
		}
		return ret, nil
	}
	switch kind {
	case Mono:
		v, err := ints(1)
		if err != nil {
			return Route{}, err
		}
		return MonoRoute(v[0]), nil
	case Stereo:
		v, err := ints(2)
		if err != nil {
			return Route{}, err
		}
		return StereoRoute(v[0], v[1]), nil
	case Bus:
		return BusRoute(fields[0]), nil
	default:
		return GeneratorRoute(fields[0]), nil
	}
}

type routeJSON struct {
	Kind      string  `json:"kind"`
	Channel   *int    `json:"channel,omitempty"`
	Left      *int    `json:"left,omitempty"`
	Right     *int    `json:"right,omitempty"`
	Bus       *string `json:"bus,omitempty"`
	Generator *string `json:"generator,omitempty"`
}

// MarshalJSON encodes the route as a tagged union keyed by "kind", carrying
// only the fields of the variant.
func (r Route) MarshalJSON() ([]byte, error) {
	r = r.normalized()
	w := routeJSON{Kind: r.Kind.String()}
	switch r.Kind {
	case Mono:
		w.Channel = &r.Channel
	case Stereo:
		w.Left, w.Right = &r.Left, &r.Right
	case Bus:
		w.Bus = &r.Bus
	case Generator:
		w.Generator = &r.Generator
	}
	return json.Marshal(w)
}

func (r *Route) UnmarshalJSON(data []byte) error {
	var w routeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := ParseRouteKind(w.Kind)
	if err != nil {
		return err
	}
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	*r = Route{Kind: kind, Channel: deref(w.Channel), Left: deref(w.Left), Right: deref(w.Right)}
	if w.Bus != nil {
		r.Bus = *w.Bus
	}
	if w.Generator != nil {
		r.Generator = *w.Generator
	}
	*r = r.normalized()
	return nil
}

// MarshalYAML writes the route in its string form, keeping session files
// readable.
func (r Route) MarshalYAML() (any, error) { return r.String(), nil }

func (r *Route) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	ret, err := ParseRoute(s)
	if err != nil {
		return err
	}
	*r = ret
	return nil
}
