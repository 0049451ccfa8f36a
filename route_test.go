package mixrack_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/vsariola/mixrack"
	"gopkg.in/yaml.v3"
)

func TestRouteString(t *testing.T) {
	tests := []struct {
		route mixrack.Route
		want  string
	}{
		{mixrack.MonoRoute(3), "mono(3)"},
		{mixrack.StereoRoute(0, 1), "stereo(0, 1)"},
		{mixrack.BusRoute("fx"), "bus(fx)"},
		{mixrack.GeneratorRoute("Sine"), "generator(Sine)"},
		{mixrack.Route{}, "none"},
	}
	for _, tt := range tests {
		if got := tt.route.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		parsed, err := mixrack.ParseRoute(tt.want)
		if err != nil {
			t.Errorf("ParseRoute(%q) error: %v", tt.want, err)
			continue
		}
		if !parsed.Equal(tt.route) {
			t.Errorf("ParseRoute(%q) = %v", tt.want, parsed)
		}
	}
}

func TestParseRouteErrors(t *testing.T) {
	for _, s := range []string{"quad(1,2,3,4)", "mono", "mono(x)", "stereo(1)"} {
		if _, err := mixrack.ParseRoute(s); err == nil {
			t.Errorf("ParseRoute(%q) succeeded", s)
		}
	}
	r, err := mixrack.ParseRoute("sampler")
	if err != nil || !r.IsGenerator("Sampler") {
		t.Fatalf("ParseRoute(sampler) = %v, %v", r, err)
	}
}

func TestRouteValidate(t *testing.T) {
	tests := []struct {
		route mixrack.Route
		input bool
		ok    bool
	}{
		{mixrack.MonoRoute(0), true, true},
		{mixrack.MonoRoute(-1), false, false},
		{mixrack.BusRoute(""), false, false},
		{mixrack.BusRoute("drums"), false, true},
		{mixrack.GeneratorRoute("Sine"), true, true},
		{mixrack.GeneratorRoute("Sine"), false, false},
		{mixrack.GeneratorRoute("Noise"), true, false},
	}
	for _, tt := range tests {
		err := tt.route.Validate(tt.input)
		if (err == nil) != tt.ok {
			t.Errorf("%v.Validate(%v) = %v", tt.route, tt.input, err)
		}
		if err != nil && !errors.Is(err, mixrack.ErrInvalidRoute) {
			t.Errorf("%v.Validate: error %v is not ErrInvalidRoute", tt.route, err)
		}
	}
}

func TestRouteJSONCarriesOnlyVariantFields(t *testing.T) {
	b, err := json.Marshal(mixrack.Route{Kind: mixrack.Stereo, Left: 2, Right: 3, Channel: 9})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"kind":"stereo","left":2,"right":3}` {
		t.Fatalf("got %s", b)
	}
	var r mixrack.Route
	if err := json.Unmarshal([]byte(`{"kind":"surround"}`), &r); !errors.Is(err, mixrack.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestRouteYAML(t *testing.T) {
	b, err := yaml.Marshal(struct{ In mixrack.Route }{mixrack.StereoRoute(4, 5)})
	if err != nil {
		t.Fatal(err)
	}
	var got struct{ In mixrack.Route }
	if err := yaml.Unmarshal(b, &got); err != nil {
		t.Fatalf("yaml.Unmarshal(%s) error: %v", b, err)
	}
	if !got.In.Equal(mixrack.StereoRoute(4, 5)) {
		t.Fatalf("got %v", got.In)
	}
}
