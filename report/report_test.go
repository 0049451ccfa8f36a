package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/report"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := report.Render(&buf, mixrack.Rack{}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No strips\n" {
		t.Fatalf("empty rack rendered as %q", buf.String())
	}
	s := mixrack.Strip{Input: mixrack.GeneratorRoute("Sine"), Output: mixrack.StereoRoute(0, 1), Gain: 80}
	e, err := mixrack.NewEffect("BitCrusher")
	if err != nil {
		t.Fatal(err)
	}
	s.SetEffect(1, e)
	rack := mixrack.Rack{}
	rack.Add(s)
	rack.Add(mixrack.Strip{ID: "0123456789abcdef", Input: mixrack.BusRoute("drums"), Output: mixrack.MonoRoute(2)})
	buf.Reset()
	if err := report.Render(&buf, rack); err != nil {
		t.Fatal(err)
	}
	want := " 0  generator(Sine) -> stereo(0, 1)  gain 80\n" +
		"    1: BitCrusher bits=8\n" +
		" 1  bus(drums) -> mono(2)  gain 0  [01234567]\n"
	if buf.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.tmpl")
	if err := os.WriteFile(path, []byte(`{{ len .Strips }} {{ "strips" | upper }}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := report.NewFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, mixrack.Rack{Strips: make([]mixrack.Strip, 3)}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "3 STRIPS" {
		t.Fatalf("got %q", buf.String())
	}
	if _, err := report.NewFromFile(filepath.Join(t.TempDir(), "missing.tmpl")); err == nil {
		t.Fatal("missing template loaded")
	}
}
