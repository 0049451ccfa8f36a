package gomidi_test

import (
	"testing"

	"github.com/vsariola/mixrack/backend/gomidi"
)

func TestFormatList(t *testing.T) {
	if got := gomidi.FormatList(nil); got != gomidi.NoDevices {
		t.Fatalf("got %q", got)
	}
	if got := gomidi.FormatList([]string{"Keys", "Pads"}); got != "0: Keys\n1: Pads" {
		t.Fatalf("got %q", got)
	}
}
