package badgerkv_test

import (
	"testing"

	"github.com/vsariola/mixrack/config"
	"github.com/vsariola/mixrack/config/badgerkv"
)

func TestSaveLoad(t *testing.T) {
	kv, err := badgerkv.Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	s := config.NewStore(nil)
	s.Set(config.KeyHost, "JACK")
	s.Set(config.KeyOutputBufferSize, 1024)
	if err := s.Save(kv); err != nil {
		t.Fatal(err)
	}
	if err := kv.Delete(config.KeyHost); err != nil {
		t.Fatal(err)
	}
	s2 := config.NewStore(nil)
	if err := s2.Load(kv); err != nil {
		t.Fatal(err)
	}
	if _, ok := s2.Lookup(config.KeyHost); ok {
		t.Fatal("deleted key was loaded")
	}
	if got := s2.GetInt(config.KeyOutputBufferSize, 0); got != 1024 {
		t.Fatalf("buffer size %d, want 1024", got)
	}
}

func TestPersistentDir(t *testing.T) {
	dir := t.TempDir()
	kv, err := badgerkv.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Save(map[string]any{config.KeyInputDevice: "USB"}); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}
	kv, err = badgerkv.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	values, err := kv.Load()
	if err != nil {
		t.Fatal(err)
	}
	if values[config.KeyInputDevice] != "USB" {
		t.Fatalf("loaded %v", values)
	}
}
