// Package config implements the key/value settings store that is mirrored
// between the control surface and the engine.
package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"time"
)

type (
	// Store is a key/value map of settings with per-key change listeners.
	// A Store is not safe for concurrent use: it is owned by one goroutine,
	// the same one that applies remote updates to it.
	Store struct {
		values    map[string]any
		listeners map[string][]*listener
		publish   func(key string, value any)
		logger    *slog.Logger
	}

	// Listener is called with the key and the new value after a change.
	Listener func(key string, value any)

	listener struct {
		fn Listener
	}
)

// NewStore returns an empty store. A nil logger means slog.Default().
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		values:    map[string]any{},
		listeners: map[string][]*listener{},
		logger:    logger,
	}
}

// SetPublisher sets the function that sends local changes to the peer. It is
// called after the listeners, for every change made with Set.
func (s *Store) SetPublisher(fn func(key string, value any)) {
	s.publish = fn
}

// Lookup returns the value of key and whether it is present.
func (s *Store) Lookup(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Get returns the value of key. If the key is absent, def is stored with Set,
// so that the default becomes the shared value, and returned.
func (s *Store) Get(key string, def any) any {
	if v, ok := s.values[key]; ok {
		return v
	}
	s.Set(key, def)
	return def
}

func (s *Store) GetString(key, def string) string {
	switch v := s.Get(key, def).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func (s *Store) GetInt(key string, def int) int {
	if f, ok := toFloat(s.Get(key, def)); ok {
		return int(f)
	}
	if v, err := strconv.Atoi(s.GetString(key, "")); err == nil {
		return v
	}
	return def
}

// GetDuration returns a duration. Strings are parsed with
// time.ParseDuration; numbers are taken as milliseconds.
func (s *Store) GetDuration(key string, def time.Duration) time.Duration {
	switch v := s.Get(key, def.String()).(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case time.Duration:
		return v
	default:
		if f, ok := toFloat(v); ok {
			return time.Duration(f * float64(time.Millisecond))
		}
	}
	s.logger.Warn("config: invalid duration", "key", key, "value", s.values[key])
	return def
}

// Set stores value under key. If the value is unchanged, Set does nothing and
// returns false. Otherwise the listeners of the key are called in the order
// they were registered, then the change is published.
func (s *Store) Set(key string, value any) bool {
	if !s.store(key, value) {
		return false
	}
	if s.publish != nil {
		s.publish(key, value)
	}
	return true
}

// Apply stores a value received from the peer. It is like Set, but the
// change is not published back.
func (s *Store) Apply(key string, value any) bool {
	return s.store(key, value)
}

func (s *Store) store(key string, value any) bool {
	if old, ok := s.values[key]; ok && Equal(old, value) {
		return false
	}
	s.values[key] = value
	s.logger.Debug("config: set", "key", key, "value", value)
	for _, l := range slices.Clone(s.listeners[key]) {
		l.fn(key, value)
	}
	return true
}

// OnChange registers fn to be called whenever the value of key changes. Any
// number of listeners can be registered per key. The returned function
// removes the listener.
func (s *Store) OnChange(key string, fn Listener) (cancel func()) {
	l := &listener{fn: fn}
	s.listeners[key] = append(s.listeners[key], l)
	return func() {
		ls := s.listeners[key]
		if i := slices.Index(ls, l); i >= 0 {
			s.listeners[key] = slices.Delete(ls, i, i+1)
		}
	}
}

// Keys returns the keys present in the store, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Snapshot returns a copy of the values.
func (s *Store) Snapshot() map[string]any {
	ret := make(map[string]any, len(s.values))
	for k, v := range s.values {
		ret[k] = v
	}
	return ret
}

// Load reads values from p and stores them with Set, so that they are
// published to the peer.
func (s *Store) Load(p Persister) error {
	values, err := p.Load()
	if err != nil {
		return fmt.Errorf("config: load: %w", err)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		s.Set(k, values[k])
	}
	return nil
}

// Save writes all values to p.
func (s *Store) Save(p Persister) error {
	if err := p.Save(s.Snapshot()); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	return nil
}

// Equal compares two config values. Numbers compare by value regardless of
// their Go type, as values decoded from JSON are always float64.
func Equal(a, b any) bool {
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	if oka && okb {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
