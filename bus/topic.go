package bus

// Topic names one kind of message on the event bus. The vocabulary is shared
// by the control surface and the engine and must match exactly on both sides.
type Topic string

// Engine to control surface.
const (
	StripAnnounced Topic = "strip-announced"
	StripRemoved   Topic = "strip-removed"
	StripsCleared  Topic = "strips-cleared"
	EffectSet      Topic = "effect-set"
	EffectRemoved  Topic = "effect-removed"
	RackSnapshot   Topic = "rack-snapshot"
	ThreadState    Topic = "thread-state"
)

// Control surface to engine.
const (
	UpdateStrip     Topic = "update-strip"
	SetEffect       Topic = "set-effect"
	RemoveEffect    Topic = "remove-effect"
	SetEffectValue  Topic = "set-effect-value"
	AddStrip        Topic = "add-strip"
	RemoveStrip     Topic = "remove-strip"
	ClearStrips     Topic = "clear-strips"
	RequestSnapshot Topic = "request-snapshot"
)

// ConfigUpdate travels both ways.
const ConfigUpdate Topic = "config-update"

// Topics lists every known topic.
var Topics = []Topic{
	StripAnnounced, StripRemoved, StripsCleared, EffectSet, EffectRemoved, RackSnapshot, ThreadState,
	UpdateStrip, SetEffect, RemoveEffect, SetEffectValue, AddStrip, RemoveStrip, ClearStrips, RequestSnapshot,
	ConfigUpdate,
}

// Known reports whether t is part of the vocabulary.
func (t Topic) Known() bool {
	for _, k := range Topics {
		if k == t {
			return true
		}
	}
	return false
}
