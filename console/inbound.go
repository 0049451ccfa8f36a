package console

import (
	"fmt"

	"github.com/vsariola/mixrack"
	"github.com/vsariola/mixrack/bus"
)

// ProcessMessage applies one message from the engine to the local state.
// Messages addressing strips or slots that do not exist locally are
// discarded and reported with mixrack.ErrOutOfRange or
// mixrack.ErrStaleUpdate; unknown topics and malformed payloads with
// mixrack.ErrTypeMismatch. A discarded message never changes the state.
func (m *Model) ProcessMessage(msg bus.Message) error {
	switch msg.Topic {
	case bus.StripAnnounced:
		var p bus.StripAnnouncedPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return m.stripAnnounced(p)
	case bus.StripRemoved:
		var p bus.StripRemovedPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		if p.ID != "" && m.isEcho(bus.StripRemoved, p.ID) {
			return nil
		}
		i, err := m.resolve(p.Index, p.ID)
		if err != nil {
			return err
		}
		_, err = m.rack.Remove(i)
		return err
	case bus.StripsCleared:
		if m.isEcho(bus.StripsCleared, "") {
			return nil
		}
		m.rack.Clear()
		// the engine re-announces what it has, including strips added here
		// and not yet confirmed
		clear(m.echoes)
	case bus.EffectSet:
		var p bus.EffectSetPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return m.effectSet(p)
	case bus.EffectRemoved:
		var p bus.EffectRemovedPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return m.effectRemoved(p)
	case bus.ConfigUpdate:
		var p bus.ConfigUpdatePayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		m.config.Apply(p.Key, p.Value)
	case bus.RackSnapshot:
		var p bus.RackSnapshotPayload
		if err := msg.Decode(&p); err != nil {
			return err
		}
		return m.reconcile(p)
	case bus.ThreadState:
		var running bool
		if err := msg.Decode(&running); err != nil {
			return err
		}
		m.threadRunning = running
	default:
		return fmt.Errorf("topic %q: %w", msg.Topic, mixrack.ErrTypeMismatch)
	}
	return nil
}

// resolve finds the local strip a message refers to. The ID takes precedence
// over the index, as the index may have shifted since the message was sent.
func (m *Model) resolve(index int, id string) (int, error) {
	if id != "" {
		if i := m.rack.IndexOf(id); i >= 0 {
			return i, nil
		}
		return -1, fmt.Errorf("strip %s: %w", id, mixrack.ErrStaleUpdate)
	}
	if _, err := m.rack.Strip(index); err != nil {
		return -1, err
	}
	return index, nil
}

func (m *Model) stripAnnounced(p bus.StripAnnouncedPayload) error {
	if p.ID != "" && m.isEcho(bus.StripAnnounced, p.ID) {
		return nil
	}
	s, err := p.Strip()
	if err != nil {
		return err
	}
	if m.rack.IndexOf(s.ID) >= 0 {
		m.logger.Debug("strip already tracked", "id", s.ID)
		return nil
	}
	m.rack.Add(s)
	return nil
}

func (m *Model) effectSet(p bus.EffectSetPayload) error {
	if p.Effect != nil && p.Effect.ID != "" && m.isEcho(bus.EffectSet, p.Effect.ID) {
		return nil
	}
	i, err := m.resolve(p.Strip, p.ID)
	if err != nil {
		return err
	}
	if p.Effect == nil {
		return fmt.Errorf("effect-set without effect: %w", mixrack.ErrTypeMismatch)
	}
	if p.Index < 0 || p.Index >= mixrack.ChainLength {
		return fmt.Errorf("slot %d: %w", p.Index, mixrack.ErrOutOfRange)
	}
	e := p.Effect.Copy()
	if err := e.Normalize(); err != nil {
		return err
	}
	s := &m.rack.Strips[i]
	if old := s.Chain[p.Index]; old != nil && e.ID != "" && old.ID == e.ID {
		return nil
	}
	return s.SetEffect(p.Index, e)
}

func (m *Model) effectRemoved(p bus.EffectRemovedPayload) error {
	if p.EffectID != "" && m.isEcho(bus.EffectRemoved, p.EffectID) {
		return nil
	}
	i, err := m.resolve(p.Strip, p.ID)
	if err != nil {
		return err
	}
	if p.Index < 0 || p.Index >= mixrack.ChainLength {
		return fmt.Errorf("slot %d: %w", p.Index, mixrack.ErrOutOfRange)
	}
	s := &m.rack.Strips[i]
	old := s.Chain[p.Index]
	if old == nil {
		return nil
	}
	if p.EffectID != "" && old.ID != p.EffectID {
		return fmt.Errorf("effect %s replaced by %s: %w", p.EffectID, old.ID, mixrack.ErrStaleUpdate)
	}
	_, err = s.RemoveEffect(p.Index)
	return err
}

// reconcile replaces every local strip that differs from the engine's
// snapshot. A snapshot taken before the latest local mutations is stale and
// is discarded.
func (m *Model) reconcile(p bus.RackSnapshotPayload) error {
	if p.Seq != m.mutationSeq {
		return fmt.Errorf("snapshot %d, local mutation %d: %w", p.Seq, m.mutationSeq, mixrack.ErrStaleUpdate)
	}
	remote := make([]mixrack.Strip, len(p.Strips))
	for i := range p.Strips {
		r := p.Strips[i]
		if err := r.SetChain(r.Chain[:]); err != nil {
			return fmt.Errorf("snapshot strip %d: %w", i, err)
		}
		if err := r.ValidateRoutes(); err != nil {
			return fmt.Errorf("snapshot strip %d: %w", i, err)
		}
		r.Gain = mixrack.GainRange.Clamp(r.Gain)
		remote[i] = r
	}
	corrections := 0
	for i := range remote {
		if i >= len(m.rack.Strips) {
			m.rack.Add(remote[i])
			corrections++
			continue
		}
		if !m.rack.Strips[i].Equal(&remote[i]) {
			m.rack.Strips[i] = remote[i]
			corrections++
		}
	}
	if extra := len(m.rack.Strips) - len(remote); extra > 0 {
		m.rack.Strips = m.rack.Strips[:len(remote)]
		corrections += extra
	}
	// the engine sent every confirmation it owed before the snapshot
	clear(m.echoes)
	if corrections > 0 {
		m.logger.Info("rack reconciled with engine", "corrections", corrections)
	}
	return nil
}
