package console

type (
	// Action describes a user action that can be performed on the model, which
	// can be initiated by calling the Do() method. It is usually initiated by a
	// button press, a menu item or a console command. Action advertises
	// whether it is enabled, so UI can e.g. gray out buttons when the
	// underlying action is not allowed. The underlying Doer can optionally
	// implement the Enabler interface to decide if the action is enabled or
	// not; if it does not implement the Enabler interface, the action is
	// always allowed.
	Action struct {
		doer Doer
	}

	// Doer is an interface that defines a single Do() method, which is called
	// when an action is performed.
	Doer interface {
		Do()
	}

	// Enabler is an interface that defines a single Enabled() method, which
	// is used by the UI to check if an action is enabled or not.
	Enabler interface {
		Enabled() bool
	}
)

// Action methods

func MakeAction(doer Doer) Action {
	return Action{doer: doer}
}

func (a Action) Do() {
	e, ok := a.doer.(Enabler)
	if ok && !e.Enabled() {
		return
	}
	if a.doer != nil {
		a.doer.Do()
	}
}

func (a Action) Enabled() bool {
	if a.doer == nil {
		return false // no doer, not allowed
	}
	e, ok := a.doer.(Enabler)
	if !ok {
		return true // not enabler, always allowed
	}
	return e.Enabled()
}

// addStrip
type addStrip Model

func (m *Model) AddStripAction() Action { return MakeAction((*addStrip)(m)) }
func (m *addStrip) Do()                 { (*Model)(m).AddStrip() }

// removeStrip
type removeStrip struct {
	m     *Model
	index int
}

func (m *Model) RemoveStripAction(i int) Action { return MakeAction(removeStrip{m, i}) }
func (a removeStrip) Enabled() bool             { return a.index >= 0 && a.index < a.m.rack.Len() }
func (a removeStrip) Do()                       { a.m.RemoveStrip(a.index) }

// clearStrips
type clearStrips Model

func (m *Model) ClearStripsAction() Action { return MakeAction((*clearStrips)(m)) }
func (m *clearStrips) Enabled() bool       { return m.rack.Len() > 0 }
func (m *clearStrips) Do()                 { (*Model)(m).ClearStrips() }

// removeEffect
type removeEffect struct {
	m           *Model
	strip, slot int
}

func (m *Model) RemoveEffectAction(strip, slot int) Action {
	return MakeAction(removeEffect{m, strip, slot})
}

func (a removeEffect) Enabled() bool {
	s, err := a.m.rack.Strip(a.strip)
	return err == nil && a.slot >= 0 && a.slot < len(s.Chain) && s.Chain[a.slot] != nil
}

func (a removeEffect) Do() { a.m.RemoveEffect(a.strip, a.slot) }

// requestSnapshot
type requestSnapshot Model

func (m *Model) RequestSnapshotAction() Action { return MakeAction((*requestSnapshot)(m)) }
func (m *requestSnapshot) Do()                 { (*Model)(m).RequestSnapshot() }
