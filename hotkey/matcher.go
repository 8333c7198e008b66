package hotkey

// KeyState is the folded pressed/released state of logical keys. It is
// owned by the Matcher and mutated only from the listener's dispatch
// goroutine, so it needs no locking.
type KeyState struct {
	down map[Key]bool
}

// NewKeyState returns an empty key state.
func NewKeyState() *KeyState {
	return &KeyState{down: make(map[Key]bool)}
}

// Down reports whether a key is currently held.
func (s *KeyState) Down(k Key) bool { return s.down[k] }

func (s *KeyState) set(k Key, down bool) {
	if down {
		s.down[k] = true
	} else {
		// A keyup for a key never seen as down still means "definitely up"
		// (possible after focus loss swallowed the keydown).
		delete(s.down, k)
	}
}

// Reset clears all held keys. Used when the listener shuts down.
func (s *KeyState) Reset() {
	clear(s.down)
}

// Matcher consumes normalized key events and raises edge-triggered
// engage/release signals for one combination.
//
// Engage requires ALL combo keys down and fires exactly once per hold;
// release fires as soon as ANY combo key is lifted while engaged. The
// asymmetry is deliberate: users lift modifiers slightly before the main
// key, and missing that release would strand a capture session open.
type Matcher struct {
	state   *KeyState
	combo   map[Key]bool
	engaged bool

	onEngaged  func()
	onReleased func()
}

// NewMatcher creates a matcher for the given combo. Callbacks run on the
// listener's dispatch goroutine and must not block.
func NewMatcher(combo Combo, onEngaged, onReleased func()) *Matcher {
	set := make(map[Key]bool, len(combo))
	for _, k := range combo {
		set[k] = true
	}
	return &Matcher{
		state:      NewKeyState(),
		combo:      set,
		onEngaged:  onEngaged,
		onReleased: onReleased,
	}
}

// Engaged reports whether the combo is currently engaged.
func (m *Matcher) Engaged() bool { return m.engaged }

// Handle processes one key transition and fires at most one signal.
func (m *Matcher) Handle(ev KeyEvent) {
	if ev.Down {
		if m.state.Down(ev.Key) {
			// Key-repeat; the edge already fired.
			return
		}
		m.state.set(ev.Key, true)
		if !m.engaged && m.allDown() {
			m.engaged = true
			if m.onEngaged != nil {
				m.onEngaged()
			}
		}
		return
	}

	m.state.set(ev.Key, false)
	if m.engaged && !m.allDown() {
		m.engaged = false
		if m.onReleased != nil {
			m.onReleased()
		}
	}
}

// Reset drops all key state and the engaged flag without firing signals.
func (m *Matcher) Reset() {
	m.state.Reset()
	m.engaged = false
}

func (m *Matcher) allDown() bool {
	for k := range m.combo {
		if !m.state.Down(k) {
			return false
		}
	}
	return true
}
