package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State models the session lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateStarting   State = "starting"
	StateActive     State = "active"
	StateFinalizing State = "finalizing"
	StateAborting   State = "aborting"
)

// Origin records what triggered a session.
type Origin string

const (
	OriginHotkey Origin = "hotkey"
	OriginManual Origin = "manual"
)

// Session describes one capture attempt. At most one session is in a
// non-idle state at any time.
type Session struct {
	ID        string
	Origin    Origin
	Backend   BackendKind
	StartedAt time.Time
}

// Events is the sink for session lifecycle notifications. Delivery to
// surfaces is at-least-once; receivers must treat duplicates as harmless.
type Events interface {
	SessionStateChanged(s Session, state State)
	TranscriptSegment(s Session, text string, final bool)
	// SessionCompleted fires once per session that produced transcript
	// text; the dispatch loop takes over from here.
	SessionCompleted(s Session, transcript string)
	// SessionDiscarded fires once per session that ended without usable
	// text (too short, no speech, aborted).
	SessionDiscarded(s Session)
	SessionError(s Session, message string)
}

// Config controls session behavior.
type Config struct {
	// MinHold discards sessions shorter than this when they also produced
	// no transcript (accidental taps, stray repeats).
	MinHold time.Duration

	// MaxRestarts caps restart-in-place attempts after unexpected backend
	// terminations within one session.
	MaxRestarts int

	// StopTimeout bounds Finalizing, including the buffered backend's
	// remote transcription call.
	StopTimeout time.Duration
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		MinHold:     250 * time.Millisecond,
		MaxRestarts: 3,
		StopTimeout: 45 * time.Second,
	}
}

// Controller is the capture session state machine. Every transition runs on
// one internal goroutine, so transitions are atomic with respect to each
// other regardless of which goroutine delivers the triggering signal.
type Controller struct {
	newBackend func() (Backend, error)
	events     Events
	cfg        Config

	cmds chan func()
	quit chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	// Owned by the loop goroutine.
	state       State
	session     *Session
	backend     Backend
	stopPending bool // stop requested while Starting
	stopAsked   bool // stop handed to the backend
	restarts    int

	// Snapshot for Status, maintained by the loop.
	statusMu      sync.RWMutex
	statusState   State
	statusSession Session
}

// NewController creates a controller. newBackend is invoked once per
// session, so runtime backend switches apply to the next session.
func NewController(newBackend func() (Backend, error), events Events, cfg Config) *Controller {
	if cfg.MinHold <= 0 {
		cfg.MinHold = 250 * time.Millisecond
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 3
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 45 * time.Second
	}
	return &Controller{
		newBackend:  newBackend,
		events:      events,
		cfg:         cfg,
		cmds:        make(chan func(), 64),
		quit:        make(chan struct{}),
		state:       StateIdle,
		statusState: StateIdle,
	}
}

// Start launches the controller loop.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		go c.loop()
	})
}

// Close stops the loop. In-flight backend goroutines finish on their own;
// their completion messages are dropped.
func (c *Controller) Close() {
	c.stopOnce.Do(func() {
		close(c.quit)
	})
}

// Engage requests a new session. A no-op outside Idle: duplicate engages
// from key-repeat floods or racing manual clicks are normal input, not
// errors.
func (c *Controller) Engage(origin Origin) {
	c.post(func() { c.engage(origin) })
}

// Release requests the end of the current session. A no-op when no session
// is active; a release during Starting is queued as "stop once active".
func (c *Controller) Release() {
	c.post(c.release)
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() (State, Session) {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.statusState, c.statusSession
}

func (c *Controller) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.quit:
	}
}

func (c *Controller) loop() {
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			return
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────
// Transitions (loop goroutine only)
// ─────────────────────────────────────────────────────────────────────────

func (c *Controller) engage(origin Origin) {
	if c.state != StateIdle {
		slog.Debug("engage ignored", "state", c.state, "origin", origin)
		return
	}

	backend, err := c.newBackend()
	if err != nil {
		c.events.SessionError(Session{Origin: origin}, fmt.Sprintf("capture unavailable: %v", err))
		return
	}

	session := &Session{
		ID:        uuid.NewString(),
		Origin:    origin,
		Backend:   backend.Kind(),
		StartedAt: time.Now(),
	}

	c.session = session
	c.backend = backend
	c.stopPending = false
	c.stopAsked = false
	c.restarts = 0
	c.setState(StateStarting)

	slog.Info("capture session starting", "session", session.ID, "origin", origin, "backend", session.Backend)
	go c.startBackend(backend, session.ID)
}

func (c *Controller) startBackend(backend Backend, sessionID string) {
	err := backend.Start(context.Background(), &sink{c: c, sessionID: sessionID})
	c.post(func() { c.backendReady(backend, sessionID, err) })
}

func (c *Controller) backendReady(backend Backend, sessionID string, err error) {
	if c.session == nil || c.session.ID != sessionID {
		// The session moved on while the backend was acquiring the device.
		// Make sure the orphan releases it.
		if err == nil {
			go func() { _ = backend.Abort() }()
		}
		return
	}

	if err != nil {
		if c.state == StateActive {
			// A restart-in-place attempt failed; count it like another
			// unexpected termination.
			c.backendTerminated(sessionID, err)
			return
		}
		slog.Warn("capture start failed", "session", sessionID, "error", err)
		c.events.SessionError(*c.session, fmt.Sprintf("could not start capture: %v", err))
		c.finish(false, "")
		return
	}

	if c.state == StateStarting {
		c.setState(StateActive)
	}

	if c.stopPending {
		c.stopPending = false
		c.release()
	}
}

func (c *Controller) release() {
	switch c.state {
	case StateStarting:
		c.stopPending = true
	case StateActive:
		c.beginStop()
	default:
		slog.Debug("release ignored", "state", c.state)
	}
}

func (c *Controller) beginStop() {
	c.stopAsked = true
	c.setState(StateFinalizing)

	backend, sessionID := c.backend, c.session.ID
	timeout := c.cfg.StopTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		transcript, err := backend.Stop(ctx)
		c.post(func() { c.finalized(sessionID, transcript, err) })
	}()
}

func (c *Controller) finalized(sessionID, transcript string, err error) {
	if c.session == nil || c.session.ID != sessionID {
		return
	}

	if err != nil {
		slog.Warn("finalize failed", "session", sessionID, "error", err)
		c.events.SessionError(*c.session, fmt.Sprintf("transcription failed: %v", err))
		c.finish(false, "")
		return
	}

	// Only silence is discarded. A short hold that still produced words is a
	// real command; the min-hold threshold just classifies the empty ones.
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		held := time.Since(c.session.StartedAt)
		if held < c.cfg.MinHold {
			slog.Debug("accidental tap discarded", "session", sessionID, "held", held)
		} else {
			slog.Debug("session discarded, no speech", "session", sessionID, "held", held)
		}
		c.finish(false, "")
		return
	}

	c.finish(true, transcript)
}

// backendTerminated handles a backend halting on its own while a session is
// active. Unless a stop was requested, the same backend restarts in place
// with the same session identity; the restart budget guards against a
// permanently broken device.
func (c *Controller) backendTerminated(sessionID string, err error) {
	if c.session == nil || c.session.ID != sessionID {
		return
	}
	if c.stopAsked || c.state != StateActive {
		return
	}

	c.restarts++
	if c.restarts > c.cfg.MaxRestarts {
		slog.Warn("restart budget exhausted", "session", sessionID, "restarts", c.restarts-1, "error", err)
		c.events.SessionError(*c.session, "voice capture kept failing; session cancelled")
		c.setState(StateAborting)

		backend := c.backend
		go func() {
			_ = backend.Abort()
			c.post(func() { c.aborted(sessionID) })
		}()
		return
	}

	slog.Info("restarting capture in place", "session", sessionID, "attempt", c.restarts, "error", err)
	go c.startBackend(c.backend, sessionID)
}

func (c *Controller) aborted(sessionID string) {
	if c.session == nil || c.session.ID != sessionID {
		return
	}
	c.finish(false, "")
}

// finish is the single exit back to Idle for every path.
func (c *Controller) finish(completed bool, transcript string) {
	session := *c.session

	c.session = nil
	c.backend = nil
	c.stopPending = false
	c.stopAsked = false
	c.setState(StateIdle)

	if completed {
		slog.Info("capture session completed", "session", session.ID, "chars", len(transcript))
		c.events.SessionCompleted(session, transcript)
	} else {
		c.events.SessionDiscarded(session)
	}
}

func (c *Controller) setState(state State) {
	c.state = state

	var snapshot Session
	if c.session != nil {
		snapshot = *c.session
	}

	c.statusMu.Lock()
	c.statusState = state
	c.statusSession = snapshot
	c.statusMu.Unlock()

	c.events.SessionStateChanged(snapshot, state)
}

// sink relays backend signals onto the controller loop, tagged with the
// session they belong to so stale signals from finished sessions drop out.
type sink struct {
	c         *Controller
	sessionID string
}

func (s *sink) Segment(text string, final bool) {
	s.c.post(func() {
		if s.c.session == nil || s.c.session.ID != s.sessionID {
			return
		}
		s.c.events.TranscriptSegment(*s.c.session, text, final)
	})
}

func (s *sink) Terminated(err error) {
	s.c.post(func() { s.c.backendTerminated(s.sessionID, err) })
}
