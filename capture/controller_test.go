package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a controllable Backend for state machine tests.
type fakeBackend struct {
	mu        sync.Mutex
	startErr  error
	stopText  string
	stopErr   error
	startGate chan struct{} // when set, Start blocks until closed
	starts    int
	stops     int
	aborts    int

	sinks chan BackendSink // delivers the sink of each successful Start
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sinks: make(chan BackendSink, 8)}
}

func (f *fakeBackend) Kind() BackendKind { return KindLive }

func (f *fakeBackend) Start(_ context.Context, sink BackendSink) error {
	f.mu.Lock()
	gate := f.startGate
	err := f.startErr
	f.starts++
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	f.sinks <- sink
	return nil
}

func (f *fakeBackend) Stop(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopText, f.stopErr
}

func (f *fakeBackend) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	return nil
}

func (f *fakeBackend) counts() (starts, stops, aborts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops, f.aborts
}

type stateChange struct {
	session Session
	state   State
}

type completion struct {
	session    Session
	transcript string
}

// eventLog records controller events on buffered channels so tests can wait
// deterministically.
type eventLog struct {
	states    chan stateChange
	completed chan completion
	discarded chan Session
	errs      chan string
}

func newEventLog() *eventLog {
	return &eventLog{
		states:    make(chan stateChange, 64),
		completed: make(chan completion, 8),
		discarded: make(chan Session, 8),
		errs:      make(chan string, 8),
	}
}

func (l *eventLog) SessionStateChanged(s Session, state State) {
	l.states <- stateChange{session: s, state: state}
}
func (l *eventLog) TranscriptSegment(Session, string, bool) {}
func (l *eventLog) SessionCompleted(s Session, transcript string) {
	l.completed <- completion{session: s, transcript: transcript}
}
func (l *eventLog) SessionDiscarded(s Session)      { l.discarded <- s }
func (l *eventLog) SessionError(_ Session, msg string) { l.errs <- msg }

func waitState(t *testing.T, log *eventLog, want State) Session {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case sc := <-log.states:
			if sc.state == want {
				return sc.session
			}
		case <-deadline:
			t.Fatalf("never reached state %q", want)
		}
	}
}

func waitSink(t *testing.T, f *fakeBackend) BackendSink {
	t.Helper()
	select {
	case sink := <-f.sinks:
		return sink
	case <-time.After(2 * time.Second):
		t.Fatal("backend never started")
		return nil
	}
}

func testConfig() Config {
	return Config{
		MinHold:     time.Nanosecond,
		MaxRestarts: 3,
		StopTimeout: time.Second,
	}
}

func newTestController(t *testing.T, backend Backend, cfg Config) (*Controller, *eventLog) {
	t.Helper()
	log := newEventLog()
	c := NewController(func() (Backend, error) { return backend, nil }, log, cfg)
	c.Start()
	t.Cleanup(c.Close)
	return c, log
}

func TestController_CompleteSession(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = "play hurt by newjeans"
	c, log := newTestController(t, backend, testConfig())

	c.Engage(OriginHotkey)
	started := waitState(t, log, StateStarting)
	waitSink(t, backend)
	active := waitState(t, log, StateActive)

	if active.ID != started.ID {
		t.Fatalf("session changed between Starting and Active: %q vs %q", started.ID, active.ID)
	}

	c.Release()
	waitState(t, log, StateFinalizing)
	waitState(t, log, StateIdle)

	select {
	case done := <-log.completed:
		if done.transcript != "play hurt by newjeans" {
			t.Errorf("transcript = %q, want %q", done.transcript, "play hurt by newjeans")
		}
		if done.session.ID != started.ID {
			t.Errorf("completed session %q, want %q", done.session.ID, started.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session never completed")
	}

	if _, stops, _ := backend.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestController_SingleFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = "hello"
	factoryCalls := 0
	log := newEventLog()
	c := NewController(func() (Backend, error) {
		factoryCalls++
		return backend, nil
	}, log, testConfig())
	c.Start()
	t.Cleanup(c.Close)

	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)

	// Racing engages from the second trigger path are ignored.
	c.Engage(OriginManual)
	c.Engage(OriginHotkey)

	c.Release()
	waitState(t, log, StateIdle)
	<-log.completed

	if factoryCalls != 1 {
		t.Errorf("factory calls = %d, want 1", factoryCalls)
	}
	if starts, _, _ := backend.counts(); starts != 1 {
		t.Errorf("starts = %d, want 1", starts)
	}
}

func TestController_EmptyTranscriptDiscarded(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = "   "
	c, log := newTestController(t, backend, testConfig())

	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)
	c.Release()
	waitState(t, log, StateIdle)

	select {
	case <-log.discarded:
	case <-time.After(2 * time.Second):
		t.Fatal("session never discarded")
	}
	select {
	case done := <-log.completed:
		t.Fatalf("unexpected completion %+v", done)
	default:
	}
}

func TestController_ShortHoldWithTranscriptCompletes(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = "play something"
	cfg := testConfig()
	cfg.MinHold = time.Hour
	c, log := newTestController(t, backend, cfg)

	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)
	c.Release()
	waitState(t, log, StateIdle)

	// A sub-threshold hold that still produced words is a real command.
	select {
	case done := <-log.completed:
		if done.transcript != "play something" {
			t.Errorf("transcript = %q, want %q", done.transcript, "play something")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("short session with transcript never completed")
	}
	select {
	case s := <-log.discarded:
		t.Fatalf("session %q discarded despite transcript", s.ID)
	default:
	}
}

func TestController_ShortHoldWithoutTranscriptDiscarded(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = ""
	cfg := testConfig()
	cfg.MinHold = time.Hour
	c, log := newTestController(t, backend, cfg)

	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)
	c.Release()
	waitState(t, log, StateIdle)

	select {
	case <-log.discarded:
	case <-time.After(2 * time.Second):
		t.Fatal("accidental tap never discarded")
	}
}

func TestController_StartFailureReturnsToIdle(t *testing.T) {
	backend := newFakeBackend()
	backend.startErr = errors.New("microphone permission denied")
	c, log := newTestController(t, backend, testConfig())

	c.Engage(OriginHotkey)
	waitState(t, log, StateStarting)

	select {
	case msg := <-log.errs:
		if msg == "" {
			t.Error("empty session error message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("start failure never reported")
	}

	waitState(t, log, StateIdle)

	// The controller is ready for another attempt.
	backend.mu.Lock()
	backend.startErr = nil
	backend.mu.Unlock()

	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)
}

func TestController_ReleaseWhileStarting(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = "queued stop"
	gate := make(chan struct{})
	backend.startGate = gate
	c, log := newTestController(t, backend, testConfig())

	c.Engage(OriginHotkey)
	waitState(t, log, StateStarting)

	// Release arrives while the backend is still acquiring the device.
	c.Release()
	close(gate)

	waitSink(t, backend)
	waitState(t, log, StateFinalizing)
	waitState(t, log, StateIdle)

	select {
	case done := <-log.completed:
		if done.transcript != "queued stop" {
			t.Errorf("transcript = %q, want %q", done.transcript, "queued stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued stop never completed the session")
	}

	if _, stops, _ := backend.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestController_RestartInPlaceKeepsSession(t *testing.T) {
	backend := newFakeBackend()
	backend.stopText = "survived a restart"
	c, log := newTestController(t, backend, testConfig())

	c.Engage(OriginHotkey)
	sink := waitSink(t, backend)
	active := waitState(t, log, StateActive)

	// The recognizer drops mid-session; the controller restarts in place.
	sink.Terminated(errors.New("stream closed"))
	waitSink(t, backend)

	if state, session := c.Status(); state != StateActive || session.ID != active.ID {
		t.Fatalf("after restart: state %q session %q, want active %q", state, session.ID, active.ID)
	}

	c.Release()
	waitState(t, log, StateIdle)

	select {
	case done := <-log.completed:
		if done.session.ID != active.ID {
			t.Errorf("completed session %q, want %q (no new session identity)", done.session.ID, active.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("restarted session never completed")
	}

	if starts, _, _ := backend.counts(); starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
}

func TestController_RestartBudgetExhausted(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig()
	cfg.MaxRestarts = 2
	c, log := newTestController(t, backend, cfg)

	c.Engage(OriginHotkey)
	sink := waitSink(t, backend)
	waitState(t, log, StateActive)

	for i := 0; i < cfg.MaxRestarts; i++ {
		sink.Terminated(errors.New("stream closed"))
		sink = waitSink(t, backend)
	}

	// One failure past the budget abandons the session.
	sink.Terminated(errors.New("stream closed"))

	select {
	case <-log.errs:
	case <-time.After(2 * time.Second):
		t.Fatal("budget exhaustion never reported")
	}
	waitState(t, log, StateAborting)
	waitState(t, log, StateIdle)

	select {
	case <-log.discarded:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned session never discarded")
	}

	if _, _, aborts := backend.counts(); aborts != 1 {
		t.Errorf("aborts = %d, want 1", aborts)
	}
}

func TestController_ReleaseWhenIdleIsNoop(t *testing.T) {
	backend := newFakeBackend()
	c, log := newTestController(t, backend, testConfig())

	c.Release()

	// Nothing should have happened; a fresh engage still works.
	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)
}

func TestController_FinalizeErrorReported(t *testing.T) {
	backend := newFakeBackend()
	backend.stopErr = errors.New("transcription service unreachable")
	c, log := newTestController(t, backend, testConfig())

	c.Engage(OriginHotkey)
	waitSink(t, backend)
	waitState(t, log, StateActive)
	c.Release()

	select {
	case <-log.errs:
	case <-time.After(2 * time.Second):
		t.Fatal("finalize error never reported")
	}
	waitState(t, log, StateIdle)
	select {
	case <-log.discarded:
	case <-time.After(2 * time.Second):
		t.Fatal("failed session never discarded")
	}
}
