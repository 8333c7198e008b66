package hotkey

import (
	"testing"
	"time"

	hook "github.com/robotn/gohook"
)

func TestListener_EngageFromHookEvents(t *testing.T) {
	engaged := make(chan struct{}, 1)
	released := make(chan struct{}, 1)
	m := NewMatcher(Combo{KeyCtrl, KeySpace},
		func() { engaged <- struct{}{} },
		func() { released <- struct{}{} },
	)

	raw := make(chan hook.Event, 16)
	l := NewListener(m)
	l.hookStart = func() chan hook.Event { return raw }
	l.hookEnd = func() {}

	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	raw <- hook.Event{Kind: hook.KeyDown, Rawcode: 65507}
	raw <- hook.Event{Kind: hook.KeyDown, Rawcode: 32}

	select {
	case <-engaged:
	case <-time.After(time.Second):
		t.Fatal("combo never engaged")
	}

	// Key-repeat holds must not produce extra edges.
	raw <- hook.Event{Kind: hook.KeyHold, Rawcode: 32}
	raw <- hook.Event{Kind: hook.KeyUp, Rawcode: 65507}

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("combo never released")
	}

	select {
	case <-engaged:
		t.Fatal("unexpected second engage")
	default:
	}
}

func TestListener_ReportsHookUnavailable(t *testing.T) {
	m := NewMatcher(Combo{KeySpace}, nil, nil)

	l := NewListener(m)
	l.hookStart = func() chan hook.Event { return nil }
	l.hookEnd = func() {}

	status := make(chan bool, 1)
	l.SetStatusCallback(func(available bool) { status <- available })

	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	select {
	case available := <-status:
		if available {
			t.Error("status = available, want unavailable")
		}
	case <-time.After(time.Second):
		t.Fatal("status callback never fired")
	}
}

func TestListener_InjectFallback(t *testing.T) {
	engaged := make(chan struct{}, 1)
	m := NewMatcher(Combo{KeyCtrl, KeySpace},
		func() { engaged <- struct{}{} },
		nil,
	)

	l := NewListener(m)
	l.hookStart = func() chan hook.Event { return nil }
	l.hookEnd = func() {}

	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer l.Stop()

	l.Inject(KeyCtrl, true)
	l.Inject(KeySpace, true)

	select {
	case <-engaged:
	case <-time.After(time.Second):
		t.Fatal("injected keys never engaged the combo")
	}
}

func TestListener_DoubleStart(t *testing.T) {
	m := NewMatcher(Combo{KeySpace}, nil, nil)
	l := NewListener(m)
	l.hookStart = func() chan hook.Event { return nil }
	l.hookEnd = func() {}

	if err := l.Start(); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	defer l.Stop()

	if err := l.Start(); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}
