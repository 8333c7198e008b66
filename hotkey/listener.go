package hotkey

import (
	"fmt"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// Listener installs the system-wide keyboard hook and feeds normalized key
// events to a Matcher on a single dispatch goroutine. The hook goroutine
// only folds and posts; it never runs matcher logic, so a slow consumer can
// never back up the OS input pipeline (events are dropped instead).
type Listener struct {
	matcher *Matcher

	events chan KeyEvent
	stop   chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once

	statusCallback func(available bool)

	// Swappable for tests and for platforms without hook support.
	hookStart func() chan hook.Event
	hookEnd   func()
}

// NewListener creates a listener driving the given matcher.
func NewListener(matcher *Matcher) *Listener {
	return &Listener{
		matcher:   matcher,
		events:    make(chan KeyEvent, 128),
		stop:      make(chan struct{}),
		hookStart: hook.Start,
		hookEnd:   hook.End,
	}
}

// SetStatusCallback registers a callback reporting hook availability. It is
// invoked once after Start: false means the global hook could not be
// installed and the caller must fall back to in-window key events via
// Inject.
func (l *Listener) SetStatusCallback(fn func(available bool)) {
	l.statusCallback = fn
}

// Start installs the hook and begins dispatching.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return fmt.Errorf("hotkey listener already started")
	}
	l.started = true

	go l.dispatchLoop()
	go l.hookLoop()
	return nil
}

// Stop tears down the hook and clears key state.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
		if l.hookEnd != nil {
			l.hookEnd()
		}
	})
}

// Inject feeds a key transition from an in-window source. This is the
// reduced-functionality fallback when the global hook is unavailable; it is
// also safe to call alongside a working hook (the matcher debounces).
func (l *Listener) Inject(key Key, down bool) {
	l.post(KeyEvent{Key: key, Down: down})
}

// dispatchLoop serializes all matcher work onto one goroutine.
func (l *Listener) dispatchLoop() {
	for {
		select {
		case ev := <-l.events:
			l.matcher.Handle(ev)
		case <-l.stop:
			l.matcher.Reset()
			return
		}
	}
}

// hookLoop consumes raw hook events. Hook installation failures surface as
// a panic or a nil channel depending on platform; both report unavailable.
func (l *Listener) hookLoop() {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("input hook failed", "reason", r)
			l.reportStatus(false)
		}
	}()

	raw := l.hookStart()
	if raw == nil {
		slog.Warn("input hook unavailable, falling back to in-window keys")
		l.reportStatus(false)
		return
	}
	l.reportStatus(true)

	for {
		select {
		case ev, ok := <-raw:
			if !ok {
				return
			}
			switch ev.Kind {
			case hook.KeyDown:
				l.fold(ev, true)
			case hook.KeyUp:
				l.fold(ev, false)
			case hook.KeyHold:
				// OS key-repeat; the engage edge already fired.
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Listener) fold(ev hook.Event, down bool) {
	key, ok := foldEvent(ev)
	if !ok {
		return
	}
	l.post(KeyEvent{Key: key, Down: down})
}

// post never blocks; when the dispatch loop is saturated the newest event
// is dropped. The matcher tolerates gaps (an unseen keydown's keyup is
// treated as "definitely up").
func (l *Listener) post(ev KeyEvent) {
	select {
	case l.events <- ev:
	default:
		slog.Debug("key event dropped", "key", ev.Key, "down", ev.Down)
	}
}

func (l *Listener) reportStatus(available bool) {
	if l.statusCallback != nil {
		l.statusCallback(available)
	}
}
