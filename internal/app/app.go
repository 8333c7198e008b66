package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cadence-app/cadence/amplitude"
	"github.com/cadence-app/cadence/audiocapture"
	"github.com/cadence-app/cadence/capture"
	"github.com/cadence-app/cadence/config"
	"github.com/cadence-app/cadence/dispatch"
	"github.com/cadence-app/cadence/history"
	"github.com/cadence-app/cadence/hotkey"
	"github.com/cadence-app/cadence/indicator"
	"github.com/cadence-app/cadence/internal/types"
	"github.com/cadence-app/cadence/stt"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; business logic lives in sub-components.
type Service struct {
	cfg      *config.Config
	store    *history.Store
	intent   *dispatch.Client
	sessions *capture.Controller

	listener  *hotkey.Listener
	streamer  *amplitude.Streamer
	indicator *indicator.Controller

	// UI references - set via Init
	app    *application.App
	window application.Window

	// Current session's microphone, swapped per session.
	capMu   sync.Mutex
	current *audiocapture.Capture

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init initializes the service with app and window references.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = &config.Config{}
	}
	s.cfg = cfg

	s.setupHistory()

	s.intent = dispatch.NewClient(cfg.Intent.BaseURL, time.Duration(cfg.Intent.TimeoutMs)*time.Millisecond)
	s.indicator = indicator.NewController(nil, cfg.IndicatorEnabled)
	s.streamer = amplitude.NewStreamer(s, amplitude.DefaultConfig(), s.indicator.Deliver)

	sessionCfg := capture.DefaultConfig()
	if cfg.MinHoldMs > 0 {
		sessionCfg.MinHold = time.Duration(cfg.MinHoldMs) * time.Millisecond
	}
	s.sessions = capture.NewController(s.newBackend, &sessionEvents{s: s}, sessionCfg)
	s.sessions.Start()

	s.setupHotkey(cfg.Hotkey)
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.listener != nil {
		s.listener.Stop()
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.streamer != nil {
		s.streamer.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
}

// SetIndicatorWindow attaches (or re-attaches) the floating indicator
// window. The capture state machine never depends on this window existing.
func (s *Service) SetIndicatorWindow(window application.Window) {
	if window == nil {
		s.indicator.SetSurface(nil)
		return
	}
	s.indicator.SetSurface(&windowSurface{app: s.app, window: window})
}

func (s *Service) setupHistory() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for history", "error", err)
		return
	}

	path := filepath.Join(configDir, "cadence", "history")
	store, err := history.Open(path, 30*24*time.Hour)
	if err != nil {
		slog.Error("open history", "error", err)
		return
	}
	s.store = store
	slog.Info("history opened", "path", path)
}

func (s *Service) setupHotkey(combo string) {
	parsed, err := hotkey.ParseCombo(combo)
	if err != nil {
		slog.Error("parse hotkey, using default", "combo", combo, "error", err)
		parsed, _ = hotkey.ParseCombo("ctrl+shift+space")
	}

	matcher := hotkey.NewMatcher(parsed,
		func() {
			s.emit(EventComboEngaged, true)
			s.sessions.Engage(capture.OriginHotkey)
		},
		func() {
			s.emit(EventComboReleased, true)
			s.sessions.Release()
		},
	)

	listener := hotkey.NewListener(matcher)
	listener.SetStatusCallback(func(available bool) {
		s.emit(EventHookStatus, available)
		if available {
			slog.Info("global input hook installed")
		} else {
			slog.Warn("global input hook unavailable, in-window keys only")
		}
	})

	if err := listener.Start(); err != nil {
		slog.Error("start hotkey listener", "error", err)
		return
	}
	s.listener = listener
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Capture control
// ─────────────────────────────────────────────────────────────────────────────

// ShowMainWindow brings the main window to the front.
func (s *Service) ShowMainWindow() {
	if s.window != nil {
		s.window.Show()
		s.window.Focus()
	}
}

// RequestStart starts a capture session from the UI.
func (s *Service) RequestStart() {
	s.sessions.Engage(capture.OriginManual)
}

// RequestStop ends the current capture session from the UI.
func (s *Service) RequestStop() {
	s.sessions.Release()
}

// InjectKey feeds an in-window key transition into the hotkey matcher, the
// fallback path when the global hook could not be installed.
func (s *Service) InjectKey(name string, down bool) error {
	if s.listener == nil {
		return fmt.Errorf("hotkey listener not running")
	}
	keys, err := hotkey.ParseCombo(name)
	if err != nil {
		return err
	}
	for _, k := range keys {
		s.listener.Inject(k, down)
	}
	return nil
}

// GetCaptureStatus returns the current session state for the UI.
func (s *Service) GetCaptureStatus() types.CaptureStatus {
	state, session := s.sessions.Status()
	return types.CaptureStatus{
		State:     string(state),
		Active:    state != capture.StateIdle,
		SessionID: session.ID,
		Backend:   string(session.Backend),
	}
}

// GetRecentCommands returns recent completed commands, newest first.
func (s *Service) GetRecentCommands(limit int) ([]types.CommandRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(limit)
}

// ─────────────────────────────────────────────────────────────────────────────
// Backends
// ─────────────────────────────────────────────────────────────────────────────

// newBackend builds the capture backend for one session from the current
// configuration, so backend switches apply to the next session.
func (s *Service) newBackend() (capture.Backend, error) {
	cap, err := audiocapture.New(audiocapture.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}

	s.capMu.Lock()
	s.current = cap
	s.capMu.Unlock()

	speech := s.cfg.Speech
	switch s.cfg.Backend {
	case config.BackendBuffered:
		whisper := stt.NewWhisper(stt.WhisperConfig{
			APIKey: speech.WhisperAPIKey,
			Model:  speech.WhisperModel,
		})
		return capture.NewBufferedBackend(cap, whisper, speech.Language), nil
	default:
		recognizer := stt.NewStreamRecognizer(stt.StreamRecognizerConfig{
			APIKey:      speech.StreamKey,
			BaseURL:     speech.StreamURL,
			Model:       speech.Model,
			Language:    speech.Language,
			SmartFormat: true,
		})
		return capture.NewLiveBackend(recognizer, cap, speech.Language), nil
	}
}

// Recent exposes the current session's audio window to the amplitude
// streamer. Between sessions there is no audio and the bars stay flat.
func (s *Service) Recent(d time.Duration) []float32 {
	s.capMu.Lock()
	cap := s.current
	s.capMu.Unlock()
	if cap == nil {
		return nil
	}
	return cap.Recent(d)
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatch
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) dispatchTranscript(session capture.Session, transcript string) {
	timeout := time.Duration(s.cfg.Intent.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	action, err := s.intent.Resolve(ctx, transcript)
	if err != nil {
		slog.Warn("dispatch failed", "session", session.ID, "error", err)
		s.emit(EventSessionCompleted, SessionResult{SessionID: session.ID})
		s.notify(types.Notification{
			Title:   "Voice command failed",
			Message: err.Error(),
			IsError: true,
		})
		return
	}

	slog.Info("command resolved", "session", session.ID, "mode", action.Mode, "label", action.Label)
	s.emit(EventSessionCompleted, SessionResult{SessionID: session.ID, Action: &action})
	s.notify(types.Notification{Title: "Now playing", Message: action.Label})

	if s.store != nil {
		rec := types.CommandRecord{
			ID:         session.ID,
			Transcript: transcript,
			Action:     action,
			CreatedAt:  time.Now().UnixMilli(),
		}
		if err := s.store.Add(rec); err != nil {
			slog.Warn("record command", "session", session.ID, "error", err)
		}
	}
}

func (s *Service) notify(n types.Notification) {
	s.emit(EventNotification, n)
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns the current configuration.
func (s *Service) GetSettings() config.Config {
	return *s.cfg
}

// SetBackend switches the capture backend for subsequent sessions.
func (s *Service) SetBackend(kind string) error {
	return s.cfg.SetBackend(config.BackendKind(kind))
}

// SetIndicatorEnabled toggles the floating indicator.
func (s *Service) SetIndicatorEnabled(enabled bool) error {
	if err := s.cfg.SetIndicatorEnabled(enabled); err != nil {
		return err
	}
	s.indicator.SetEnabled(enabled)
	return nil
}

// SetHotkey changes the hold-to-talk combination and re-arms the listener.
func (s *Service) SetHotkey(combo string) error {
	if _, err := hotkey.ParseCombo(combo); err != nil {
		return err
	}
	if err := s.cfg.SetHotkey(combo); err != nil {
		return err
	}

	if s.listener != nil {
		s.listener.Stop()
		s.listener = nil
	}
	s.setupHotkey(s.cfg.Hotkey)
	return nil
}

// SetSpeechConfig updates transcription credentials and models.
func (s *Service) SetSpeechConfig(speech config.SpeechConfig) error {
	s.cfg.Speech = speech
	return s.cfg.Save()
}
