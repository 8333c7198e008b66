package app

import (
	"log/slog"

	"github.com/cadence-app/cadence/capture"
	"github.com/cadence-app/cadence/internal/types"
)

// sessionEvents routes session lifecycle signals to the UI surfaces. The
// indicator and amplitude stream follow Active/Idle; dispatch runs off the
// session loop so a slow intent endpoint never blocks the next session.
type sessionEvents struct {
	s *Service
}

func (e *sessionEvents) SessionStateChanged(session capture.Session, state capture.State) {
	e.s.emit(EventCaptureState, types.CaptureStatus{
		State:     string(state),
		Active:    state != capture.StateIdle,
		SessionID: session.ID,
		Backend:   string(session.Backend),
	})

	switch state {
	case capture.StateActive:
		e.s.indicator.Show()
		e.s.streamer.Start()
	case capture.StateIdle:
		// Stop delivers the final flat frame before the indicator hides.
		e.s.streamer.Stop()
		e.s.indicator.Hide()
	}
}

func (e *sessionEvents) TranscriptSegment(session capture.Session, text string, final bool) {
	e.s.emit(EventTranscriptSegment, TranscriptSegment{
		SessionID: session.ID,
		Text:      text,
		Final:     final,
	})
}

func (e *sessionEvents) SessionCompleted(session capture.Session, transcript string) {
	go e.s.dispatchTranscript(session, transcript)
}

func (e *sessionEvents) SessionDiscarded(session capture.Session) {
	e.s.emit(EventSessionCompleted, SessionResult{SessionID: session.ID})
}

func (e *sessionEvents) SessionError(session capture.Session, message string) {
	slog.Warn("session error", "session", session.ID, "message", message)
	e.s.notify(types.Notification{
		Title:   "Voice capture",
		Message: message,
		IsError: true,
	})
}
