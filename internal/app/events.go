// Package app provides the core application service for Wails bindings.
package app

import "github.com/cadence-app/cadence/internal/types"

// Event names for frontend communication.
const (
	EventComboEngaged      = "combo-engaged"
	EventComboReleased     = "combo-released"
	EventCaptureState      = "capture-state"
	EventTranscriptSegment = "transcript-segment"
	EventSessionCompleted  = "session-completed"
	EventAmplitudeFrame    = "amplitude-frame"
	EventNotification      = "notification"
	EventHookStatus        = "input-hook-status"
)

// TranscriptSegment is a typed event for incremental recognized text.
type TranscriptSegment struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Final     bool   `json:"final"`
}

// SessionResult is a typed event for session completion. Action is nil when
// the session was discarded or dispatch failed.
type SessionResult struct {
	SessionID string                `json:"sessionId"`
	Action    *types.ResolvedAction `json:"action"`
}
