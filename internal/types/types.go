// Package types provides shared type definitions for the application.
package types

// PlayMode identifies how the intent endpoint resolved a command.
type PlayMode string

const (
	PlayModeTrack  PlayMode = "track"
	PlayModeArtist PlayMode = "artist"
	PlayModeMulti  PlayMode = "multi"
)

// ResolvedAction is the playback action derived from one completed capture
// session. It is handed to the feedback loop and the history store, then
// discarded.
type ResolvedAction struct {
	Mode       PlayMode `json:"mode"`
	Track      string   `json:"track,omitempty"`
	Artist     string   `json:"artist,omitempty"`
	Artists    []string `json:"artists,omitempty"`
	TrackCount int      `json:"trackCount,omitempty"`
	Label      string   `json:"label"`
	RawText    string   `json:"rawText"`
}

// AmplitudeFrame is one visual tick of bar heights for the indicator.
// Bars has a fixed length; heights are small non-negative integers.
type AmplitudeFrame struct {
	Bars      []int `json:"bars"`
	Seq       int   `json:"seq"`
	Timestamp int64 `json:"timestamp"`
}

// CaptureStatus summarizes the session controller state for the UI.
type CaptureStatus struct {
	State     string `json:"state"`
	Active    bool   `json:"active"`
	SessionID string `json:"sessionId,omitempty"`
	Backend   string `json:"backend,omitempty"`
}

// CommandRecord is one completed voice command as stored in history.
type CommandRecord struct {
	ID         string         `json:"id"`
	Transcript string         `json:"transcript"`
	Action     ResolvedAction `json:"action"`
	CreatedAt  int64          `json:"createdAt"` // Unix milliseconds
}

// Notification is a short user-facing message raised after dispatch.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	IsError bool   `json:"isError"`
}
