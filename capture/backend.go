// Package capture owns the voice-capture session lifecycle: a serialized
// state machine bridging hotkey and manual signals into backend start/stop
// calls, with single-flight semantics and guaranteed session completion.
package capture

import "context"

// BackendKind identifies a capture strategy.
type BackendKind string

const (
	// KindLive streams audio to an incremental recognizer and has the
	// transcript ready the moment the session stops.
	KindLive BackendKind = "live"
	// KindBuffered records locally and submits the whole recording to a
	// remote transcription service after the session stops.
	KindBuffered BackendKind = "buffered"
)

// Microphone is the slice of the audio device the backends need. Satisfied
// by *audiocapture.Capture; tests drive the backends with a fake device.
type Microphone interface {
	Start() error
	Stop() error
	OnAudio(func([]float32))
	SampleRate() int
}

// BackendSink receives asynchronous signals from a running backend. All
// methods are safe to call from backend goroutines; the controller
// serializes them onto its own loop.
type BackendSink interface {
	// Segment reports incremental recognized text (live backend only).
	Segment(text string, final bool)

	// Terminated reports that the backend halted on its own while a session
	// was active, e.g. a recognizer auto-timeout. The controller decides
	// whether to restart in place. Backends must not call this after Stop
	// or Abort has been requested.
	Terminated(err error)
}

// Backend is one capture strategy behind the session controller. The
// controller guarantees Start/Stop/Abort are never called concurrently.
//
// Both implementations must release the audio device before returning from
// Stop or Abort: the next session's start depends on the device being free.
type Backend interface {
	Kind() BackendKind

	// Start acquires the audio device and begins capture. It returns once
	// capture is running (or with the acquisition error). A backend that
	// already ran and terminated may be started again; accumulated
	// transcript text survives the restart.
	Start(ctx context.Context, sink BackendSink) error

	// Stop ends capture, releases the device and returns the transcript.
	// For the buffered backend this includes the remote transcription
	// round-trip, bounded by ctx.
	Stop(ctx context.Context) (string, error)

	// Abort ends capture and discards any transcript.
	Abort() error
}
