// Package stt provides speech-to-text plumbing: a streaming recognizer for
// live transcription and a one-shot transcriber for buffered recordings.
package stt

import "context"

// TranscriptKind identifies whether a stream event is interim or final text.
type TranscriptKind string

const (
	TranscriptPartial TranscriptKind = "partial"
	TranscriptFinal   TranscriptKind = "final"
)

// TranscriptEvent is incremental recognition output from a stream.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// StreamConfig describes provider-agnostic streaming settings.
type StreamConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	Language       string
}

// Stream is one active streaming recognition session. The events channel
// closes when the provider finishes; Wait returns any terminal error.
type Stream interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan TranscriptEvent
	Wait() error
	Close() error
}

// Recognizer dials streaming recognition sessions for the live backend.
type Recognizer interface {
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Transcriber performs one-shot transcription of a complete recording for
// the buffered backend. audio is PCM float32 at 16 kHz mono.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []float32, language string) (string, error)
}
