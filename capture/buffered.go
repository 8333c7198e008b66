package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cadence-app/cadence/stt"
)

// maxRecording bounds how much audio a buffered session can hold. Anything
// beyond it is dropped from the front so the most recent speech survives.
const maxRecording = 30 * time.Second

// BufferedBackend records raw PCM into memory for the whole session and
// submits the recording to a remote transcriber once the session stops. The
// transcript is therefore not available until after Stop's network
// round-trip.
type BufferedBackend struct {
	mic         Microphone
	transcriber stt.Transcriber
	language    string
	maxSamples  int

	mu        sync.Mutex
	recording bool
	samples   []float32
}

// NewBufferedBackend creates a buffered backend over the given microphone
// and transcriber.
func NewBufferedBackend(mic Microphone, transcriber stt.Transcriber, language string) *BufferedBackend {
	b := &BufferedBackend{
		mic:         mic,
		transcriber: transcriber,
		language:    language,
		maxSamples:  mic.SampleRate() * int(maxRecording/time.Second),
	}
	mic.OnAudio(b.handleAudio)
	return b
}

func (b *BufferedBackend) Kind() BackendKind { return KindBuffered }

// Start acquires the microphone and begins recording. A restart of the same
// backend keeps the audio recorded so far.
func (b *BufferedBackend) Start(ctx context.Context, sink BackendSink) error {
	b.mu.Lock()
	if b.recording {
		b.mu.Unlock()
		return errors.New("buffered capture already running")
	}
	b.mu.Unlock()

	if err := b.mic.Start(); err != nil {
		return fmt.Errorf("acquire microphone: %w", err)
	}

	b.mu.Lock()
	b.recording = true
	b.mu.Unlock()
	return nil
}

// Stop releases the microphone and transcribes the recording. The device is
// free again before the remote call begins, so a new session can start while
// this one is still finalizing upstream.
func (b *BufferedBackend) Stop(ctx context.Context) (string, error) {
	b.mu.Lock()
	b.recording = false
	samples := b.samples
	b.samples = nil
	b.mu.Unlock()

	if err := b.mic.Stop(); err != nil {
		return "", fmt.Errorf("release microphone: %w", err)
	}

	if len(samples) == 0 {
		return "", nil
	}
	return b.transcriber.Transcribe(ctx, samples, b.language)
}

// Abort releases the microphone and throws the recording away.
func (b *BufferedBackend) Abort() error {
	b.mu.Lock()
	b.recording = false
	b.samples = nil
	b.mu.Unlock()

	return b.mic.Stop()
}

func (b *BufferedBackend) handleAudio(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.recording {
		return
	}

	b.samples = append(b.samples, samples...)
	if over := len(b.samples) - b.maxSamples; over > 0 {
		b.samples = b.samples[over:]
	}
}
