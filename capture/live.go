package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cadence-app/cadence/stt"
)

// LiveBackend streams microphone audio into an incremental recognizer and
// accumulates finalized text segments as they arrive, so the transcript is
// ready the moment the session stops.
//
// The recognizer stream ending on its own (provider auto-timeout, network
// blip) is reported through BackendSink.Terminated; the accumulated
// transcript survives a restart of the same backend instance.
type LiveBackend struct {
	recognizer stt.Recognizer
	mic        Microphone
	streamCfg  stt.StreamConfig

	mu            sync.Mutex
	stream        stt.Stream
	chunks        chan []byte
	pumpStop      chan struct{}
	eventsDone    chan struct{}
	stopRequested bool
	finals        []string
}

// NewLiveBackend creates a live backend over the given recognizer and
// microphone.
func NewLiveBackend(recognizer stt.Recognizer, mic Microphone, language string) *LiveBackend {
	b := &LiveBackend{
		recognizer: recognizer,
		mic:        mic,
		streamCfg: stt.StreamConfig{
			SampleRate:     mic.SampleRate(),
			Channels:       1,
			Encoding:       "linear16",
			InterimResults: true,
			Language:       language,
		},
	}

	// One registration for the backend's lifetime; samples route to the
	// current stream's chunk queue, or nowhere between sessions.
	mic.OnAudio(b.handleAudio)
	return b
}

func (b *LiveBackend) Kind() BackendKind { return KindLive }

// Start dials the recognizer and acquires the microphone. Either failing
// leaves no partial state behind.
func (b *LiveBackend) Start(ctx context.Context, sink BackendSink) error {
	b.mu.Lock()
	if b.stream != nil {
		b.mu.Unlock()
		return errors.New("live capture already running")
	}
	b.stopRequested = false
	b.mu.Unlock()

	stream, err := b.recognizer.Open(ctx, b.streamCfg)
	if err != nil {
		return fmt.Errorf("open recognizer stream: %w", err)
	}

	if err := b.mic.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("acquire microphone: %w", err)
	}

	chunks := make(chan []byte, 32)
	pumpStop := make(chan struct{})
	eventsDone := make(chan struct{})

	b.mu.Lock()
	b.stream = stream
	b.chunks = chunks
	b.pumpStop = pumpStop
	b.eventsDone = eventsDone
	b.mu.Unlock()

	go b.pump(stream, chunks, pumpStop)
	go b.consume(stream, sink, eventsDone)
	go b.watch(stream, sink)
	return nil
}

// Stop releases the microphone, drains the recognizer and returns the
// accumulated transcript.
func (b *LiveBackend) Stop(ctx context.Context) (string, error) {
	b.mu.Lock()
	b.stopRequested = true
	stream := b.stream
	eventsDone := b.eventsDone
	pumpStop := b.pumpStop
	b.stream = nil
	b.chunks = nil
	b.pumpStop = nil
	b.mu.Unlock()

	if pumpStop != nil {
		close(pumpStop)
	}

	_ = b.mic.Stop()

	if stream == nil {
		// The stream already terminated; whatever was recognized stands.
		return b.transcript(), nil
	}

	_ = stream.CloseSend()
	streamErr := waitStream(ctx, stream)
	<-eventsDone

	text := b.transcript()
	if text == "" && streamErr != nil {
		return "", streamErr
	}
	return text, nil
}

// Abort releases everything and discards the transcript.
func (b *LiveBackend) Abort() error {
	b.mu.Lock()
	b.stopRequested = true
	stream := b.stream
	pumpStop := b.pumpStop
	b.stream = nil
	b.chunks = nil
	b.pumpStop = nil
	b.finals = nil
	b.mu.Unlock()

	if pumpStop != nil {
		close(pumpStop)
	}

	err := b.mic.Stop()
	if stream != nil {
		_ = stream.Close()
	}
	return err
}

func (b *LiveBackend) handleAudio(samples []float32) {
	b.mu.Lock()
	chunks := b.chunks
	b.mu.Unlock()
	if chunks == nil {
		return
	}

	select {
	case chunks <- stt.PCM16Bytes(samples):
	default:
		// The recognizer is behind; dropping audio beats blocking the
		// capture callback.
	}
}

// pump forwards queued audio until the session ends. The stop signal, not a
// channel close, ends the loop: handleAudio may be mid-send on chunks.
func (b *LiveBackend) pump(stream stt.Stream, chunks chan []byte, stop chan struct{}) {
	for {
		select {
		case chunk := <-chunks:
			if err := stream.SendAudio(chunk); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (b *LiveBackend) consume(stream stt.Stream, sink BackendSink, done chan struct{}) {
	defer close(done)

	for ev := range stream.Events() {
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			continue
		}
		final := ev.Kind == stt.TranscriptFinal
		if final {
			b.mu.Lock()
			b.finals = append(b.finals, text)
			b.mu.Unlock()
		}
		sink.Segment(text, final)
	}
}

// watch reports unexpected stream termination. A stop or abort in flight
// suppresses the report.
func (b *LiveBackend) watch(stream stt.Stream, sink BackendSink) {
	err := stream.Wait()

	b.mu.Lock()
	unexpected := b.stream == stream && !b.stopRequested
	var pumpStop chan struct{}
	if unexpected {
		b.stream = nil
		b.chunks = nil
		pumpStop = b.pumpStop
		b.pumpStop = nil
	}
	b.mu.Unlock()

	if !unexpected {
		return
	}
	if pumpStop != nil {
		close(pumpStop)
	}

	// Release the microphone before reporting so a restart can reacquire.
	_ = b.mic.Stop()
	if err == nil {
		err = errors.New("recognizer stream ended unexpectedly")
	}
	sink.Terminated(err)
}

func (b *LiveBackend) transcript() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.finals, " ")
}

func waitStream(ctx context.Context, stream stt.Stream) error {
	done := make(chan error, 1)
	go func() { done <- stream.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = stream.Close()
		return <-done
	}
}
