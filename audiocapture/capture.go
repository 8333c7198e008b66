// Package audiocapture provides microphone capture for voice sessions.
package audiocapture

import (
	"errors"
	"sync"
	"time"
)

// ErrNotCapturing is returned when trying to get audio while not capturing.
var ErrNotCapturing = errors.New("not capturing audio")

// ErrAlreadyCapturing is returned when trying to start capture while already capturing.
var ErrAlreadyCapturing = errors.New("already capturing audio")

// Capture owns the microphone for the duration of one session. The device
// is acquired in Start and always released by Stop; the next session's
// start depends on that release, so handles must never outlive a session.
type Capture struct {
	mu sync.RWMutex

	capturing  bool
	startTime  time.Time
	sampleRate int

	buffer *RingBuffer

	onAudio []func(samples []float32)

	impl captureImpl
}

// captureImpl is the platform capture implementation.
type captureImpl interface {
	start(sampleRate int, callback func(samples []float32)) error
	stop() error
}

// Config holds configuration for audio capture.
type Config struct {
	SampleRate int           // Default 16000 Hz (what Whisper expects)
	BufferSize time.Duration // Ring buffer duration, default 30 seconds
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		BufferSize: 30 * time.Second,
	}
}

// New creates a new microphone capture instance.
func New(cfg Config) (*Capture, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 30 * time.Second
	}

	bufferSamples := int(cfg.BufferSize.Seconds()) * cfg.SampleRate

	c := &Capture{
		sampleRate: cfg.SampleRate,
		buffer:     NewRingBuffer(bufferSamples),
	}

	impl, err := newCaptureImpl()
	if err != nil {
		return nil, err
	}
	c.impl = impl
	return c, nil
}

// Start acquires the microphone and begins capture. Acquisition failures
// (device busy, permission denied) are returned as-is so the session
// controller can surface them.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capturing {
		return ErrAlreadyCapturing
	}

	if err := c.impl.start(c.sampleRate, c.handleAudio); err != nil {
		return err
	}

	c.capturing = true
	c.startTime = time.Now()
	return nil
}

// Stop stops capture and releases the microphone. Safe to call twice.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.capturing {
		return nil
	}

	err := c.impl.stop()
	c.capturing = false
	return err
}

// IsCapturing reports whether the microphone is currently held.
func (c *Capture) IsCapturing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capturing
}

// Duration returns how long capture has been running.
func (c *Capture) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.capturing {
		return 0
	}
	return time.Since(c.startTime)
}

// OnAudio registers a callback for incoming samples (float32 in [-1, 1]).
// Callbacks run on the capture goroutine and must be fast.
func (c *Capture) OnAudio(callback func(samples []float32)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = append(c.onAudio, callback)
}

// Recent returns the last d of buffered audio. The amplitude sampler reads
// its visualization window through this.
func (c *Capture) Recent(d time.Duration) []float32 {
	samples := int(d.Seconds() * float64(c.sampleRate))
	return c.buffer.Read(samples)
}

// SampleRate returns the configured sample rate.
func (c *Capture) SampleRate() int {
	return c.sampleRate
}

func (c *Capture) handleAudio(samples []float32) {
	c.mu.RLock()
	callbacks := c.onAudio
	c.mu.RUnlock()

	c.buffer.Write(samples)

	for _, cb := range callbacks {
		cb(samples)
	}
}
