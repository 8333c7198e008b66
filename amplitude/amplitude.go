// Package amplitude turns recent microphone audio into coarse per-band
// levels for the capture indicator. Frames are advisory: the newest one
// always wins and slow consumers simply see fewer frames.
package amplitude

import (
	"math"
	"sync"
	"time"

	"github.com/cadence-app/cadence/internal/types"
)

// audioSource is the slice of capture the streamer needs.
type audioSource interface {
	Recent(d time.Duration) []float32
}

// Config controls frame production.
type Config struct {
	// Bands is the number of level bars per frame.
	Bands int
	// Interval is the time between frames.
	Interval time.Duration
	// Window is how much recent audio each frame summarizes.
	Window time.Duration
	// FullScale is the RMS that maps to a full bar. Speech rarely exceeds
	// 0.3 RMS on a normalized signal.
	FullScale float64
}

// DefaultConfig returns the default streamer configuration.
func DefaultConfig() Config {
	return Config{
		Bands:     12,
		Interval:  33 * time.Millisecond,
		Window:    120 * time.Millisecond,
		FullScale: 0.3,
	}
}

// maxLevel is the top of the per-band scale.
const maxLevel = 32

// Streamer periodically samples recent audio and publishes amplitude
// frames. Delivery is last-value-wins: if the consumer has not taken the
// previous frame yet, it is replaced.
type Streamer struct {
	source  audioSource
	cfg     Config
	onFrame func(types.AmplitudeFrame)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	seq     int
}

// NewStreamer creates a streamer that calls onFrame from its own goroutine.
func NewStreamer(source audioSource, cfg Config, onFrame func(types.AmplitudeFrame)) *Streamer {
	if cfg.Bands <= 0 {
		cfg.Bands = 12
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 33 * time.Millisecond
	}
	if cfg.Window <= 0 {
		cfg.Window = 120 * time.Millisecond
	}
	if cfg.FullScale <= 0 {
		cfg.FullScale = 0.3
	}
	return &Streamer{source: source, cfg: cfg, onFrame: onFrame}
}

// Start begins frame production. A no-op when already running.
func (s *Streamer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	frames := make(chan types.AmplitudeFrame, 1)
	go s.produce(s.stop, frames)
	go s.deliver(frames, s.done)
}

// Stop ends frame production. A final all-quiet frame is delivered so the
// indicator settles flat instead of freezing mid-waveform.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *Streamer) produce(stop chan struct{}, frames chan types.AmplitudeFrame) {
	defer close(frames)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.publish(frames, s.flatFrame())
			return
		case <-ticker.C:
			s.publish(frames, s.frame())
		}
	}
}

// publish replaces any undelivered frame with the new one.
func (s *Streamer) publish(frames chan types.AmplitudeFrame, f types.AmplitudeFrame) {
	for {
		select {
		case frames <- f:
			return
		default:
			select {
			case <-frames:
			default:
			}
		}
	}
}

func (s *Streamer) deliver(frames chan types.AmplitudeFrame, done chan struct{}) {
	defer close(done)
	for f := range frames {
		s.onFrame(f)
	}
}

func (s *Streamer) frame() types.AmplitudeFrame {
	samples := s.source.Recent(s.cfg.Window)
	return types.AmplitudeFrame{
		Bars:      s.bands(samples),
		Seq:       s.nextSeq(),
		Timestamp: time.Now().UnixMilli(),
	}
}

func (s *Streamer) flatFrame() types.AmplitudeFrame {
	return types.AmplitudeFrame{
		Bars:      make([]int, s.cfg.Bands),
		Seq:       s.nextSeq(),
		Timestamp: time.Now().UnixMilli(),
	}
}

func (s *Streamer) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// bands splits the window into contiguous chunks and maps each chunk's RMS
// onto the 0..32 scale, saturating at the top.
func (s *Streamer) bands(samples []float32) []int {
	bars := make([]int, s.cfg.Bands)
	if len(samples) < s.cfg.Bands {
		return bars
	}

	chunk := len(samples) / s.cfg.Bands
	for i := range bars {
		start := i * chunk
		bars[i] = s.level(rms(samples[start : start+chunk]))
	}
	return bars
}

func (s *Streamer) level(r float64) int {
	l := int(math.Round(r / s.cfg.FullScale * maxLevel))
	if l > maxLevel {
		l = maxLevel
	}
	return l
}

func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
