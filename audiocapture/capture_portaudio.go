package audiocapture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// framesPerBuffer keeps read granularity small enough for responsive
// level metering (512 samples = 32 ms at 16 kHz).
const framesPerBuffer = 512

var (
	initOnce sync.Once
	initErr  error
)

// portaudioCapture implements captureImpl over the default input device.
type portaudioCapture struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	stop   chan struct{}
	done   chan struct{}
}

func newCaptureImpl() (captureImpl, error) {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", initErr)
	}
	return &portaudioCapture{}, nil
}

func (p *portaudioCapture) start(sampleRate int, callback func(samples []float32)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return ErrAlreadyCapturing
	}

	in := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, in)
	if err != nil {
		return fmt.Errorf("open input device: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	p.stream = stream
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.readLoop(stream, in, callback, p.stop, p.done)
	return nil
}

func (p *portaudioCapture) stopLocked() error {
	if p.stream == nil {
		return nil
	}

	close(p.stop)
	<-p.done

	err := p.stream.Stop()
	if closeErr := p.stream.Close(); err == nil {
		err = closeErr
	}
	p.stream = nil
	return err
}

func (p *portaudioCapture) stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *portaudioCapture) readLoop(stream *portaudio.Stream, in []float32, callback func([]float32), stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				// Dropped frames are acceptable; keep reading.
				continue
			}
			return
		}

		chunk := make([]float32, len(in))
		copy(chunk, in)
		callback(chunk)
	}
}
