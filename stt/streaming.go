package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// StreamRecognizerConfig controls the websocket recognizer.
type StreamRecognizerConfig struct {
	APIKey      string
	BaseURL     string // e.g. "https://api.deepgram.com/v1"
	Model       string
	Language    string
	SmartFormat bool
}

// StreamRecognizer implements Recognizer over a Deepgram-style websocket
// protocol: binary frames carry PCM audio upstream, JSON text frames carry
// transcript events downstream.
type StreamRecognizer struct {
	cfg StreamRecognizerConfig
}

// NewStreamRecognizer creates a websocket recognizer.
func NewStreamRecognizer(cfg StreamRecognizerConfig) *StreamRecognizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &StreamRecognizer{cfg: cfg}
}

// Open dials a streaming session.
func (r *StreamRecognizer) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("streaming recognizer API key is not configured")
	}

	wsURL, err := r.listenURL(cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer websocket: %w", err)
	}

	s := &wsStream{
		conn:     conn,
		events:   make(chan TranscriptEvent, 64),
		audio:    make(chan []byte, 32),
		sendDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}

func (r *StreamRecognizer) listenURL(cfg StreamConfig) (string, error) {
	u, err := url.Parse(r.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse recognizer base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/listen"

	q := u.Query()
	q.Set("model", r.cfg.Model)
	q.Set("encoding", cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", strconv.Itoa(cfg.Channels))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("smart_format", strconv.FormatBool(r.cfg.SmartFormat))
	if lang := firstNonEmpty(cfg.Language, r.cfg.Language); lang != "" {
		q.Set("language", lang)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type wsStream struct {
	conn *websocket.Conn

	events   chan TranscriptEvent
	audio    chan []byte
	sendDone chan struct{} // closed by CloseSend; the audio channel itself never closes
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func (s *wsStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	select {
	case <-s.sendDone:
		return errors.New("audio stream is already closed")
	default:
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.sendDone:
		return errors.New("audio stream is already closed")
	case <-s.done:
		if err := s.terminalErr(); err != nil {
			return err
		}
		return errors.New("stream closed")
	}
}

func (s *wsStream) CloseSend() error {
	s.closeSendOnce.Do(func() {
		close(s.sendDone)
	})
	return nil
}

func (s *wsStream) Events() <-chan TranscriptEvent {
	return s.events
}

func (s *wsStream) Wait() error {
	<-s.done
	return s.terminalErr()
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.terminalErr()
}

func (s *wsStream) terminalErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *wsStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *wsStream) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.setErr(fmt.Errorf("send audio: %w", err))
				return
			}
		case <-s.sendDone:
			// Flush whatever was queued before the close, then hand the
			// provider its end-of-audio marker.
			for {
				select {
				case chunk := <-s.audio:
					if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
						s.setErr(fmt.Errorf("send audio: %w", err))
						return
					}
				default:
					if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
						s.setErr(fmt.Errorf("close stream: %w", err))
					}
					return
				}
			}
		}
	}
}

func (s *wsStream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read recognizer event: %w", err))
			return
		}

		var resp recognizerResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			continue
		}

		if strings.EqualFold(resp.Type, "Error") {
			message := strings.TrimSpace(resp.Message)
			if message == "" {
				message = "recognizer returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		text := resp.transcript()
		if text == "" {
			continue
		}

		event := TranscriptEvent{Text: text, Kind: TranscriptPartial}
		if resp.IsFinal || resp.SpeechFinal {
			event.Kind = TranscriptFinal
		}
		s.emit(event)
	}
}

// emit forwards a transcript event. Finals must reach the consumer, so they
// wait for buffer space (callers always drain Events until it closes);
// partials are freshness-only and are dropped when the buffer is full.
func (s *wsStream) emit(event TranscriptEvent) {
	if event.Kind == TranscriptFinal {
		select {
		case s.events <- event:
		case <-s.done:
		}
		return
	}

	select {
	case s.events <- event:
	default:
	}
}

type recognizerResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r recognizerResponse) transcript() string {
	for _, alt := range r.Channel.Alternatives {
		if t := strings.TrimSpace(alt.Transcript); t != "" {
			return t
		}
	}
	return ""
}
