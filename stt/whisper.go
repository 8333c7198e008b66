package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Whisper implements Transcriber using OpenAI's audio transcription API.
type Whisper struct {
	client openai.Client
	model  string
	ready  bool
}

// WhisperConfig holds configuration for the Whisper transcriber.
type WhisperConfig struct {
	APIKey  string
	BaseURL string // Optional override for compatible endpoints
	Model   string // Defaults to "whisper-1"
}

// NewWhisper creates a Whisper transcriber.
func NewWhisper(cfg WhisperConfig) *Whisper {
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Whisper{
		client: openai.NewClient(opts...),
		model:  model,
		ready:  cfg.APIKey != "",
	}
}

// Transcribe encodes the recording as WAV and submits it for transcription.
func (w *Whisper) Transcribe(ctx context.Context, audio []float32, language string) (string, error) {
	if !w.ready {
		return "", fmt.Errorf("whisper transcriber not ready: API key required")
	}
	if len(audio) == 0 {
		return "", nil
	}

	wav := EncodeWAV(audio, 16000)

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(w.model),
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
	}
	// The API rejects "auto"; empty means auto-detect.
	if language != "" && language != "auto" {
		params.Language = openai.String(language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe recording: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
