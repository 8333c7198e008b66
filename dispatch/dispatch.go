// Package dispatch submits completed transcripts to the intent endpoint and
// turns the structured result into user-facing feedback. A failed dispatch
// is reported once and never retried; the next attempt requires a new
// session.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cadence-app/cadence/internal/types"
)

// Client calls the intent endpoint.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a client for the intent service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// playRequest and playResponse mirror the intent service's wire format.
type playRequest struct {
	Message string `json:"message"`
}

type playResponse struct {
	Mode       string   `json:"mode"`
	Track      string   `json:"track"`
	Artist     string   `json:"artist"`
	Artists    []string `json:"artists"`
	TrackCount int      `json:"track_count"`
	Detail     string   `json:"detail"`
}

// Resolve submits a transcript and returns the resolved playback action,
// including a display label.
func (c *Client) Resolve(ctx context.Context, message string) (types.ResolvedAction, error) {
	body, err := json.Marshal(playRequest{Message: message})
	if err != nil {
		return types.ResolvedAction{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/play", bytes.NewReader(body))
	if err != nil {
		return types.ResolvedAction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.ResolvedAction{}, fmt.Errorf("intent endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.ResolvedAction{}, fmt.Errorf("read response: %w", err)
	}

	var parsed playResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(payload, &parsed) == nil && parsed.Detail != "" {
			return types.ResolvedAction{}, fmt.Errorf("intent endpoint: %s", parsed.Detail)
		}
		return types.ResolvedAction{}, fmt.Errorf("intent endpoint returned %s", resp.Status)
	}

	if err := json.Unmarshal(payload, &parsed); err != nil {
		return types.ResolvedAction{}, fmt.Errorf("decode response: %w", err)
	}

	action := types.ResolvedAction{
		Mode:       types.PlayMode(parsed.Mode),
		Track:      parsed.Track,
		Artist:     parsed.Artist,
		Artists:    parsed.Artists,
		TrackCount: parsed.TrackCount,
		RawText:    message,
	}
	action.Label = Label(action)
	return action, nil
}

// Label derives the short human-readable summary shown in notifications.
func Label(a types.ResolvedAction) string {
	switch a.Mode {
	case types.PlayModeTrack:
		if len(a.Artists) > 0 {
			return fmt.Sprintf("%s — %s", a.Track, strings.Join(a.Artists, ", "))
		}
		if a.Artist != "" {
			return fmt.Sprintf("%s — %s", a.Track, a.Artist)
		}
		return a.Track
	case types.PlayModeArtist:
		return "Artist mix: " + a.Artist
	case types.PlayModeMulti:
		return fmt.Sprintf("%d tracks playing", a.TrackCount)
	default:
		return "Playing"
	}
}

// Notifier raises a local, cross-surface notification.
type Notifier interface {
	Notify(n types.Notification)
}
