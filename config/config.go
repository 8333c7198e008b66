// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appName        = "cadence"
	configFileName = "config.json"
)

// BackendKind selects which capture backend a new session uses.
type BackendKind string

const (
	BackendLive     BackendKind = "live"
	BackendBuffered BackendKind = "buffered"
)

// Config represents the application configuration. Values are read once at
// startup; runtime changes are saved immediately but only affect the next
// capture session.
type Config struct {
	// Hotkey is the hold-to-talk combination, e.g. "ctrl+shift+space".
	Hotkey string `json:"hotkey"`

	// Backend selects the capture strategy for new sessions.
	Backend BackendKind `json:"backend"`

	// IndicatorEnabled controls whether the floating indicator is shown.
	IndicatorEnabled bool `json:"indicator_enabled"`

	// MinHoldMs is the minimum hold duration; shorter sessions that produce
	// no transcript are discarded silently.
	MinHoldMs int `json:"min_hold_ms"`

	Intent IntentConfig `json:"intent"`
	Speech SpeechConfig `json:"speech"`

	path string
}

// IntentConfig points at the external command-interpretation endpoint.
type IntentConfig struct {
	BaseURL   string `json:"base_url"`
	TimeoutMs int    `json:"timeout_ms"`
}

// SpeechConfig configures the two transcription paths.
type SpeechConfig struct {
	// Streaming recognizer (live backend).
	StreamURL string `json:"stream_url"`
	StreamKey string `json:"stream_key"`
	Model     string `json:"model"`
	Language  string `json:"language"`

	// Whisper API (buffered backend).
	WhisperAPIKey string `json:"whisper_api_key"`
	WhisperModel  string `json:"whisper_model"`
}

// Load loads configuration from the config file.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.path = path
	cfg.applyDefaults()
	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetBackend switches the capture backend for subsequent sessions.
func (c *Config) SetBackend(kind BackendKind) error {
	switch kind {
	case BackendLive, BackendBuffered:
	default:
		return fmt.Errorf("unknown backend: %s", kind)
	}
	c.Backend = kind
	return c.Save()
}

// SetIndicatorEnabled toggles the indicator surface for subsequent sessions.
func (c *Config) SetIndicatorEnabled(enabled bool) error {
	c.IndicatorEnabled = enabled
	return c.Save()
}

// SetHotkey updates the hold-to-talk combination. The string is validated
// for shape only; key names are resolved by the hotkey package.
func (c *Config) SetHotkey(combo string) error {
	combo = strings.TrimSpace(strings.ToLower(combo))
	if combo == "" {
		return fmt.Errorf("empty hotkey combination")
	}
	c.Hotkey = combo
	return c.Save()
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if c.Hotkey == "" {
		c.Hotkey = def.Hotkey
	}
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	if c.MinHoldMs <= 0 {
		c.MinHoldMs = def.MinHoldMs
	}
	if c.Intent.BaseURL == "" {
		c.Intent.BaseURL = def.Intent.BaseURL
	}
	if c.Intent.TimeoutMs <= 0 {
		c.Intent.TimeoutMs = def.Intent.TimeoutMs
	}
	if c.Speech.Model == "" {
		c.Speech.Model = def.Speech.Model
	}
	if c.Speech.WhisperModel == "" {
		c.Speech.WhisperModel = def.Speech.WhisperModel
	}
}

func defaultConfig() *Config {
	return &Config{
		Hotkey:           "ctrl+shift+space",
		Backend:          BackendLive,
		IndicatorEnabled: true,
		MinHoldMs:        250,
		Intent: IntentConfig{
			BaseURL:   "http://localhost:8000",
			TimeoutMs: 30000,
		},
		Speech: SpeechConfig{
			Model:        "nova-2",
			WhisperModel: "whisper-1",
		},
	}
}

func configPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, configFileName), nil
}
