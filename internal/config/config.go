// Package config provides configuration loading and validation for the Molly server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when neither the environment nor the config file sets a value.
const (
	DefaultPort              = 3000
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultRealtimeModel     = "gpt-4o-realtime-preview-2024-12-17"
	DefaultRealtimeVoice     = "aria"
	DefaultTTSModel          = "gpt-4o-mini-tts"
	DefaultBullhornAuthURL   = "https://auth.bullhornstaffing.com/oauth"
	DefaultBullhornLoginURL  = "https://rest.bullhornstaffing.com/rest-services/login"
	DefaultSessionWindow     = 8 * time.Hour
	DefaultStateTTLMinutes   = 10
	TransportWebsocket       = "websocket"
	TransportWebRTC          = "webrtc"
	DefaultRealtimeTransport = TransportWebsocket
)

// Duration is a time.Duration that reads "8h"-style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a Go duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration in Go's string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config is the server configuration. Environment variables take precedence
// over values loaded from a JSON file, which in turn override the defaults.
type Config struct {
	Port int `json:"port,omitempty" validate:"min=0,max=65535"`

	// OpenAI
	OpenAIAPIKey      string `json:"openai_api_key,omitempty"`
	OpenAIBaseURL     string `json:"openai_base_url,omitempty" validate:"omitempty,url"`
	RealtimeModel     string `json:"realtime_model,omitempty"`
	RealtimeVoice     string `json:"realtime_voice,omitempty"`
	RealtimeTransport string `json:"realtime_transport,omitempty" validate:"omitempty,oneof=websocket webrtc"`
	TTSModel          string `json:"tts_model,omitempty"`

	// Bullhorn
	BullhornClientID     string   `json:"bullhorn_client_id,omitempty"`
	BullhornClientSecret string   `json:"bullhorn_client_secret,omitempty"`
	BullhornRedirectURI  string   `json:"bullhorn_redirect_uri,omitempty" validate:"omitempty,url"`
	BullhornAuthURL      string   `json:"bullhorn_auth_url,omitempty" validate:"omitempty,url"`
	BullhornLoginURL     string   `json:"bullhorn_login_url,omitempty" validate:"omitempty,url"`
	SessionWindow        Duration `json:"session_window,omitempty"`

	// OAuth state tokens
	StateSecret     string `json:"state_secret,omitempty"`
	StateTTLMinutes int    `json:"state_ttl_minutes,omitempty" validate:"min=0"`

	DatabaseURL string `json:"database_url,omitempty"`
}

var validate = validator.New()

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:              DefaultPort,
		OpenAIBaseURL:     DefaultOpenAIBaseURL,
		RealtimeModel:     DefaultRealtimeModel,
		RealtimeVoice:     DefaultRealtimeVoice,
		RealtimeTransport: DefaultRealtimeTransport,
		TTSModel:          DefaultTTSModel,
		BullhornAuthURL:   DefaultBullhornAuthURL,
		BullhornLoginURL:  DefaultBullhornLoginURL,
		SessionWindow:     Duration(DefaultSessionWindow),
		StateTTLMinutes:   DefaultStateTTLMinutes,
	}
}

// Load builds the effective configuration: environment first, then the
// optional JSON file at path, then Defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		merged := cfg.MergeWithDefaults(*file)
		cfg = &merged
	}

	merged := cfg.MergeWithDefaults(Defaults())
	cfg = &merged

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the configuration from environment variables. Unset
// variables leave the corresponding field empty.
func FromEnv() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		RealtimeModel:        os.Getenv("REALTIME_MODEL"),
		RealtimeVoice:        os.Getenv("REALTIME_VOICE"),
		RealtimeTransport:    strings.ToLower(os.Getenv("REALTIME_TRANSPORT")),
		TTSModel:             os.Getenv("TTS_MODEL"),
		BullhornClientID:     os.Getenv("BULLHORN_CLIENT_ID"),
		BullhornClientSecret: os.Getenv("BULLHORN_CLIENT_SECRET"),
		BullhornRedirectURI:  os.Getenv("BULLHORN_REDIRECT_URI"),
		BullhornAuthURL:      os.Getenv("BULLHORN_AUTH_URL"),
		BullhornLoginURL:     os.Getenv("BULLHORN_LOGIN_URL"),
		StateSecret:          os.Getenv("STATE_SECRET"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %v", err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("BULLHORN_SESSION_WINDOW"); v != "" {
		window, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BULLHORN_SESSION_WINDOW: %v", err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("BULLHORN_SESSION_WINDOW must be positive, got: %s", v)
		}
		cfg.SessionWindow = Duration(window)
	}

	if v := os.Getenv("STATE_TTL_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STATE_TTL_MINUTES: %v", err)
		}
		cfg.StateTTLMinutes = minutes
	}

	return cfg, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values. Required keys are
// checked by the components that need them.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.SessionWindow < 0 {
		return fmt.Errorf("config error: 'session_window' must be positive")
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&result.OpenAIAPIKey, defaults.OpenAIAPIKey)
	fill(&result.OpenAIBaseURL, defaults.OpenAIBaseURL)
	fill(&result.RealtimeModel, defaults.RealtimeModel)
	fill(&result.RealtimeVoice, defaults.RealtimeVoice)
	fill(&result.RealtimeTransport, defaults.RealtimeTransport)
	fill(&result.TTSModel, defaults.TTSModel)
	fill(&result.BullhornClientID, defaults.BullhornClientID)
	fill(&result.BullhornClientSecret, defaults.BullhornClientSecret)
	fill(&result.BullhornRedirectURI, defaults.BullhornRedirectURI)
	fill(&result.BullhornAuthURL, defaults.BullhornAuthURL)
	fill(&result.BullhornLoginURL, defaults.BullhornLoginURL)
	fill(&result.StateSecret, defaults.StateSecret)
	fill(&result.DatabaseURL, defaults.DatabaseURL)

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.SessionWindow == 0 {
		result.SessionWindow = defaults.SessionWindow
	}
	if result.StateTTLMinutes == 0 {
		result.StateTTLMinutes = defaults.StateTTLMinutes
	}

	return result
}

// Window returns the credential freshness window.
func (c *Config) Window() time.Duration {
	return time.Duration(c.SessionWindow)
}

// BullhornConfigured reports whether the OAuth client credentials are set.
func (c *Config) BullhornConfigured() bool {
	return c.BullhornClientID != "" && c.BullhornClientSecret != "" && c.BullhornRedirectURI != ""
}

// RequireOpenAI returns an error when the OpenAI API key is missing.
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required but not set")
	}
	return nil
}
