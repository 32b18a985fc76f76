package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "OPENAI_API_KEY", "OPENAI_BASE_URL", "REALTIME_MODEL", "REALTIME_VOICE",
	"REALTIME_TRANSPORT", "TTS_MODEL", "BULLHORN_CLIENT_ID", "BULLHORN_CLIENT_SECRET",
	"BULLHORN_REDIRECT_URI", "BULLHORN_AUTH_URL", "BULLHORN_LOGIN_URL",
	"BULLHORN_SESSION_WINDOW", "STATE_SECRET", "STATE_TTL_MINUTES", "DATABASE_URL",
}

// clearEnv blanks every variable the loader reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"realtime_transport": "webrtc",
		"bullhorn_client_id": "client-1",
		"session_window": "4h"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, TransportWebRTC, cfg.RealtimeTransport)
	assert.Equal(t, "client-1", cfg.BullhornClientID)
	assert.Equal(t, 4*time.Hour, cfg.Window())
}

func TestLoadConfig_SessionWindowSeconds(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"session_window": 90}`))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Window())
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"session_window": "eight hours"}`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultOpenAIBaseURL, cfg.OpenAIBaseURL)
	assert.Equal(t, DefaultRealtimeModel, cfg.RealtimeModel)
	assert.Equal(t, DefaultRealtimeVoice, cfg.RealtimeVoice)
	assert.Equal(t, TransportWebsocket, cfg.RealtimeTransport)
	assert.Equal(t, DefaultTTSModel, cfg.TTSModel)
	assert.Equal(t, DefaultBullhornAuthURL, cfg.BullhornAuthURL)
	assert.Equal(t, DefaultBullhornLoginURL, cfg.BullhornLoginURL)
	assert.Equal(t, 8*time.Hour, cfg.Window())
	assert.Equal(t, DefaultStateTTLMinutes, cfg.StateTTLMinutes)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.BullhornConfigured())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("REALTIME_TRANSPORT", "WebRTC")

	path := writeConfig(t, `{
		"port": 8080,
		"openai_api_key": "sk-file",
		"tts_model": "tts-1",
		"database_url": "postgres://localhost/molly"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "sk-env", cfg.OpenAIAPIKey)
	assert.Equal(t, TransportWebRTC, cfg.RealtimeTransport)
	assert.Equal(t, "tts-1", cfg.TTSModel, "file value used when env is unset")
	assert.Equal(t, "postgres://localhost/molly", cfg.DatabaseURL)
	assert.Equal(t, DefaultRealtimeModel, cfg.RealtimeModel, "default used when neither is set")
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"non-numeric port", "PORT", "http", "invalid PORT"},
		{"bad window", "BULLHORN_SESSION_WINDOW", "eight", "invalid BULLHORN_SESSION_WINDOW"},
		{"zero window", "BULLHORN_SESSION_WINDOW", "0s", "must be positive"},
		{"negative window", "BULLHORN_SESSION_WINDOW", "-1h", "must be positive"},
		{"bad state ttl", "STATE_TTL_MINUTES", "ten", "invalid STATE_TTL_MINUTES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := FromEnv()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromEnv_SessionWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv("BULLHORN_SESSION_WINDOW", "30m")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Window())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown transport", func(c *Config) { c.RealtimeTransport = "carrier-pigeon" }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
		{"bad base url", func(c *Config) { c.OpenAIBaseURL = "not a url" }, true},
		{"negative window", func(c *Config) { c.SessionWindow = Duration(-time.Hour) }, true},
		{"webrtc", func(c *Config) { c.RealtimeTransport = TransportWebRTC }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "config error")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{
		Port:             9000,
		BullhornClientID: "from-env",
	}
	defaults := Config{
		Port:                 3000,
		BullhornClientID:     "from-file",
		BullhornClientSecret: "secret",
		SessionWindow:        Duration(2 * time.Hour),
	}

	result := cfg.MergeWithDefaults(defaults)

	assert.Equal(t, 9000, result.Port, "should keep original")
	assert.Equal(t, "from-env", result.BullhornClientID, "should keep original")
	assert.Equal(t, "secret", result.BullhornClientSecret, "should use default")
	assert.Equal(t, 2*time.Hour, result.Window(), "should use default")
	assert.Equal(t, 0, cfg.StateTTLMinutes, "receiver is not modified")
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := &Config{RealtimeVoice: "verse"}

	result := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "verse", result.RealtimeVoice)
	assert.Empty(t, result.OpenAIAPIKey)
}

func TestBullhornConfigured(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.BullhornConfigured())

	cfg.BullhornClientID = "id"
	cfg.BullhornClientSecret = "secret"
	assert.False(t, cfg.BullhornConfigured(), "redirect URI is also required")

	cfg.BullhornRedirectURI = "http://localhost:3000/api/bullhorn/callback"
	assert.True(t, cfg.BullhornConfigured())
}

func TestRequireOpenAI(t *testing.T) {
	cfg := Defaults()
	err := cfg.RequireOpenAI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.OpenAIAPIKey = "sk-test"
	assert.NoError(t, cfg.RequireOpenAI())
}
