package main

import "testing"

// configEnv lists every environment variable the configuration reads.
var configEnv = []string{
	"PORT", "OPENAI_API_KEY", "OPENAI_BASE_URL", "REALTIME_MODEL", "REALTIME_VOICE",
	"REALTIME_TRANSPORT", "TTS_MODEL", "BULLHORN_CLIENT_ID", "BULLHORN_CLIENT_SECRET",
	"BULLHORN_REDIRECT_URI", "BULLHORN_AUTH_URL", "BULLHORN_LOGIN_URL",
	"BULLHORN_SESSION_WINDOW", "STATE_SECRET", "STATE_TTL_MINUTES", "DATABASE_URL",
}

// isolateEnv blanks the configuration environment for the duration of t so
// that a developer's .env does not leak into assertions.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}
