// Package credential holds the search backend's authorization material and
// decides, before every backend call, whether that material is still usable.
package credential

import (
	"sync"
	"time"
)

// State is the freshness state of the stored material.
type State int

const (
	// StateUnauthenticated means no session material is stored.
	StateUnauthenticated State = iota
	// StateFresh means the session is younger than the freshness window.
	StateFresh
	// StateStale means the session must be renewed before use.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Tokens are the OAuth tokens returned by the authorization-code exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Session is the backend REST session obtained by logging in with an access token.
type Session struct {
	Token   string
	BaseURL string
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool {
	return s.Token != "" && s.BaseURL != ""
}

// Material is a snapshot of everything the store holds.
type Material struct {
	Tokens
	Session
	IssuedAt time.Time
}

// FreshAt reports whether the session issued at m.IssuedAt is still inside
// window at time now.
func (m Material) FreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(m.IssuedAt) < window
}

// StateAt classifies the material at time now.
func (m Material) StateAt(now time.Time, window time.Duration) State {
	if !m.Session.Valid() || m.AccessToken == "" {
		return StateUnauthenticated
	}
	if m.FreshAt(now, window) {
		return StateFresh
	}
	return StateStale
}

// Store holds the current material. It is created empty, populated by
// Authorize, renewed in place by the Gate and emptied by Clear.
type Store struct {
	mu       sync.RWMutex
	material Material
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Authorize replaces all material after a successful authorization-code
// exchange and login.
func (s *Store) Authorize(tokens Tokens, session Session, issuedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.material = Material{Tokens: tokens, Session: session, IssuedAt: issuedAt}
}

// renew swaps in a new session for the same access token. It returns false
// when the material was cleared or re-authorized in the meantime.
func (s *Store) renew(accessToken string, session Session, issuedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.material.AccessToken != accessToken || !s.material.Session.Valid() {
		return false
	}
	s.material.Session = session
	s.material.IssuedAt = issuedAt
	return true
}

// Snapshot returns a copy of the stored material.
func (s *Store) Snapshot() Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.material
}

// Connected reports whether a session is stored, regardless of its age.
func (s *Store) Connected() bool {
	return s.Snapshot().Session.Valid()
}

// Clear drops all material. Used at shutdown.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.material = Material{}
}
