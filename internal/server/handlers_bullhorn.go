package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
	"github.com/wave/molly/internal/db"
	"github.com/wave/molly/internal/schemas"
)

// maxListLimit caps GET /api/searches.
const maxListLimit = 200

// maxSearchBody bounds the manual search request body.
const maxSearchBody = 64 << 10

// connectedRedirect is where the browser lands after a successful callback.
const connectedRedirect = "/?bullhorn=connected"

// handleOAuthStart redirects the browser to the Bullhorn authorize page.
func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil || s.states == nil {
		http.Error(w, "Bullhorn OAuth not configured", http.StatusInternalServerError)
		return
	}

	state, err := s.states.Generate()
	if err != nil {
		s.logger.Printf("[oauth] failed to generate state: %v", err)
		http.Error(w, "OAuth error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleOAuthCallback completes the authorization-code flow and stores the
// resulting session.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil || s.states == nil || s.login == nil {
		http.Error(w, "Bullhorn OAuth not configured", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		s.logger.Printf("[oauth] authorization denied: %s", denied)
		http.Error(w, "OAuth error: "+denied, http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}
	if _, err := s.states.Validate(q.Get("state")); err != nil {
		s.logger.Printf("[oauth] rejected callback: %v", err)
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	if err := s.oauth.Connect(r.Context(), code, s.login, s.store, time.Now()); err != nil {
		s.logger.Printf("[oauth] connect failed: %v", err)
		http.Error(w, "OAuth error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Printf("[oauth] Bullhorn connected")
	http.Redirect(w, r, connectedRedirect, http.StatusFound)
}

// handleBullhornStatus reports whether a session has been authorised.
func (s *Server) handleBullhornStatus(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]bool{"connected": s.store.Connected()})
}

// handleSearchCandidates runs a search outside of a conversation.
func (s *Server) handleSearchCandidates(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		s.errResponse(w, &ErrNotConfigured{Feature: "candidate search"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSearchBody))
	if err != nil {
		s.errResponse(w, &ErrValidation{Field: "body", Message: "unreadable"})
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	if err := schemas.ValidateBytes(schemas.SearchCommand, body); err != nil {
		s.errResponse(w, &ErrValidation{Field: "body", Message: err.Error()})
		return
	}
	payload, err := command.DecodePayload(body)
	if err != nil {
		s.errResponse(w, &ErrValidation{Field: "body", Message: err.Error()})
		return
	}

	ctx := bullhorn.WithSource(r.Context(), db.SourceManual)
	results, err := s.searcher.Search(ctx, payload)
	if err != nil {
		s.logger.Printf("[search] manual search failed: %v", err)
		s.errResponse(w, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, results)
}

// handleListSearches returns recent entries from the search log.
func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	if s.searchLog == nil {
		s.errorResponse(w, http.StatusNotFound, "search log not configured")
		return
	}

	limit := db.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.errResponse(w, &ErrValidation{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	var source *string
	if raw := r.URL.Query().Get("source"); raw != "" {
		source = &raw
	}

	entries, err := s.searchLog.ListSearches(r.Context(), source, limit)
	if err != nil {
		s.logger.Printf("[search] failed to list searches: %v", err)
		s.errResponse(w, errors.New("failed to list searches"))
		return
	}
	if entries == nil {
		entries = []db.SearchEntry{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{"searches": entries})
}
