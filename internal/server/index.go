package server

import (
	_ "embed"
	"net/http"
)

var (
	//go:embed static/index.html
	indexHTML []byte
	//go:embed static/voices.html
	voicesHTML []byte
)

// handleIndex serves the single-page conversation console.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writePage(w, indexHTML)
}

// handleVoices serves the speech preview page.
func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writePage(w, voicesHTML)
}

func writePage(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
