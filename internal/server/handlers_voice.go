package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/wave/molly/internal/openai"
	"github.com/wave/molly/internal/prompts"
)

// maxSpeechInput is the longest text accepted for speech synthesis.
const maxSpeechInput = 4096

// TTSRequest is the body of POST /api/tts. Both fields are optional.
type TTSRequest struct {
	Voice string `json:"voice,omitempty"`
	Text  string `json:"text,omitempty"`
}

// handleVoiceToken provisions an ephemeral realtime session for the browser.
func (s *Server) handleVoiceToken(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		s.errResponse(w, &ErrNotConfigured{Feature: "OpenAI"})
		return
	}

	session, err := s.voice.CreateSession(r.Context(), openai.SessionRequest{
		Model:        s.cfg.RealtimeModel,
		Voice:        s.cfg.RealtimeVoice,
		Instructions: prompts.Persona(),
	})
	if err != nil {
		s.logger.Printf("[voice] session request failed: %v", err)
		s.upstreamResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(session)
}

// handleTTS synthesizes a short speech preview.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		s.errResponse(w, &ErrNotConfigured{Feature: "OpenAI"})
		return
	}

	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errResponse(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if req.Voice == "" {
		req.Voice = s.cfg.RealtimeVoice
	}
	if req.Text == "" {
		req.Text = prompts.TTSPreview()
	}
	if utf8.RuneCountInString(req.Text) > maxSpeechInput {
		s.errResponse(w, &ErrValidation{Field: "text", Message: "must be at most 4096 characters"})
		return
	}

	audio, err := s.voice.Synthesize(r.Context(), openai.SpeechRequest{
		Model:  s.cfg.TTSModel,
		Voice:  req.Voice,
		Input:  req.Text,
		Format: openai.DefaultSpeechFormat,
	})
	if err != nil {
		s.logger.Printf("[voice] speech request failed: %v", err)
		s.upstreamResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", audio.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio.Data)
}

// upstreamResponse relays an upstream failure with its original status and
// body. Other errors are reported as JSON.
func (s *Server) upstreamResponse(w http.ResponseWriter, err error) {
	var upstream *openai.UpstreamError
	if !errors.As(err, &upstream) {
		s.errResponse(w, err)
		return
	}

	contentType := upstream.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(upstream.StatusCode)
	_, _ = w.Write(upstream.Body)
}
