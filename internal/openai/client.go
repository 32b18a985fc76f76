// Package openai provisions realtime voice sessions and synthesizes speech
// through the OpenAI HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wave/molly/internal/fetch"
)

// DefaultBaseURL is the public API base.
const DefaultBaseURL = "https://api.openai.com/v1"

// Defaults for the voice persona.
const (
	DefaultRealtimeModel = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice         = "aria"
	DefaultSpeechModel   = "gpt-4o-mini-tts"
	DefaultSpeechFormat  = "mp3"
)

// UpstreamError carries a non-2xx response unchanged so that callers can
// relay the same status and body.
type UpstreamError struct {
	Op          string
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *UpstreamError) Error() string {
	msg := fetch.DescribeBody(e.ContentType, e.Body)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("openai %s failed with status %d: %s", e.Op, e.StatusCode, msg)
}

// Client calls the OpenAI HTTP API.
type Client struct {
	apiKey  string
	baseURL string
	opts    *fetch.Options
}

// NewClient returns a client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, opts *fetch.Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), opts: opts}
}

// BaseURL returns the API base without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKey returns the key used for upstream calls.
func (c *Client) APIKey() string {
	return c.apiKey
}

var validate = validator.New()

// SessionRequest configures an ephemeral realtime session.
type SessionRequest struct {
	Model        string `json:"model" validate:"required"`
	Voice        string `json:"voice" validate:"required"`
	Instructions string `json:"instructions,omitempty"`
}

// CreateSession provisions an ephemeral realtime session and returns the
// upstream JSON unchanged.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (json.RawMessage, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid session request: %w", err)
	}

	result, err := c.post(ctx, "create session", "/realtime/sessions", req)
	if err != nil {
		return nil, err
	}
	if !json.Valid(result.Body) {
		return nil, &UpstreamError{Op: "create session", StatusCode: http.StatusBadGateway, Body: result.Body, ContentType: result.ContentType}
	}
	return json.RawMessage(result.Body), nil
}

// SpeechRequest describes a speech synthesis call.
type SpeechRequest struct {
	Model  string `json:"model" validate:"required"`
	Voice  string `json:"voice" validate:"required"`
	Input  string `json:"input" validate:"required,max=4096"`
	Format string `json:"format" validate:"required,oneof=mp3 opus aac flac wav pcm"`
}

// Audio is synthesized speech.
type Audio struct {
	Data        []byte
	ContentType string
}

// Synthesize renders text as speech.
func (c *Client) Synthesize(ctx context.Context, req SpeechRequest) (*Audio, error) {
	if req.Model == "" {
		req.Model = DefaultSpeechModel
	}
	if req.Format == "" {
		req.Format = DefaultSpeechFormat
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid speech request: %w", err)
	}

	result, err := c.post(ctx, "speech", "/audio/speech", req)
	if err != nil {
		return nil, err
	}

	contentType := result.ContentType
	if contentType == "" || req.Format == DefaultSpeechFormat {
		contentType = "audio/mpeg"
	}
	return &Audio{Data: result.Body, ContentType: contentType}, nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) (*fetch.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	result, err := fetch.Do(req, c.opts)
	if err != nil {
		var fetchErr *fetch.Error
		if result != nil && errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
			return nil, &UpstreamError{Op: op, StatusCode: result.StatusCode, Body: result.Body, ContentType: result.ContentType}
		}
		return nil, fmt.Errorf("openai %s: %w", op, err)
	}
	return result, nil
}
