// Package realtime connects to the OpenAI Realtime API and exposes the
// conversation as an ordered stream of typed events.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Server event types that carry streamed agent text.
const (
	TypeTextDelta            = "response.text.delta"
	TypeAudioTranscriptDelta = "response.audio_transcript.delta"
	TypeError                = "error"
)

// Event is a decoded server event.
type Event interface {
	EventType() string
}

// Opened is delivered once, when the channel can accept client events.
type Opened struct{}

// EventType implements Event.
func (Opened) EventType() string { return "molly.opened" }

// TextDelta is a fragment of agent text.
type TextDelta struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
}

// EventType implements Event.
func (e TextDelta) EventType() string { return e.Type }

// ServerError is an error reported in-band by the server. The channel stays
// open after it.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Raw     json.RawMessage
}

// EventType implements Event.
func (ServerError) EventType() string { return TypeError }

// Unknown is any other server event, kept verbatim.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

// EventType implements Event.
func (e Unknown) EventType() string { return e.Type }

// Decode parses one server event frame.
func Decode(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid server event: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("invalid server event: missing type")
	}

	raw := json.RawMessage(append([]byte(nil), data...))

	switch head.Type {
	case TypeTextDelta, TypeAudioTranscriptDelta:
		var e TextDelta
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("invalid %s event: %w", head.Type, err)
		}
		return e, nil
	case TypeError:
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("invalid error event: %w", err)
		}
		return ServerError{
			Type:    envelope.Error.Type,
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
			Raw:     raw,
		}, nil
	default:
		return Unknown{Type: head.Type, Raw: raw}, nil
	}
}

// ResponseCreate asks the server to produce a new response with the given
// instructions.
type ResponseCreate struct {
	Type     string         `json:"type"`
	Response ResponseConfig `json:"response"`
}

// ResponseConfig is the body of a response.create event.
type ResponseConfig struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
}

// NewResponseCreate builds a response.create event producing both audio and text.
func NewResponseCreate(instructions string) ResponseCreate {
	return ResponseCreate{
		Type: "response.create",
		Response: ResponseConfig{
			Modalities:   []string{"audio", "text"},
			Instructions: instructions,
		},
	}
}

// SessionUpdate configures the server-side session after connecting.
type SessionUpdate struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// SessionConfig is the body of a session.update event.
type SessionConfig struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Voice        string   `json:"voice,omitempty"`
}

// NewSessionUpdate builds a session.update event setting the persona and voice.
func NewSessionUpdate(instructions, voice string) SessionUpdate {
	return SessionUpdate{
		Type: "session.update",
		Session: SessionConfig{
			Modalities:   []string{"audio", "text"},
			Instructions: instructions,
			Voice:        voice,
		},
	}
}
