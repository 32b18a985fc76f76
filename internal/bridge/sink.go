package bridge

import (
	"encoding/json"
	"time"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
)

// EntryKind classifies a transcript entry.
type EntryKind string

// Transcript entry kinds.
const (
	KindNarrative EntryKind = "narrative"
	KindWarning   EntryKind = "warning"
	KindCommand   EntryKind = "command"
	KindResults   EntryKind = "results"
	KindRelay     EntryKind = "relay"
)

// Entry is one item shown to the user alongside the voice conversation.
type Entry struct {
	Kind    EntryKind         `json:"kind"`
	Text    string            `json:"text,omitempty"`
	Payload *command.Payload  `json:"payload,omitempty"`
	Results *bullhorn.Results `json:"results,omitempty"`
	Event   json.RawMessage   `json:"event,omitempty"`
	At      time.Time         `json:"at"`
}

// Sink receives transcript entries. Emit is called from a single goroutine
// per conversation, in order.
type Sink interface {
	Emit(Entry)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Entry)

// Emit calls f.
func (f SinkFunc) Emit(e Entry) {
	f(e)
}

// Discard is a Sink that drops every entry.
var Discard Sink = SinkFunc(func(Entry) {})
