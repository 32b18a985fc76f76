package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Search outcomes recorded in the log.
const (
	OutcomeOK              = "ok"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeUnavailable     = "unavailable"
	OutcomeCanceled        = "canceled"
)

// SourceManual marks searches issued through the HTTP search endpoint rather
// than by a conversation.
const SourceManual = "manual"

// DefaultListLimit is used when ListSearches is called without a limit.
const DefaultListLimit = 50

// SearchEntry is one backend search attempt.
type SearchEntry struct {
	ID             uuid.UUID       `json:"id"`
	Source         string          `json:"source"`
	Query          string          `json:"query"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	RequestedCount int             `json:"requested_count"`
	ResultCount    int             `json:"result_count"`
	Outcome        string          `json:"outcome"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	DurationMs     int             `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}
