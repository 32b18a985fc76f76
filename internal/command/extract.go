package command

import (
	"fmt"
	"strings"

	"github.com/wave/molly/internal/schemas"
)

// Sentinel marks a line as a machine-readable search command.
const Sentinel = "@@SEARCH"

// Kind identifies how a line was classified.
type Kind int

const (
	// KindNarrative is free-form text meant for the display sink.
	KindNarrative Kind = iota
	// KindCommand is a sentinel line with a valid payload.
	KindCommand
	// KindMalformed is a sentinel line whose payload could not be used.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNarrative:
		return "narrative"
	case KindCommand:
		return "command"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the classification of a single line. Exactly one of Text,
// Payload or Err is meaningful, depending on Kind.
type Outcome struct {
	Kind    Kind
	Text    string
	Payload Payload
	Err     *ParseError
}

// ParseError reports a sentinel line whose payload failed to parse or validate.
type ParseError struct {
	Line    string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed %s command: %s: %v", Sentinel, e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed %s command: %s", Sentinel, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsCommandLine reports whether line starts with the sentinel followed by at
// least one space. The match is anchored to the untrimmed line.
func IsCommandLine(line string) bool {
	rest, ok := strings.CutPrefix(line, Sentinel)
	return ok && strings.HasPrefix(rest, " ")
}

// Classify decides whether line is narrative text or a search command.
// It never fails: payload problems are reported as a KindMalformed outcome.
func Classify(line string) Outcome {
	if !IsCommandLine(line) {
		return Outcome{Kind: KindNarrative, Text: strings.TrimSpace(line)}
	}

	raw := strings.TrimSpace(line[len(Sentinel):])
	if raw == "" {
		return malformed(line, "missing JSON payload", nil)
	}

	if err := schemas.ValidateBytes(schemas.SearchCommand, []byte(raw)); err != nil {
		return malformed(line, "payload does not match schema", err)
	}

	payload, err := DecodePayload([]byte(raw))
	if err != nil {
		return malformed(line, "invalid payload", err)
	}

	return Outcome{Kind: KindCommand, Payload: payload}
}

func malformed(line, message string, cause error) Outcome {
	return Outcome{
		Kind: KindMalformed,
		Text: line,
		Err:  &ParseError{Line: line, Message: message, Cause: cause},
	}
}
