package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// SSEWriter writes a text/event-stream response, flushing after each event.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// NewSSEWriter sets the event-stream headers on w.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one named event with a JSON body. Events are numbered
// from 1 in the id field.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, body); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteDone sends the final event of a stream with the number of lines seen.
func (s *SSEWriter) WriteDone(lines int) error {
	return s.WriteEvent("done", map[string]int{"lines": lines})
}
