package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/wave/molly/internal/bridge"
	"github.com/wave/molly/internal/command"
	"github.com/wave/molly/internal/prompts"
	"github.com/wave/molly/internal/realtime"
)

const (
	// entryBuffer is the number of transcript entries queued for the browser.
	entryBuffer = 64
	// clientMessageLimit bounds one browser message (audio chunks are base64).
	clientMessageLimit = 1 << 20
	writeWait          = 10 * time.Second
	maxClassifyBody    = 1 << 20
)

var (
	errClientClosed   = errors.New("browser closed the conversation")
	errUpstreamClosed = errors.New("realtime channel closed")
)

// handleConversation upgrades to a websocket and bridges the browser to a
// realtime channel. Transcript entries flow to the browser; browser messages
// are forwarded upstream as client events. Closing either side ends both.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if s.dial == nil || s.searcher == nil {
		s.errResponse(w, &ErrNotConfigured{Feature: "conversation"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Printf("[conversation] upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(clientMessageLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.baseCtx, cancel)
	defer stop()

	id := uuid.NewString()
	ch, err := s.dial(ctx)
	if err != nil {
		s.logger.Printf("[conversation] %s: realtime dial failed: %v", id, err)
		writeEntry(conn, bridge.Entry{Kind: bridge.KindWarning, Text: "Realtime connection failed: " + err.Error(), At: time.Now()})
		closeConn(conn, websocket.CloseInternalServerErr, "realtime unavailable")
		return
	}
	defer ch.Close()

	s.logger.Printf("[conversation] %s: started", id)
	err = s.runConversation(ctx, id, conn, ch)
	switch {
	case err == nil, errors.Is(err, errClientClosed), errors.Is(err, errUpstreamClosed), errors.Is(err, context.Canceled):
		s.logger.Printf("[conversation] %s: ended (%v)", id, err)
		closeConn(conn, websocket.CloseNormalClosure, "")
	default:
		s.logger.Printf("[conversation] %s: failed: %v", id, err)
		closeConn(conn, websocket.CloseInternalServerErr, "conversation failed")
	}
}

func (s *Server) runConversation(ctx context.Context, id string, conn *websocket.Conn, ch realtime.Channel) error {
	g, gctx := errgroup.WithContext(ctx)
	entries := make(chan bridge.Entry, entryBuffer)

	sink := bridge.SinkFunc(func(e bridge.Entry) {
		select {
		case entries <- e:
		case <-gctx.Done():
		}
	})
	session := realtime.NewSessionUpdate(prompts.Persona(), s.cfg.RealtimeVoice)
	orch := bridge.New(s.searcher, sink, bridge.Options{ID: id, Session: &session, Logger: s.logger})

	g.Go(func() error {
		if err := orch.Run(gctx, ch); err != nil {
			return err
		}
		return errUpstreamClosed
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case e := <-entries:
				if err := writeEntry(conn, e); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return errClientClosed
			}
			if !json.Valid(data) {
				s.logger.Printf("[conversation] %s: ignoring non-JSON client message", id)
				continue
			}
			if err := ch.Send(gctx, json.RawMessage(data)); err != nil {
				if errors.Is(err, realtime.ErrClosed) {
					return errUpstreamClosed
				}
				return err
			}
		}
	})

	// Unblock the reader once any pump finishes.
	g.Go(func() error {
		<-gctx.Done()
		_ = conn.SetReadDeadline(time.Now())
		return nil
	})

	return g.Wait()
}

func writeEntry(conn *websocket.Conn, e bridge.Entry) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}

func closeConn(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}

// handleClassify streams the classification of a transcript body as
// server-sent events. The optional chunk query parameter splits the body
// into fragments of that many bytes before reassembly.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	chunk := 0
	if raw := r.URL.Query().Get("chunk"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errResponse(w, &ErrValidation{Field: "chunk", Message: "must be a non-negative integer"})
			return
		}
		chunk = n
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxClassifyBody)
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	lines := 0
	emit := func(line string) error {
		lines++
		out := command.Classify(line)
		event := map[string]any{"line": lines, "kind": out.Kind.String()}
		switch out.Kind {
		case command.KindNarrative:
			event["text"] = out.Text
		case command.KindCommand:
			event["payload"] = out.Payload
		case command.KindMalformed:
			event["error"] = out.Err.Error()
		}
		return sse.WriteEvent(out.Kind.String(), event)
	}

	var reassembler command.Reassembler
	reader := bufio.NewReader(r.Body)
	buf := make([]byte, max(chunk, 4096))
	if chunk > 0 {
		buf = buf[:chunk]
	}
	for {
		n, readErr := reader.Read(buf)
		for _, line := range reassembler.Feed(string(buf[:n])) {
			if err := emit(line); err != nil {
				return
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			s.logger.Printf("[server] classify: read failed: %v", readErr)
			_ = sse.WriteEvent("error", map[string]string{"error": readErr.Error()})
			return
		}
	}
	if rest := reassembler.Pending(); rest != "" {
		if err := emit(rest); err != nil {
			return
		}
	}
	if err := sse.WriteDone(lines); err != nil {
		s.logger.Printf("[server] classify: %v", err)
	}
}
