package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultEventBuffer is the number of server events queued ahead of the consumer.
const DefaultEventBuffer = 64

// sendTimeout bounds a single client event write.
var sendTimeout = 10 * time.Second

// Options configures a realtime connection.
type Options struct {
	// BaseURL is the HTTP API base, e.g. https://api.openai.com/v1.
	BaseURL string
	APIKey  string
	Model   string
	Logger  *log.Logger
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func jsonMarshal(event any) ([]byte, error) {
	if raw, ok := event.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client event: %w", err)
	}
	return data, nil
}

// WebsocketURL derives the realtime websocket endpoint from an HTTP API base.
func WebsocketURL(baseURL, model string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/realtime")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WebsocketChannel is a Channel over a server-side websocket connection.
type WebsocketChannel struct {
	*eventBuffer
	conn   *websocket.Conn
	logger *log.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	readDone  chan struct{}
}

// DialWebsocket opens a realtime conversation over a websocket.
func DialWebsocket(ctx context.Context, opts Options) (*WebsocketChannel, error) {
	endpoint, err := WebsocketURL(opts.BaseURL, opts.Model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+opts.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime websocket dial failed: %w", err)
	}

	ch := &WebsocketChannel{
		eventBuffer: newEventBuffer(DefaultEventBuffer),
		conn:        conn,
		logger:      opts.logger(),
		readDone:    make(chan struct{}),
	}
	// The connection is usable as soon as the handshake completes.
	ch.emit(Opened{})
	go ch.readLoop()
	return ch, nil
}

// Send writes a client event.
func (c *WebsocketChannel) Send(ctx context.Context, event any) error {
	if c.closed() {
		return ErrClosed
	}
	data, err := jsonMarshal(event)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(sendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if c.closed() {
			return ErrClosed
		}
		return fmt.Errorf("failed to send client event: %w", err)
	}
	return nil
}

// Close ends the conversation and waits for the reader to stop.
func (c *WebsocketChannel) Close() error {
	c.closeOnce.Do(func() {
		c.finish(nil)
		// WriteControl may run concurrently with a blocked Send.
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		_ = c.conn.Close()
	})
	<-c.readDone
	return nil
}

func (c *WebsocketChannel) readLoop() {
	defer close(c.readDone)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.finish(nil)
				return
			}
			c.finish(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := Decode(data)
		if err != nil {
			c.logger.Printf("[realtime] dropping undecodable server event: %v", err)
			continue
		}
		if !c.emit(event) {
			return
		}
	}
}
