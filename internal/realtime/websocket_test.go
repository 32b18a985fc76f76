package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRealtimeTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realtime" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "gpt-test", r.URL.Query().Get("model"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "realtime=v1", r.Header.Get("OpenAI-Beta"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func testOptions(serverURL string) Options {
	return Options{
		BaseURL: serverURL + "/v1",
		APIKey:  "sk-test",
		Model:   "gpt-test",
		Logger:  log.New(io.Discard, "", 0),
	}
}

func collect(t *testing.T, ch Channel, timeout time.Duration) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-deadline:
			t.Fatalf("events channel not closed after %s", timeout)
		}
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"https://api.openai.com/v1", "wss://api.openai.com/v1/realtime?model=gpt-4o", false},
		{"https://api.openai.com/v1/", "wss://api.openai.com/v1/realtime?model=gpt-4o", false},
		{"http://localhost:8080/v1", "ws://localhost:8080/v1/realtime?model=gpt-4o", false},
		{"ftp://example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := WebsocketURL(tt.base, "gpt-4o")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWebsocketChannel_EventsInOrder(t *testing.T) {
	received := make(chan map[string]any, 1)
	server := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		for _, frame := range []string{
			`{"type":"session.created"}`,
			`{"type":"response.audio_transcript.delta","delta":"Hel"}`,
			`not json`,
			`{"type":"response.audio_transcript.delta","delta":"lo\n"}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	})
	defer server.Close()

	ch, err := DialWebsocket(context.Background(), testOptions(server.URL))
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send(context.Background(), NewResponseCreate("Say hello.")))

	events := collect(t, ch, 5*time.Second)
	require.Len(t, events, 4)
	assert.Equal(t, Opened{}, events[0])
	assert.Equal(t, "session.created", events[1].EventType())
	assert.Equal(t, TextDelta{Type: TypeAudioTranscriptDelta, Delta: "Hel"}, events[2])
	assert.Equal(t, TextDelta{Type: TypeAudioTranscriptDelta, Delta: "lo\n"}, events[3])
	assert.NoError(t, ch.Err())

	msg := <-received
	assert.Equal(t, "response.create", msg["type"])
}

func TestWebsocketChannel_SendRaw(t *testing.T) {
	received := make(chan string, 1)
	server := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	})
	defer server.Close()

	ch, err := DialWebsocket(context.Background(), testOptions(server.URL))
	require.NoError(t, err)
	defer ch.Close()

	raw := json.RawMessage(`{"type":"input_audio_buffer.commit"}`)
	require.NoError(t, ch.Send(context.Background(), raw))
	assert.Equal(t, string(raw), <-received)
}

func TestWebsocketChannel_CloseStopsEvents(t *testing.T) {
	release := make(chan struct{})
	server := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer server.Close()
	defer close(release)

	ch, err := DialWebsocket(context.Background(), testOptions(server.URL))
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	events := collect(t, ch, 2*time.Second)
	assert.LessOrEqual(t, len(events), 1)

	assert.ErrorIs(t, ch.Send(context.Background(), NewResponseCreate("x")), ErrClosed)
	assert.NoError(t, ch.Close())
}

// floodUntilError sends large events until one fails. The peer never reads,
// so writes eventually stall on full socket buffers.
func floodUntilError(ch *WebsocketChannel) <-chan error {
	errc := make(chan error, 1)
	raw := json.RawMessage(`"` + strings.Repeat("a", 1<<20) + `"`)
	go func() {
		for {
			if err := ch.Send(context.Background(), raw); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc
}

func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	server := newRealtimeTestServer(t, func(conn *websocket.Conn) {
		<-release
	})
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })
	return server
}

func TestWebsocketChannel_SendTimesOutWithoutDeadline(t *testing.T) {
	prev := sendTimeout
	sendTimeout = 200 * time.Millisecond
	t.Cleanup(func() { sendTimeout = prev })

	ch, err := DialWebsocket(context.Background(), testOptions(stalledServer(t).URL))
	require.NoError(t, err)
	defer ch.Close()

	select {
	case err := <-floodUntilError(ch):
		assert.Contains(t, err.Error(), "failed to send client event")
	case <-time.After(10 * time.Second):
		t.Fatal("Send blocked past its timeout")
	}
}

func TestWebsocketChannel_CloseDuringStalledSend(t *testing.T) {
	ch, err := DialWebsocket(context.Background(), testOptions(stalledServer(t).URL))
	require.NoError(t, err)

	errc := floodUntilError(ch)
	time.Sleep(300 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = ch.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked behind a stalled Send")
	}

	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stalled Send did not return after Close")
	}
}

func TestDialWebsocket_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := DialWebsocket(context.Background(), testOptions(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
