package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loquent-ai/loquent-go/pkg/chat"
)

func testSettings() chat.AgentSettings {
	return chat.AgentSettings{
		UserID:   "u1",
		Provider: "openai",
		Model:    "gpt-4o",
	}
}

func waitForState(t *testing.T, c *Client, want chat.ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func TestClientConnectSuccessResetsAttempts(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient(url, testSettings(), testConfig())
	if !c.Connect(context.Background()) {
		t.Fatal("Connect returned false")
	}
	defer c.Disconnect(context.Background())

	if c.State() != chat.StateConnected {
		t.Fatalf("state = %v, want connected", c.State())
	}
	if c.retry.Attempts() != 0 {
		t.Fatalf("attempts = %d after successful connect, want 0", c.retry.Attempts())
	}
}

func TestClientConnectFailureExhaustsAndReturnsFalse(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 200 * time.Millisecond
	cfg.MaxReconnectAttempts = 2

	// Nothing listens here.
	c := NewClient("ws://127.0.0.1:1", testSettings(), cfg)
	if c.Connect(context.Background()) {
		t.Fatal("Connect returned true with no server")
	}

	// Background retries run out, then the client settles in disconnected.
	waitForState(t, c, chat.StateDisconnected)
}

func TestClientConnectReturnsFalseAfterFirstFailure(t *testing.T) {
	cfg := MobileConfig()
	cfg.ConnectTimeout = 100 * time.Millisecond
	cfg.ReconnectBaseDelay = 50 * time.Millisecond
	cfg.ReconnectMaxDelay = 100 * time.Millisecond

	// Nothing listens here; with infinite retries Connect must still come
	// back after its single failed attempt instead of blocking on the cycle.
	c := NewClient("ws://127.0.0.1:1", testSettings(), cfg)

	start := time.Now()
	ok := c.Connect(context.Background())
	elapsed := time.Since(start)

	if ok {
		t.Fatal("Connect returned true with no server")
	}
	if elapsed > time.Second {
		t.Fatalf("Connect blocked for %v, want a prompt return after one attempt", elapsed)
	}
	if c.State() != chat.StateConnecting {
		t.Fatalf("state = %v, want connecting while background retries run", c.State())
	}
	if c.retry.Attempts() == 0 {
		t.Fatal("failed attempt not recorded")
	}

	_ = c.Disconnect(context.Background())
	waitForState(t, c, chat.StateDisconnected)
}

func TestClientConnectRecoversInBackground(t *testing.T) {
	// The first dial is refused; later dials upgrade normally. Connect
	// returns false for the failed attempt and the background schedule must
	// deliver the connection, announced by a state change.
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) == 1 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	cfg := testConfig()
	cfg.MaxReconnectAttempts = 10
	c := NewClient(url, testSettings(), cfg)

	if c.Connect(context.Background()) {
		t.Fatal("Connect returned true on the refused attempt")
	}
	defer c.Disconnect(context.Background())

	waitForState(t, c, chat.StateConnected)
	if c.retry.Attempts() != 0 {
		t.Fatalf("attempts = %d after background success, want 0", c.retry.Attempts())
	}
}

func TestClientSendFailsFastWhenNotConnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", testSettings(), testConfig())
	err := c.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("Send succeeded while disconnected")
	}
	if !chat.IsType(err, chat.ErrNotConnected) {
		t.Fatalf("err = %v, want not_connected", err)
	}
}

func TestClientSendWritesFullChatRequest(t *testing.T) {
	received := make(chan string, 1)
	url := newWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient(url, testSettings(), testConfig())
	if !c.Connect(context.Background()) {
		t.Fatal("Connect returned false")
	}
	defer c.Disconnect(context.Background())

	if err := c.Send(context.Background(), "hello there"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case payload := <-received:
		for _, want := range []string{`"type":"chat_request"`, `"user_id":"u1"`, `"message":"hello there"`, `"model_name":"gpt-4o"`} {
			if !strings.Contains(payload, want) {
				t.Errorf("payload missing %s:\n%s", want, payload)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the request")
	}
}

func TestClientPublishesServerEvents(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"text_chunk","chunk":"hi"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"complete"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus_event"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient(url, testSettings(), testConfig())
	if !c.Connect(context.Background()) {
		t.Fatal("Connect returned false")
	}
	defer c.Disconnect(context.Background())

	var gotText, gotComplete bool
	deadline := time.After(3 * time.Second)
	for !gotText || !gotComplete {
		select {
		case ev := <-c.Events():
			switch e := ev.(type) {
			case *chat.TextChunkEvent:
				if e.Text != "hi" {
					t.Fatalf("Text = %q, want hi", e.Text)
				}
				gotText = true
			case *chat.ResponseCompletedEvent:
				gotComplete = true
			}
		case <-deadline:
			t.Fatal("expected events never arrived")
		}
	}
}

func TestClientDisconnectLatchesAndFinalizes(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewClient(url, testSettings(), testConfig())
	if !c.Connect(context.Background()) {
		t.Fatal("Connect returned false")
	}
	if err := c.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if c.State() != chat.StateDisconnected {
		t.Fatalf("state = %v, want disconnected", c.State())
	}
	if !c.retry.Prevented() {
		t.Fatal("disconnect did not latch prevent-reconnect")
	}

	// The event stream must carry connected then disconnected transitions.
	var states []chat.ConnectionState
	for {
		select {
		case ev := <-c.Events():
			if st, ok := ev.(*chat.StateChangedEvent); ok {
				states = append(states, st.State)
			}
			continue
		default:
		}
		break
	}
	if len(states) == 0 || states[len(states)-1] != chat.StateDisconnected {
		t.Fatalf("state events = %v, want trailing disconnected", states)
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	url := newWSServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		if n == 1 {
			conn.Close() // drop the established connection immediately
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	cfg := testConfig()
	cfg.MaxReconnectAttempts = 10
	c := NewClient(url, testSettings(), cfg)
	if !c.Connect(context.Background()) {
		t.Fatal("Connect returned false")
	}
	defer c.Disconnect(context.Background())

	waitForState(t, c, chat.StateConnected)
	waitFor := time.Now().Add(3 * time.Second)
	for conns.Load() < 2 && time.Now().Before(waitFor) {
		time.Sleep(5 * time.Millisecond)
	}
	if conns.Load() < 2 {
		t.Fatalf("server saw %d connections, want at least 2", conns.Load())
	}
	waitForState(t, c, chat.StateConnected)
	if c.retry.Attempts() != 0 {
		t.Fatalf("attempts = %d after successful reconnect, want 0", c.retry.Attempts())
	}
}

func TestClientStopsReconnectingWhenExhausted(t *testing.T) {
	// The first upgrade succeeds and is dropped at once; every later dial is
	// refused, so the retry budget must run out.
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) == 1 {
			conn, err := testUpgrader.Upgrade(w, r, nil)
			if err == nil {
				conn.Close()
			}
			return
		}
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	cfg.ConnectTimeout = 200 * time.Millisecond
	c := NewClient(url, testSettings(), cfg)
	if !c.Connect(context.Background()) {
		t.Fatal("Connect returned false")
	}

	waitForState(t, c, chat.StateDisconnected)
	if conns.Load() < 3 {
		t.Fatalf("server saw %d dials, want the initial one plus retries", conns.Load())
	}
}
