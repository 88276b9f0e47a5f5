package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
)

// mockWSServer creates a test WebSocket server running handler per connection.
func mockWSServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		if handler != nil {
			handler(conn)
		}
	}))
}

func echoHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Write(ctx, msgType, data); err != nil {
			return
		}
	}
}

func drainHandler(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(url, "test")
	cfg.PingInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func waitForState(t *testing.T, c *Client, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for state %v, got %v", want, c.State())
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{Name: "x"}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestClient_Connect_Success(t *testing.T) {
	server := mockWSServer(t, drainHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if client.State() != StateConnected {
		t.Errorf("expected state %v, got %v", StateConnected, client.State())
	}
	if !client.IsConnected() {
		t.Error("expected IsConnected() to return true")
	}
}

func TestClient_Connect_Failure(t *testing.T) {
	client := newTestClient(t, "ws://127.0.0.1:1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected Connect to fail")
	}
	if client.State() != StateDisconnected {
		t.Errorf("expected state %v, got %v", StateDisconnected, client.State())
	}
}

func TestClient_SendJSON(t *testing.T) {
	received := make(chan []byte, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		received <- data
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	payload := map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{"difference.all"},
	}
	if err := client.SendJSON(ctx, payload); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}

	select {
	case data := <-received:
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatalf("received data is not valid JSON: %v\ndata: %s", err, data)
		}
		if parsed["method"] != "SUBSCRIBE" {
			t.Errorf("expected method=SUBSCRIBE, got %v", parsed["method"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive message")
	}
}

func TestClient_Send_NotConnected(t *testing.T) {
	client := newTestClient(t, "ws://127.0.0.1:1", nil)
	if err := client.Send(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error sending without a connection")
	}
}

func TestClient_MessageHandling(t *testing.T) {
	server := mockWSServer(t, echoHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	got := make(chan []byte, 1)
	client.OnMessage(func(_ context.Context, msg []byte) {
		got <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	testMsg := []byte(`{"stream":"btcusdc@ticker"}`)
	if err := client.Send(ctx, testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-got:
		if string(msg) != string(testMsg) {
			t.Errorf("expected %s, got %s", testMsg, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestClient_MessagesInArrivalOrder(t *testing.T) {
	const n = 50
	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for i := 0; i < n; i++ {
			msg, _ := json.Marshal(map[string]int{"seq": i})
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
		drainHandler(conn)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	var mu sync.Mutex
	var seqs []int
	done := make(chan struct{})
	client.OnMessage(func(_ context.Context, msg []byte) {
		var m struct{ Seq int }
		_ = json.Unmarshal(msg, &m)
		mu.Lock()
		seqs = append(seqs, m.Seq)
		if len(seqs) == n {
			close(done)
		}
		mu.Unlock()
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, s := range seqs {
		if s != i {
			t.Fatalf("message %d has seq %d", i, s)
		}
	}
}

func TestClient_StateChangeHandler(t *testing.T) {
	server := mockWSServer(t, drainHandler)
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	var states []State
	var statesMu sync.Mutex
	client.OnStateChange(func(state State, err error) {
		statesMu.Lock()
		states = append(states, state)
		statesMu.Unlock()
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	statesMu.Lock()
	defer statesMu.Unlock()

	if len(states) < 2 {
		t.Fatalf("expected at least 2 state changes, got %d: %v", len(states), states)
	}
	if states[0] != StateConnecting {
		t.Errorf("expected first state to be Connecting, got %v", states[0])
	}
	if states[1] != StateConnected {
		t.Errorf("expected second state to be Connected, got %v", states[1])
	}
}

func TestClient_GracefulClose(t *testing.T) {
	server := mockWSServer(t, drainHandler)
	defer server.Close()

	cfg := DefaultConfig(wsURL(server), "test")
	cfg.PingInterval = 0
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if client.State() != StateClosed {
		t.Errorf("expected state %v, got %v", StateClosed, client.State())
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close should not error: %v", err)
	}
	if err := client.Connect(context.Background()); err == nil {
		t.Error("Connect after Close should fail")
	}
}

func TestClient_ConcurrentSend(t *testing.T) {
	var msgCount atomic.Int32

	server := mockWSServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
			msgCount.Add(1)
		}
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	const numGoroutines = 10
	const msgsPerGoroutine = 5
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < msgsPerGoroutine; j++ {
				if err := client.SendJSON(ctx, map[string]int{"goroutine": id, "msg": j}); err != nil {
					t.Errorf("SendJSON failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	expected := int32(numGoroutines * msgsPerGoroutine)
	deadline := time.Now().Add(2 * time.Second)
	for msgCount.Load() < expected && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := msgCount.Load(); got != expected {
		t.Errorf("expected %d messages, server received %d", expected, got)
	}
}

func TestClient_MaxMessageSize(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		large := []byte(strings.Repeat("A", 1024*1024))
		conn.Write(context.Background(), websocket.MessageText, large)
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	client := newTestClient(t, wsURL(server), func(c *Config) {
		c.MaxMessageSize = 100
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitForState(t, client, StateDisconnected)
}

func TestClient_ReconnectsOnceAfterFixedDelay(t *testing.T) {
	var conns atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if conns.Add(1) == 1 {
			return // drop the first connection immediately
		}
		drainHandler(conn)
	})
	defer server.Close()

	clock := clockwork.NewFakeClock()
	client := newTestClient(t, wsURL(server), func(c *Config) {
		c.Clock = clock
		c.ReconnectDelay = 5 * time.Second
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitForState(t, client, StateDisconnected)
	clock.BlockUntil(1)

	clock.Advance(4 * time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := conns.Load(); got != 1 {
		t.Fatalf("reconnected before the delay elapsed: %d connections", got)
	}

	clock.Advance(time.Second)
	waitForState(t, client, StateConnected)

	time.Sleep(100 * time.Millisecond)
	if got := conns.Load(); got != 2 {
		t.Errorf("expected exactly 2 connections, got %d", got)
	}
	if got := client.Reconnects(); got != 1 {
		t.Errorf("reconnects = %d, want 1", got)
	}
}

func TestClient_StartRetriesFailedDialAtFixedDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	client := newTestClient(t, "ws://127.0.0.1:1", func(c *Config) {
		c.Clock = clock
		c.ReconnectDelay = 5 * time.Second
		c.DialTimeout = time.Second
	})

	var attempts atomic.Int32
	client.OnStateChange(func(s State, _ error) {
		if s == StateConnecting {
			attempts.Add(1)
		}
	})

	client.Start()

	clock.BlockUntil(1)
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d after first dial, want 1", got)
	}

	clock.Advance(5 * time.Second)
	clock.BlockUntil(1)
	if got := attempts.Load(); got != 2 {
		t.Fatalf("attempts = %d after one delay, want 2", got)
	}
}
