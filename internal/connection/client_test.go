package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*http.Request, *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(r, conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.PingInterval = 0
	return cfg
}

// drain reads until the peer goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type staticSigner struct {
	header http.Header
	err    error
}

func (s staticSigner) Sign(method, path string) (http.Header, error) {
	return s.header, s.err
}

func TestWebSocketTransport_SendReceive(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	ctx := context.Background()

	conn, err := transport.Open(ctx, wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormalClosure, "")

	want := `{"eventName":"x","headers":{},"payload":"hi"}`
	if err := conn.Send(ctx, want); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	frame, err := conn.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if frame.Kind != FrameText {
		t.Errorf("Kind = %v, want text", frame.Kind)
	}
	if frame.Text != want {
		t.Errorf("Text = %q, want %q", frame.Text, want)
	}
	if frame.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should not be zero")
	}
}

func TestWebSocketTransport_BinaryFrame(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		drain(conn)
	})
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	conn, err := transport.Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormalClosure, "")

	frame, err := conn.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if frame.Kind != FrameBinary {
		t.Errorf("Kind = %v, want binary", frame.Kind)
	}
	if len(frame.Data) != 2 {
		t.Errorf("len(Data) = %d, want 2", len(frame.Data))
	}
}

func TestWebSocketTransport_HandshakeHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	server := mockWSServer(t, func(r *http.Request, conn *websocket.Conn) {
		headers <- r.Header.Clone()
		drain(conn)
	})
	defer server.Close()

	cfg := testClientConfig()
	cfg.Header = map[string]string{"X-Client": "test"}
	signer := staticSigner{header: http.Header{"Access-Key": []string{"key-1"}}}

	transport := NewWebSocketTransport(cfg, signer, nil)
	conn, err := transport.Open(context.Background(), wsURL(server)+"/ws")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormalClosure, "")

	select {
	case h := <-headers:
		if got := h.Get("X-Client"); got != "test" {
			t.Errorf("X-Client = %q, want test", got)
		}
		if got := h.Get("Access-Key"); got != "key-1" {
			t.Errorf("Access-Key = %q, want key-1", got)
		}
		if got := h.Get("User-Agent"); !strings.HasPrefix(got, "relay/") {
			t.Errorf("User-Agent = %q, want relay/ prefix", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handshake")
	}
}

func TestWebSocketTransport_SignerError(t *testing.T) {
	signErr := errors.New("no key")
	transport := NewWebSocketTransport(testClientConfig(), staticSigner{err: signErr}, nil)

	_, err := transport.Open(context.Background(), "ws://127.0.0.1:1/ws")
	if !errors.Is(err, signErr) {
		t.Errorf("Open error = %v, want %v", err, signErr)
	}
}

func TestWebSocketTransport_DialRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	_, err := transport.Open(context.Background(), wsURL(server))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 403") {
		t.Errorf("error = %v, want status 403", err)
	}
}

func TestWebSocketTransport_CloseSendsCode(t *testing.T) {
	codes := make(chan int, 1)
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			codes <- ce.Code
			return
		}
		codes <- -1
	})
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	conn, err := transport.Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := conn.Close(CloseNormalClosure, "bye"); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	select {
	case code := <-codes:
		if code != CloseNormalClosure {
			t.Errorf("close code = %d, want %d", code, CloseNormalClosure)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close frame")
	}
}

func TestWebSocketTransport_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		drain(conn)
	})
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	conn, err := transport.Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// First close should succeed
	if err := conn.Close(CloseNormalClosure, ""); err != nil {
		t.Errorf("first Close failed: %v", err)
	}

	// Second close should be no-op
	if err := conn.Close(CloseNormalClosure, ""); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := conn.Send(context.Background(), "x"); err != ErrNotConnected {
		t.Errorf("Send after Close = %v, want ErrNotConnected", err)
	}
	if _, err := conn.Receive(context.Background()); err != ErrAlreadyClosed {
		t.Errorf("Receive after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestWebSocketTransport_ReceiveCancel(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		drain(conn)
	})
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	conn, err := transport.Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormalClosure, "")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = conn.Receive(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Receive error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Receive took %v after cancel", elapsed)
	}
}

func TestWebSocketTransport_ServerClose(t *testing.T) {
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"),
			time.Now().Add(time.Second),
		)
	})
	defer server.Close()

	transport := NewWebSocketTransport(testClientConfig(), nil, nil)
	conn, err := transport.Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormalClosure, "")

	_, err = conn.Receive(context.Background())
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("Receive error = %v, want going-away close", err)
	}
}

func TestWebSocketTransport_Heartbeat(t *testing.T) {
	pinged := make(chan struct{}, 1)
	server := mockWSServer(t, func(_ *http.Request, conn *websocket.Conn) {
		conn.SetPingHandler(func(string) error {
			select {
			case pinged <- struct{}{}:
			default:
			}
			return nil
		})
		drain(conn)
	})
	defer server.Close()

	cfg := testClientConfig()
	cfg.PingInterval = 20 * time.Millisecond

	transport := NewWebSocketTransport(cfg, nil, nil)
	conn, err := transport.Open(context.Background(), wsURL(server))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close(CloseNormalClosure, "")

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("server never saw a ping")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{State{Phase: PhaseIdle}, "Idle"},
		{State{Phase: PhaseConnecting}, "Connecting"},
		{State{Phase: PhaseOpen}, "Open"},
		{State{Phase: PhaseReconnecting, Attempt: 3}, "Reconnecting(3)"},
		{State{Phase: PhaseClosed}, "Closed"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDefaultConfigs(t *testing.T) {
	clientCfg := DefaultClientConfig()
	if clientCfg.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 10s", clientCfg.HandshakeTimeout)
	}
	if clientCfg.ReadLimit != 1<<20 {
		t.Errorf("ReadLimit = %d, want 1MiB", clientCfg.ReadLimit)
	}

	mgrCfg := DefaultManagerConfig()
	if mgrCfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", mgrCfg.MaxRetries)
	}
	if mgrCfg.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", mgrCfg.BaseDelay)
	}
	if mgrCfg.EventName != "message" {
		t.Errorf("EventName = %q, want message", mgrCfg.EventName)
	}
}
