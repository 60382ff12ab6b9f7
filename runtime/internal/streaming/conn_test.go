package streaming

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsServer upgrades every request and hands the server side to handle.
func wsServer(t *testing.T, handle func(*websocket.Conn, *http.Request)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(ws *websocket.Conn, _ *http.Request) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := ws.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

func dial(t *testing.T, cfg DialConfig) *Conn {
	t.Helper()
	c, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDial_SendAndReceive(t *testing.T) {
	c := dial(t, DialConfig{URL: wsServer(t, echo)})

	require.NoError(t, c.Send(map[string]string{"realtimeInput": "chunk"}))
	data, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"realtimeInput":"chunk"}`, string(data))
}

func TestDial_SendsHandshakeHeaders(t *testing.T) {
	got := make(chan string, 1)
	url := wsServer(t, func(_ *websocket.Conn, r *http.Request) {
		got <- r.Header.Get("x-goog-api-key")
	})

	dial(t, DialConfig{URL: url, Headers: http.Header{"x-goog-api-key": {"secret"}}})
	assert.Equal(t, "secret", <-got)
}

func TestDial_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), DialConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestDial_RetriesThenGivesUp(t *testing.T) {
	start := time.Now()
	_, err := Dial(context.Background(), DialConfig{
		URL:         "ws://127.0.0.1:1",
		DialTimeout: time.Second,
		Attempts:    3,
		Backoff:     10 * time.Millisecond,
		MaxBackoff:  20 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDial_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, DialConfig{URL: "ws://127.0.0.1:1", Attempts: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_TrySendReportsBusy(t *testing.T) {
	c := dial(t, DialConfig{URL: wsServer(t, echo)})

	c.writeMu.Lock()
	assert.ErrorIs(t, c.TrySend("block"), ErrBusy)
	c.writeMu.Unlock()

	require.NoError(t, c.TrySend("block"))
	data, err := c.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `"block"`, string(data))
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c := dial(t, DialConfig{URL: wsServer(t, echo)})

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.ErrorIs(t, c.Send("late"), ErrClosed)
	assert.ErrorIs(t, c.TrySend("late"), ErrClosed)
	_, err := c.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConn_CloseUnblocksReceive(t *testing.T) {
	c := dial(t, DialConfig{URL: wsServer(t, func(ws *websocket.Conn, _ *http.Request) {
		_, _, _ = ws.ReadMessage()
	})})

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Receive(context.Background())
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestConn_ReceiveContextCanceled(t *testing.T) {
	c := dial(t, DialConfig{URL: wsServer(t, func(ws *websocket.Conn, _ *http.Request) {
		_, _, _ = ws.ReadMessage()
	})})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_ServerCloseEndsReceive(t *testing.T) {
	c := dial(t, DialConfig{URL: wsServer(t, func(ws *websocket.Conn, _ *http.Request) {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})})

	_, err := c.Receive(context.Background())
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestConn_Heartbeat(t *testing.T) {
	pings := make(chan struct{}, 4)
	url := wsServer(t, func(ws *websocket.Conn, _ *http.Request) {
		ws.SetPingHandler(func(string) error {
			select {
			case pings <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	dial(t, DialConfig{URL: url, Heartbeat: 10 * time.Millisecond})
	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestJitter(t *testing.T) {
	for range 100 {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
