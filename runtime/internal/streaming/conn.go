// Package streaming is the WebSocket transport under live voice sessions.
//
// Dial returns an open Conn or an error; there is no half-connected state.
// Writes are serialized, TrySend refuses to wait behind another write, and a
// heartbeat keeps idle connections alive while the caller is only listening.
package streaming

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
)

// Defaults applied by Dial to zero DialConfig fields.
const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxMessageSize = 16 << 20
	DefaultAttempts       = 1
	DefaultBackoff        = 500 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
	closeGrace            = time.Second
)

var (
	// ErrClosed is returned by sends and receives after Close.
	ErrClosed = errors.New("websocket is closed")

	// ErrBusy is returned by TrySend when another write is in progress.
	ErrBusy = errors.New("websocket write in progress")
)

// DialConfig describes the endpoint and connection policy.
type DialConfig struct {
	URL     string
	Headers http.Header

	DialTimeout    time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Attempts is the number of handshakes tried before giving up.
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration

	// Heartbeat is the ping interval. Zero disables pings.
	Heartbeat time.Duration
}

func (c DialConfig) withDefaults() DialConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = DefaultBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	return c
}

// Conn is an open WebSocket connection.
type Conn struct {
	ws        *websocket.Conn
	writeWait time.Duration

	writeMu sync.Mutex // gorilla/websocket allows one writer at a time
	once    sync.Once
	done    chan struct{}
}

// Dial performs the handshake, retrying failed attempts with jittered
// exponential backoff. ctx bounds the handshake only; the heartbeat runs
// until Close.
func Dial(ctx context.Context, cfg DialConfig) (*Conn, error) {
	cfg = cfg.withDefaults()
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		Proxy:            http.ProxyFromEnvironment,
	}

	var lastErr error
	delay := cfg.Backoff
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter(delay)):
			}
			delay = min(delay*2, cfg.MaxBackoff)
		}

		ws, err := handshake(ctx, &dialer, cfg)
		if err == nil {
			c := &Conn{ws: ws, writeWait: cfg.WriteWait, done: make(chan struct{})}
			if cfg.Heartbeat > 0 {
				go c.heartbeat(cfg.Heartbeat)
			}
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logger.WarnContext(ctx, "websocket handshake failed",
			"attempt", attempt, "attempts", cfg.Attempts, "error", err)
	}
	if cfg.Attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", cfg.Attempts, lastErr)
}

func handshake(ctx context.Context, dialer *websocket.Dialer, cfg DialConfig) (*websocket.Conn, error) {
	logger.DebugContext(ctx, "dialing websocket", "url", cfg.URL)
	ws, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	ws.SetReadLimit(cfg.MaxMessageSize)
	return ws, nil
}

// jitter spreads d by up to 25% either way.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.25
	return time.Duration(float64(d) + spread*(2*rand.Float64()-1))
}

// Send JSON-encodes msg and writes it, waiting for any write in progress.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.write(websocket.TextMessage, data)
}

// TrySend is Send without waiting: it returns ErrBusy when another write
// holds the connection.
func (c *Conn) TrySend(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if !c.writeMu.TryLock() {
		return ErrBusy
	}
	defer c.writeMu.Unlock()
	return c.write(websocket.TextMessage, data)
}

// write must be called with writeMu held.
func (c *Conn) write(messageType int, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Receive blocks for the next text or binary message. Cancelling ctx
// abandons the wait; the pending read completes when the connection closes.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, ErrClosed
	default:
	}

	type frame struct {
		kind int
		data []byte
		err  error
	}
	ch := make(chan frame, 1)
	go func() {
		kind, data, err := c.ws.ReadMessage()
		ch <- frame{kind, data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	case f := <-ch:
		switch {
		case f.err != nil:
			return nil, f.err
		case f.kind != websocket.TextMessage && f.kind != websocket.BinaryMessage:
			return nil, fmt.Errorf("unexpected message type: %d", f.kind)
		}
		return f.data, nil
	}
}

func (c *Conn) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.write(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				if !errors.Is(err, ErrClosed) {
					logger.Warn("websocket ping failed", "error", err)
				}
				return
			}
		}
	}
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close sends a normal close frame and releases the connection. Repeated
// calls return nil.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(closeGrace))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		close(c.done)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
