// Package live implements the full-duplex voice session: microphone blocks are
// encoded and streamed to the Gemini Live endpoint while synthesized audio is
// decoded and scheduled for gapless playback.
package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/audio"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/internal/streaming"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// Defaults for the Gemini Live endpoint.
const (
	DefaultURL = "wss://generativelanguage.googleapis.com/ws/" +
		"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	DefaultModel        = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice        = "Zephyr"
	DefaultCaptureRate  = audio.SampleRateCapture
	DefaultBlockSize    = 4096
	DefaultOutputRate   = audio.SampleRatePlayback
	DefaultSetupTimeout = 10 * time.Second
	DefaultHeartbeat    = 20 * time.Second
)

// apiKeyHeader carries the API key on the WebSocket handshake.
const apiKeyHeader = "x-goog-api-key"

var (
	// ErrMicrophone is returned when the capture device cannot be opened.
	ErrMicrophone = errors.New("microphone access is required for live mode")

	// ErrClosed is returned by Start when the session was closed before it opened.
	ErrClosed = errors.New("live session closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("live session already started")

	// ErrChannelBusy reports an outbound block dropped because a write was in progress.
	ErrChannelBusy = streaming.ErrBusy
)

// Microphone opens a capture stream delivering fixed-size sample blocks.
type Microphone interface {
	Open(ctx context.Context, sampleRate, blockSize int) (Capture, error)
}

// Capture is an open microphone stream. Close releases the device.
type Capture interface {
	Blocks() <-chan []float32
	Close() error
}

// Channel is the bidirectional message channel to the voice endpoint.
type Channel interface {
	Send(msg any) error
	TrySend(msg any) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a Channel.
type Dialer func(ctx context.Context, url string, header http.Header) (Channel, error)

// Config configures a live session.
type Config struct {
	URL          string
	APIKey       string
	Model        string
	Voice        string
	SystemPrompt string

	CaptureRate int
	BlockSize   int
	OutputRate  int

	// SetupTimeout bounds the wait for the server's setup acknowledgement.
	SetupTimeout time.Duration

	Microphone Microphone

	// OutputFactory opens the playback context. When nil, inbound audio is only
	// handed to the onAudio callback.
	OutputFactory audio.OutputFactory

	// Dialer defaults to a gorilla/websocket connection.
	Dialer Dialer
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.CaptureRate <= 0 {
		c.CaptureRate = DefaultCaptureRate
	}
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.OutputRate <= 0 {
		c.OutputRate = DefaultOutputRate
	}
	if c.SetupTimeout <= 0 {
		c.SetupTimeout = DefaultSetupTimeout
	}
	if c.Dialer == nil {
		c.Dialer = DialWebSocket
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("gemini %w, check your API key configuration", providers.ErrNotInitialized)
	}
	if c.Microphone == nil {
		return fmt.Errorf("%w: no microphone configured", ErrMicrophone)
	}
	return nil
}

// modelName returns the model in resource form.
func (c *Config) modelName() string {
	if strings.HasPrefix(c.Model, "models/") {
		return c.Model
	}
	return "models/" + c.Model
}

// DialWebSocket opens a WebSocket Channel with a heartbeat.
func DialWebSocket(ctx context.Context, url string, header http.Header) (Channel, error) {
	conn, err := streaming.Dial(ctx, streaming.DialConfig{
		URL:       url,
		Headers:   header,
		Heartbeat: DefaultHeartbeat,
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
