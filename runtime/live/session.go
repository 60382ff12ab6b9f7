package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/audio"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/metrics/prometheus"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Close reasons, also used as metric labels.
const (
	reasonClient     = "client"
	reasonServer     = "server"
	reasonError      = "error"
	reasonCanceled   = "canceled"
	reasonMicrophone = "microphone"
	reasonConnect    = "connect"
)

// dropLogInterval throttles the dropped-block warning.
const dropLogInterval = 5 * time.Second

var (
	errServerClosed = errors.New("server closed the live channel")
	errCaptureEnded = errors.New("microphone stream ended")
)

// Stats counts audio frames moved by a session.
type Stats struct {
	Sent     int64
	Dropped  int64
	Received int64
}

// Session is one live duplex voice session. Every teardown path (Close, server
// close, pump error, context cancellation) runs the same cleanup exactly once.
type Session struct {
	id      string
	cfg     Config
	onAudio func(string)
	onClose func()
	player  *audio.Player

	mu      sync.Mutex
	state   State
	capture Capture
	channel Channel
	cancel  context.CancelFunc

	// playMu orders Play against player Close.
	playMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	sent     atomic.Int64
	dropped  atomic.Int64
	received atomic.Int64
	dropLog  rate.Sometimes
}

// New creates an idle session. onAudio receives every inbound base64 PCM frame;
// onClose fires only when the session ends without the caller asking for it.
func New(cfg Config, onAudio func(string), onClose func()) *Session {
	cfg.defaults()
	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		onAudio: onAudio,
		onClose: onClose,
		done:    make(chan struct{}),
		dropLog: rate.Sometimes{First: 1, Interval: dropLogInterval},
	}
	if cfg.OutputFactory != nil {
		s.player = audio.NewPlayer(cfg.OutputFactory, cfg.OutputRate)
	}
	return s
}

// Connect creates a session and starts it, returning once the channel is open.
func Connect(ctx context.Context, cfg Config, onAudio func(string), onClose func()) (*Session, error) {
	s := New(cfg, onAudio, onClose)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stats returns frame counters.
func (s *Session) Stats() Stats {
	return Stats{
		Sent:     s.sent.Load(),
		Dropped:  s.dropped.Load(),
		Received: s.received.Load(),
	}
}

// Player returns the playback scheduler, or nil when no output is configured.
func (s *Session) Player() *audio.Player {
	return s.player
}

// Start acquires the microphone, opens the channel and waits for the setup
// acknowledgement. It returns ErrClosed if Close is called before the session
// opens. Canceling ctx ends the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateIdle:
	default:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateConnecting
	s.mu.Unlock()

	runCtx = logger.WithSessionID(logger.WithComponent(runCtx, "live"), s.id)

	if err := s.cfg.validate(); err != nil {
		return s.fail(runCtx, reasonConnect, err)
	}

	logger.InfoContext(runCtx, "live session connecting", "model", s.cfg.Model, "voice", s.cfg.Voice)

	capture, err := s.cfg.Microphone.Open(runCtx, s.cfg.CaptureRate, s.cfg.BlockSize)
	if err != nil {
		return s.fail(runCtx, reasonMicrophone, fmt.Errorf("%w: %w", ErrMicrophone, err))
	}
	if !s.attach(func() { s.capture = capture }) {
		_ = capture.Close()
		return ErrClosed
	}

	if s.player != nil {
		s.playMu.Lock()
		err = s.player.Initialize(runCtx)
		s.playMu.Unlock()
		if err != nil {
			return s.fail(runCtx, reasonConnect, fmt.Errorf("open audio output: %w", err))
		}
	}

	header := http.Header{}
	header.Set(apiKeyHeader, s.cfg.APIKey)
	ch, err := s.cfg.Dialer(runCtx, s.cfg.URL, header)
	if err != nil {
		return s.fail(runCtx, reasonConnect, s.transportError(err))
	}
	if !s.attach(func() { s.channel = ch }) {
		_ = ch.Close()
		return ErrClosed
	}

	if err := ch.Send(newSetupMessage(&s.cfg)); err != nil {
		return s.fail(runCtx, reasonConnect, s.transportError(fmt.Errorf("send setup: %w", err)))
	}
	if err := s.awaitSetup(runCtx, ch); err != nil {
		return s.fail(runCtx, reasonConnect, s.transportError(err))
	}

	if !s.attach(func() { s.state = StateOpen }) {
		return ErrClosed
	}
	if n := discardBacklog(capture.Blocks()); n > 0 {
		logger.DebugContext(runCtx, "discarded audio captured while connecting", "blocks", n)
	}
	prometheus.RecordLiveSessionStart()
	logger.InfoContext(runCtx, "live session open")

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.sendLoop(gctx, capture, ch) })
	g.Go(func() error { return s.receiveLoop(gctx, ch) })
	go s.finish(runCtx, g)

	return nil
}

// Close tears the session down. It is safe to call at any time, repeatedly,
// and while Start is still connecting. onClose is not invoked.
func (s *Session) Close() error {
	s.shutdown(context.Background(), reasonClient, false)
	return nil
}

// attach runs fn under the session lock unless the session is already closed.
func (s *Session) attach(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	fn()
	return true
}

// fail tears down a session that never opened. A caller Close wins over err.
func (s *Session) fail(ctx context.Context, reason string, err error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	logger.ErrorContext(ctx, "live session failed to open",
		"reason", reason, "error", logger.RedactSensitiveData(err.Error()))
	prometheus.RecordLiveSessionFailure(reason)
	s.shutdown(ctx, reason, false)
	return err
}

func (s *Session) transportError(err error) error {
	return &providers.TransportError{
		Provider: providers.ProviderGemini,
		Err:      providers.Classify(providers.ProviderGemini, err),
	}
}

// awaitSetup reads frames until the server acknowledges the setup message.
func (s *Session) awaitSetup(ctx context.Context, ch Channel) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SetupTimeout)
	defer cancel()

	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			return fmt.Errorf("waiting for setup: %w", err)
		}
		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.WarnContext(ctx, "ignoring malformed live message", "error", err)
			continue
		}
		if msg.SetupComplete != nil {
			return nil
		}
	}
}

// finish waits for the pumps and tears down on whichever path ended them.
func (s *Session) finish(ctx context.Context, g *errgroup.Group) {
	err := g.Wait()
	if s.closed.Load() {
		return
	}

	switch {
	case ctx.Err() != nil:
		s.shutdown(ctx, reasonCanceled, false)
	case errors.Is(err, errServerClosed):
		s.shutdown(ctx, reasonServer, true)
	default:
		logger.ErrorContext(ctx, "live session error", "error", err)
		s.shutdown(ctx, reasonError, true)
	}
}

// discardBacklog empties the blocks buffered before the session opened and
// reports how many it dropped. A closed capture is left for sendLoop to see.
func discardBacklog(blocks <-chan []float32) int {
	n := 0
	for range cap(blocks) {
		select {
		case _, ok := <-blocks:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
	return n
}

func (s *Session) sendLoop(ctx context.Context, capture Capture, ch Channel) error {
	mimeType := captureMIMEType(s.cfg.CaptureRate)
	blocks := capture.Blocks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-blocks:
			if !ok {
				return errCaptureEnded
			}
			s.sendBlock(ctx, ch, mimeType, block)
		}
	}
}

// sendBlock sends one captured block without waiting. A busy or failing channel
// drops the block.
func (s *Session) sendBlock(ctx context.Context, ch Channel, mimeType string, block []float32) {
	if len(block) == 0 {
		return
	}
	err := ch.TrySend(newAudioMessage(mimeType, audio.EncodeFloat32ToBase64(block)))
	if err == nil {
		s.sent.Add(1)
		prometheus.RecordAudioFrame(prometheus.DirectionSent, prometheus.FrameOK)
		return
	}

	dropped := s.dropped.Add(1)
	status := prometheus.FrameError
	if errors.Is(err, ErrChannelBusy) {
		status = prometheus.FrameDropped
	}
	prometheus.RecordAudioFrame(prometheus.DirectionSent, status)
	s.dropLog.Do(func() {
		logger.WarnContext(ctx, "dropping microphone block", "dropped_total", dropped, "error", err)
	})
}

func (s *Session) receiveLoop(ctx context.Context, ch Channel) error {
	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isServerClose(err) {
				return errServerClosed
			}
			return fmt.Errorf("live receive: %w", err)
		}
		s.handleMessage(ctx, data)
	}
}

func (s *Session) handleMessage(ctx context.Context, data []byte) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.WarnContext(ctx, "ignoring malformed live message", "error", err)
		return
	}
	if msg.GoAway != nil {
		logger.WarnContext(ctx, "live server going away", "time_left", msg.GoAway.TimeLeft)
	}
	for _, frame := range msg.audioFrames() {
		s.deliver(ctx, frame)
	}
	if msg.ServerContent != nil && msg.ServerContent.TurnComplete {
		logger.DebugContext(ctx, "live turn complete")
	}
}

// deliver hands one inbound frame to the caller and the playback scheduler.
func (s *Session) deliver(ctx context.Context, frame string) {
	if s.closed.Load() {
		return
	}
	s.received.Add(1)
	if s.onAudio != nil {
		s.onAudio(frame)
	}
	if s.player == nil {
		prometheus.RecordAudioFrame(prometheus.DirectionReceived, prometheus.FrameOK)
		return
	}

	s.playMu.Lock()
	defer s.playMu.Unlock()
	if s.closed.Load() {
		return
	}
	if err := s.player.Play(ctx, frame); err != nil {
		prometheus.RecordAudioFrame(prometheus.DirectionReceived, prometheus.FrameError)
		logger.WarnContext(ctx, "failed to play live audio frame", "error", err)
		return
	}
	prometheus.RecordAudioFrame(prometheus.DirectionReceived, prometheus.FrameOK)
}

// shutdown releases every resource exactly once. notify selects whether onClose
// fires, which happens only for the call that performed the teardown.
func (s *Session) shutdown(ctx context.Context, reason string, notify bool) {
	fired := false
	s.closeOnce.Do(func() {
		fired = true
		s.closed.Store(true)

		s.mu.Lock()
		wasOpen := s.state == StateOpen
		s.state = StateClosed
		capture, ch, cancel := s.capture, s.channel, s.cancel
		s.capture, s.channel = nil, nil
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if capture != nil {
			if err := capture.Close(); err != nil {
				logger.WarnContext(ctx, "failed to release microphone", "error", err)
			}
		}
		if ch != nil {
			_ = ch.Close()
		}
		if s.player != nil {
			s.playMu.Lock()
			if err := s.player.Close(); err != nil {
				logger.WarnContext(ctx, "failed to close audio output", "error", err)
			}
			s.playMu.Unlock()
		}

		if wasOpen {
			prometheus.RecordLiveSessionEnd(reason)
			stats := s.Stats()
			logger.InfoContext(ctx, "live session closed", "session_id", s.id, "reason", reason,
				"sent", stats.Sent, "dropped", stats.Dropped, "received", stats.Received)
		}
		close(s.done)
	})
	if fired && notify && s.onClose != nil {
		s.onClose()
	}
}

func isServerClose(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) || errors.Is(err, io.EOF)
}
