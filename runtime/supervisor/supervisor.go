// Package supervisor bounds streaming provider calls in time.
//
// Every call races two timers against the provider: a total timer and a stall
// timer re-armed by transport activity. The first to finish wins; the provider
// context is canceled and awaited before the caller sees the error, and no
// token is delivered after the terminal callback.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/metrics/prometheus"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/telemetry"
)

// Default timeouts.
const (
	DefaultTotalTimeout = 90 * time.Second
	DefaultStallTimeout = 30 * time.Second
)

// errNoTerminal is reported when a provider returns without a terminal callback.
var errNoTerminal = errors.New("provider returned without completing the stream")

// Config configures a Supervisor.
type Config struct {
	TotalTimeout time.Duration
	StallTimeout time.Duration

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Supervisor runs provider streams under timeouts. It is safe for concurrent use.
type Supervisor struct {
	total  time.Duration
	stall  time.Duration
	tracer trace.Tracer
}

// New creates a Supervisor. Zero timeouts take the defaults.
func New(cfg Config) *Supervisor {
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = DefaultTotalTimeout
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = DefaultStallTimeout
	}
	return &Supervisor{
		total:  cfg.TotalTimeout,
		stall:  cfg.StallTimeout,
		tracer: telemetry.Tracer(cfg.TracerProvider),
	}
}

// result is the terminal outcome of one provider call.
type result struct {
	text string
	err  error
}

// guard admits tokens until the first terminal event claims it.
type guard struct {
	mu   sync.Mutex
	done bool
}

// forward runs fn unless the call has already terminated.
func (g *guard) forward(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	fn()
	return true
}

// claim marks the call terminated. Only the first caller gets true.
func (g *guard) claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	return true
}

// Run streams req through p. Tokens reach cb.OnToken in order and exactly one
// of cb.OnComplete or cb.OnError is invoked before Run returns. The returned
// error is the one passed to OnError, or nil on completion.
func (s *Supervisor) Run(ctx context.Context, p providers.Provider, req *providers.Request, cb providers.Callbacks) error {
	id := string(p.ID())
	requestID := uuid.NewString()
	ctx = logger.WithRequestID(logger.WithProvider(ctx, id), requestID)
	ctx, span := telemetry.StartStreamSpan(ctx, s.tracer, id, req.Model, requestID)
	start := time.Now()
	logger.StreamStart(ctx, id, req.Model, len(req.Message), "attachments", len(req.Attachments))

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		g        guard
		tokens   int
		firstTok sync.Once
	)
	activity := make(chan struct{}, 1)
	final := make(chan result, 1)
	poke := func() {
		select {
		case activity <- struct{}{}:
		default:
		}
	}
	terminate := func(r result) {
		if g.claim() {
			final <- r
		}
	}

	wrapped := providers.Callbacks{
		OnToken: func(token string) {
			poke()
			g.forward(func() {
				tokens++
				firstTok.Do(func() { prometheus.RecordFirstToken(id, time.Since(start).Seconds()) })
				cb.Token(token)
			})
		},
		OnActivity: poke,
		OnComplete: func(full string) { terminate(result{text: full}) },
		OnError:    func(err error) { terminate(result{err: err}) },
	}

	providerDone := make(chan struct{})
	go func() {
		defer close(providerDone)
		p.Stream(streamCtx, req, wrapped)
		terminate(result{err: errNoTerminal})
	}()

	totalTimer := time.NewTimer(s.total)
	defer totalTimer.Stop()
	stallTimer := time.NewTimer(s.stall)
	defer stallTimer.Stop()

	// abort wins the call for a supervisor-side failure, or yields to a
	// terminal result that got there first.
	abort := func(err error) result {
		if !g.claim() {
			return <-final
		}
		cancel()
		<-providerDone
		return result{err: err}
	}

	var r result
loop:
	for {
		select {
		case r = <-final:
			break loop
		case <-activity:
			stallTimer.Reset(s.stall)
		case <-stallTimer.C:
			r = abort(&providers.StallError{Timeout: s.stall})
			break loop
		case <-totalTimer.C:
			r = abort(&providers.TotalTimeoutError{Timeout: s.total})
			break loop
		case <-ctx.Done():
			r = abort(ctx.Err())
			break loop
		}
	}

	cancel()
	<-providerDone

	// tokens is only written under the guard, which is now closed.
	g.mu.Lock()
	chunks := tokens
	g.mu.Unlock()

	return s.deliver(ctx, span, p.ID(), start, chunks, r, cb)
}

func (s *Supervisor) deliver(
	ctx context.Context, span trace.Span, id providers.ProviderID,
	start time.Time, chunks int, r result, cb providers.Callbacks,
) error {
	elapsed := time.Since(start)
	prometheus.RecordStreamTokens(string(id), chunks)

	if r.err == nil {
		prometheus.RecordStream(string(id), prometheus.OutcomeComplete, elapsed.Seconds())
		telemetry.EndStreamSpan(span, prometheus.OutcomeComplete, len(r.text), chunks, nil)
		logger.StreamComplete(ctx, string(id), len(r.text), "tokens", chunks, "duration", elapsed)
		cb.Complete(r.text)
		return nil
	}

	err := providers.Classify(id, r.err)
	outcome := outcomeOf(err)
	prometheus.RecordStream(string(id), outcome, elapsed.Seconds())
	telemetry.EndStreamSpan(span, outcome, 0, chunks, err)
	logger.StreamError(ctx, string(id), err, "outcome", outcome, "duration", elapsed)
	cb.Fail(err)
	return err
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, providers.ErrStall):
		return prometheus.OutcomeStall
	case errors.Is(err, providers.ErrTotalTimeout):
		return prometheus.OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return prometheus.OutcomeCanceled
	default:
		return prometheus.OutcomeError
	}
}
