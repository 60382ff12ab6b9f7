package audio

import (
	"context"
	"errors"
	"math"
	"sync"
)

// ContextState mirrors the lifecycle of an audio output device.
type ContextState int

// Output context states.
const (
	ContextSuspended ContextState = iota
	ContextRunning
	ContextClosed
)

func (s ContextState) String() string {
	switch s {
	case ContextSuspended:
		return "suspended"
	case ContextRunning:
		return "running"
	case ContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrContextClosed is returned when scheduling on a closed output context.
var ErrContextClosed = errors.New("audio output context closed")

// OutputContext is an audio clock that plays buffers at absolute times.
type OutputContext interface {
	// CurrentTime returns the clock position in seconds.
	CurrentTime() float64
	State() ContextState
	Resume(ctx context.Context) error
	// Schedule queues samples to start playing at the given clock time.
	// Times already in the past play immediately.
	Schedule(samples []float32, at float64) error
	Close() error
}

// OutputFactory opens an OutputContext at the given sample rate.
type OutputFactory func(sampleRate int) (OutputContext, error)

type scheduledBuffer struct {
	start   int64
	samples []float32
}

// ScheduledBuffer describes a buffer queued on a TimelineContext.
type ScheduledBuffer struct {
	Start    float64
	Duration float64
}

// TimelineContext is an OutputContext whose clock is the number of samples
// rendered so far. A suspended timeline does not advance.
type TimelineContext struct {
	mu        sync.Mutex
	rate      int
	pos       int64
	state     ContextState
	queue     []scheduledBuffer
	history   []ScheduledBuffer
	resumes   int
	closes    int
	onClose   func()
	keepTrace bool
}

// NewTimelineContext creates a running timeline at sampleRate.
func NewTimelineContext(sampleRate int) *TimelineContext {
	return &TimelineContext{rate: sampleRate, state: ContextRunning}
}

// NewManualContext creates a timeline that records every scheduled buffer,
// for tests that step the clock with Advance. It starts suspended when
// suspended is true.
func NewManualContext(sampleRate int, suspended bool) *TimelineContext {
	c := NewTimelineContext(sampleRate)
	c.keepTrace = true
	if suspended {
		c.state = ContextSuspended
	}
	return c
}

// OnClose registers fn to run when the context is closed.
func (c *TimelineContext) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// SampleRate returns the timeline rate.
func (c *TimelineContext) SampleRate() int {
	return c.rate
}

// CurrentTime implements OutputContext.
func (c *TimelineContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.pos) / float64(c.rate)
}

// State implements OutputContext.
func (c *TimelineContext) State() ContextState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resume implements OutputContext.
func (c *TimelineContext) Resume(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ContextClosed {
		return ErrContextClosed
	}
	c.resumes++
	c.state = ContextRunning
	return nil
}

// Suspend pauses the clock.
func (c *TimelineContext) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ContextRunning {
		c.state = ContextSuspended
	}
}

// Schedule implements OutputContext.
func (c *TimelineContext) Schedule(samples []float32, at float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ContextClosed {
		return ErrContextClosed
	}
	start := int64(math.Round(at * float64(c.rate)))
	if start < c.pos {
		start = c.pos
	}
	buf := make([]float32, len(samples))
	copy(buf, samples)

	// keep the queue ordered by start
	i := len(c.queue)
	for i > 0 && c.queue[i-1].start > start {
		i--
	}
	c.queue = append(c.queue, scheduledBuffer{})
	copy(c.queue[i+1:], c.queue[i:])
	c.queue[i] = scheduledBuffer{start: start, samples: buf}

	if c.keepTrace {
		c.history = append(c.history, ScheduledBuffer{
			Start:    float64(start) / float64(c.rate),
			Duration: Duration(len(samples), c.rate),
		})
	}
	return nil
}

// Render mixes the scheduled buffers into out and advances the clock by
// len(out) samples. A context that is not running renders silence and keeps
// its position.
func (c *TimelineContext) Render(out []float32) {
	clear(out)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ContextRunning {
		return
	}
	c.mixLocked(out, int64(len(out)))
}

// Advance runs the clock forward by seconds, discarding the rendered audio.
func (c *TimelineContext) Advance(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ContextRunning {
		return
	}
	c.mixLocked(nil, int64(math.Round(seconds*float64(c.rate))))
}

func (c *TimelineContext) mixLocked(out []float32, n int64) {
	end := c.pos + n
	kept := c.queue[:0]
	for _, b := range c.queue {
		bEnd := b.start + int64(len(b.samples))
		if out != nil && b.start < end && bEnd > c.pos {
			from := max(b.start, c.pos)
			to := min(bEnd, end)
			for t := from; t < to; t++ {
				out[t-c.pos] += b.samples[t-b.start]
			}
		}
		if bEnd > end {
			kept = append(kept, b)
		}
	}
	clear(c.queue[len(kept):])
	c.queue = kept
	c.pos = end
}

// Pending returns the number of buffers that have not finished playing.
func (c *TimelineContext) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Scheduled returns every buffer scheduled on a manual context.
func (c *TimelineContext) Scheduled() []ScheduledBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ScheduledBuffer, len(c.history))
	copy(out, c.history)
	return out
}

// Resumes returns how many times Resume was called.
func (c *TimelineContext) Resumes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumes
}

// Closes returns how many times Close took effect.
func (c *TimelineContext) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Close implements OutputContext. Closing twice is a no-op.
func (c *TimelineContext) Close() error {
	c.mu.Lock()
	if c.state == ContextClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = ContextClosed
	c.closes++
	c.queue = nil
	fn := c.onClose
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}
