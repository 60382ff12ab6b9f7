package audio

import (
	"context"
	"fmt"
	"sync"
)

// PlayerState is the lifecycle state of a Player.
type PlayerState int

// Player states.
const (
	PlayerUninitialized PlayerState = iota
	PlayerInitialized
	PlayerClosed
)

func (s PlayerState) String() string {
	switch s {
	case PlayerUninitialized:
		return "uninitialized"
	case PlayerInitialized:
		return "initialized"
	case PlayerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Player schedules sequential PCM frames on an output clock with no gaps and
// no overlap. It is safe for concurrent use; Play calls are serialized.
type Player struct {
	mu            sync.Mutex
	factory       OutputFactory
	sampleRate    int
	out           OutputContext
	nextStartTime float64
	state         PlayerState
}

// NewPlayer creates a player that opens its output through factory at sampleRate.
// A non-positive rate selects SampleRatePlayback.
func NewPlayer(factory OutputFactory, sampleRate int) *Player {
	if sampleRate <= 0 {
		sampleRate = SampleRatePlayback
	}
	return &Player{factory: factory, sampleRate: sampleRate}
}

// Initialize opens the output context if needed and resumes it when suspended.
// Calling it on an initialized player is a no-op. A closed player is reopened.
func (p *Player) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initializeLocked(ctx)
}

func (p *Player) initializeLocked(ctx context.Context) error {
	if p.state == PlayerInitialized {
		return nil
	}
	out, err := p.factory(p.sampleRate)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	if out.State() == ContextSuspended {
		if err := out.Resume(ctx); err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to resume audio output: %w", err)
		}
	}
	p.out = out
	p.nextStartTime = 0
	p.state = PlayerInitialized
	return nil
}

// Play decodes a base64 PCM16 frame and schedules it right after the previous one.
func (p *Player) Play(ctx context.Context, frame string) error {
	samples, err := DecodeBase64ToFloat32(frame)
	if err != nil {
		return err
	}
	return p.PlaySamples(ctx, samples)
}

// PlaySamples schedules already-decoded samples.
func (p *Player) PlaySamples(ctx context.Context, samples []float32) error {
	if len(samples) == 0 {
		return ErrEmptyAudioData
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.initializeLocked(ctx); err != nil {
		return err
	}
	start := max(p.nextStartTime, p.out.CurrentTime())
	if err := p.out.Schedule(samples, start); err != nil {
		return fmt.Errorf("failed to schedule audio: %w", err)
	}
	p.nextStartTime = start + Duration(len(samples), p.sampleRate)
	return nil
}

// NextStartTime returns the clock time at which the next frame will start.
func (p *Player) NextStartTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextStartTime
}

// State returns the current lifecycle state.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SampleRate returns the playback rate.
func (p *Player) SampleRate() int {
	return p.sampleRate
}

// Close releases the output context and resets the clock. Safe to call repeatedly.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != PlayerInitialized {
		if p.state == PlayerUninitialized {
			p.state = PlayerClosed
		}
		return nil
	}
	err := p.out.Close()
	p.out = nil
	p.nextStartTime = 0
	p.state = PlayerClosed
	return err
}
