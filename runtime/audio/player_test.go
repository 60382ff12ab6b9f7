package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manualFactory(t *testing.T, suspended bool) (OutputFactory, func() *TimelineContext) {
	t.Helper()
	var last *TimelineContext
	factory := func(rate int) (OutputContext, error) {
		last = NewManualContext(rate, suspended)
		return last, nil
	}
	return factory, func() *TimelineContext { return last }
}

func frame(n int, value float32) string {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return EncodeFloat32ToBase64(samples)
}

func TestPlayer_InitializeResumesSuspendedContext(t *testing.T) {
	factory, current := manualFactory(t, true)
	p := NewPlayer(factory, SampleRatePlayback)
	assert.Equal(t, PlayerUninitialized, p.State())

	require.NoError(t, p.Initialize(context.Background()))
	require.NoError(t, p.Initialize(context.Background()))

	assert.Equal(t, PlayerInitialized, p.State())
	assert.Equal(t, ContextRunning, current().State())
	assert.Equal(t, 1, current().Resumes())
}

func TestPlayer_GaplessScheduling(t *testing.T) {
	factory, current := manualFactory(t, false)
	p := NewPlayer(factory, SampleRatePlayback)
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx))

	clock := current()
	clock.Advance(1.25)
	initial := clock.CurrentTime()

	sizes := []int{4096, 1000, 2400, 24000, 7}
	total := 0.0
	for _, n := range sizes {
		require.NoError(t, p.Play(ctx, frame(n, 0.25)))
		total += Duration(n, SampleRatePlayback)
	}

	assert.InDelta(t, initial+total, p.NextStartTime(), 1e-9)

	scheduled := clock.Scheduled()
	require.Len(t, scheduled, len(sizes))
	assert.InDelta(t, initial, scheduled[0].Start, 1e-9)
	for i := 1; i < len(scheduled); i++ {
		prevEnd := scheduled[i-1].Start + scheduled[i-1].Duration
		assert.InDelta(t, prevEnd, scheduled[i].Start, 1.0/SampleRatePlayback, "buffer %d", i)
	}
}

func TestPlayer_RenderedAudioHasNoGapOrOverlap(t *testing.T) {
	factory, current := manualFactory(t, false)
	p := NewPlayer(factory, SampleRatePlayback)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, p.Play(ctx, frame(480, 0.5)))
	}

	out := make([]float32, 3*480)
	current().Render(out)
	for i, s := range out {
		require.InDelta(t, 0.5, s, 1.0/32768, "sample %d", i)
	}
	assert.Zero(t, current().Pending())
}

func TestPlayer_LateFrameStartsAtClock(t *testing.T) {
	factory, current := manualFactory(t, false)
	p := NewPlayer(factory, SampleRatePlayback)
	ctx := context.Background()

	require.NoError(t, p.Play(ctx, frame(2400, 0.1)))
	assert.InDelta(t, 0.1, p.NextStartTime(), 1e-9)

	current().Advance(2)
	require.NoError(t, p.Play(ctx, frame(2400, 0.1)))

	assert.InDelta(t, 2.1, p.NextStartTime(), 1e-9)
	assert.GreaterOrEqual(t, p.NextStartTime(), current().CurrentTime())
}

func TestPlayer_PlayInitializesImplicitly(t *testing.T) {
	factory, current := manualFactory(t, false)
	p := NewPlayer(factory, 0)

	require.NoError(t, p.Play(context.Background(), frame(10, 0.1)))
	assert.Equal(t, PlayerInitialized, p.State())
	assert.Equal(t, SampleRatePlayback, current().SampleRate())
}

func TestPlayer_CloseIsIdempotent(t *testing.T) {
	factory, current := manualFactory(t, false)
	p := NewPlayer(factory, SampleRatePlayback)
	ctx := context.Background()
	require.NoError(t, p.Play(ctx, frame(100, 0.1)))

	clock := current()
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.Equal(t, PlayerClosed, p.State())
	assert.Zero(t, p.NextStartTime())
	assert.Equal(t, 1, clock.Closes())
}

func TestPlayer_ReopensAfterClose(t *testing.T) {
	factory, current := manualFactory(t, false)
	p := NewPlayer(factory, SampleRatePlayback)
	ctx := context.Background()

	require.NoError(t, p.Play(ctx, frame(100, 0.1)))
	first := current()
	require.NoError(t, p.Close())

	require.NoError(t, p.Play(ctx, frame(100, 0.1)))
	assert.NotSame(t, first, current())
	assert.Equal(t, PlayerInitialized, p.State())
}

func TestPlayer_Errors(t *testing.T) {
	boom := errors.New("no device")
	p := NewPlayer(func(int) (OutputContext, error) { return nil, boom }, SampleRatePlayback)

	err := p.Play(context.Background(), frame(10, 0.1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, PlayerUninitialized, p.State())

	err = p.Play(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyAudioData)
}

func TestTimelineContext_SuspendedDoesNotAdvance(t *testing.T) {
	c := NewManualContext(1000, true)
	c.Advance(1)
	assert.Zero(t, c.CurrentTime())

	require.NoError(t, c.Resume(context.Background()))
	c.Advance(1)
	assert.InDelta(t, 1.0, c.CurrentTime(), 1e-12)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Schedule([]float32{1}, 0), ErrContextClosed)
	assert.ErrorIs(t, c.Resume(context.Background()), ErrContextClosed)
}
