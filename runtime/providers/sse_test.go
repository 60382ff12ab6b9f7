package providers

import (
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "data: {\"text\":\"Hel\"}\n\n" +
	": keep-alive\n\n" +
	"data: {\"text\":\"lo\"}\n\n" +
	"event: ping\n\n" +
	"data: {\"text\":\" wor\"}\r\n\r\n" +
	"data: [DONE]\n\n" +
	"data: {\"text\":\"ld\"}\n\n"

func collect(t *testing.T, r io.Reader) []string {
	t.Helper()
	s := NewSSEScanner(r)
	var frames []string
	for s.Scan() {
		frames = append(frames, s.Data())
	}
	require.NoError(t, s.Err())
	return frames
}

// chunkReader returns the input in pieces of the given sizes, cycling.
type chunkReader struct {
	data  []byte
	sizes []int
	i     int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.sizes[c.i%len(c.sizes)]
	c.i++
	n = min(n, len(p), len(c.data))
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestSSEScanner_Frames(t *testing.T) {
	frames := collect(t, strings.NewReader(sampleStream))
	assert.Equal(t, []string{
		`{"text":"Hel"}`,
		`{"text":"lo"}`,
		`{"text":" wor"}`,
		`{"text":"ld"}`,
	}, frames)
}

func TestSSEScanner_ArbitrarySplitsYieldSameFrames(t *testing.T) {
	want := collect(t, strings.NewReader(sampleStream))

	got := collect(t, iotest.OneByteReader(strings.NewReader(sampleStream)))
	assert.Equal(t, want, got)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		sizes := make([]int, 1+rng.Intn(6))
		for i := range sizes {
			sizes[i] = 1 + rng.Intn(len(sampleStream))
		}
		r := &chunkReader{data: []byte(sampleStream), sizes: sizes}
		require.Equal(t, want, collect(t, r), "sizes %v", sizes)
	}
}

func TestSSEScanner_HoldsPartialFrame(t *testing.T) {
	s := NewSSEScanner(strings.NewReader("data: complete\n\ndata: partial"))
	require.True(t, s.Scan())
	assert.Equal(t, "complete", s.Data())

	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
}

func TestSSEScanner_MultiLineData(t *testing.T) {
	frames := collect(t, strings.NewReader("data: a\ndata:b\n\n"))
	assert.Equal(t, []string{"a\nb"}, frames)
}

func TestSSEScanner_DoneIsNotTerminal(t *testing.T) {
	frames := collect(t, strings.NewReader("data: [DONE]\n\ndata: after\n\n"))
	assert.Equal(t, []string{"after"}, frames)
}

func TestSSEScanner_OnRead(t *testing.T) {
	s := NewSSEScanner(iotest.OneByteReader(strings.NewReader("data: x\n\n")))
	total := 0
	calls := 0
	s.OnRead = func(n int) {
		total += n
		calls++
	}
	for s.Scan() {
	}
	assert.Equal(t, len("data: x\n\n"), total)
	assert.Equal(t, total, calls)
}

func TestSSEScanner_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data: one\n\n"), iotest.ErrReader(boom))

	s := NewSSEScanner(r)
	require.True(t, s.Scan())
	assert.Equal(t, "one", s.Data())
	assert.False(t, s.Scan())
	assert.ErrorIs(t, s.Err(), boom)
}
