package audio

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := make([]float32, 4096)
	for i := range samples {
		samples[i] = rng.Float32()*2 - 1
	}
	samples[0], samples[1], samples[2] = -1, 1, 0

	decoded, err := DecodeBase64ToFloat32(EncodeFloat32ToBase64(samples))
	require.NoError(t, err)
	require.Len(t, decoded, len(samples))

	for i := range samples {
		assert.LessOrEqual(t, math.Abs(float64(decoded[i]-samples[i])), 1.0/32768, "sample %d", i)
	}
}

func TestFloat32ToPCM16_Clamps(t *testing.T) {
	pcm := Float32ToPCM16([]float32{2, -2, 1, -1})
	samples, err := PCM16ToFloat32(pcm)
	require.NoError(t, err)

	assert.InDelta(t, 32767.0/32768, samples[0], 1e-9)
	assert.InDelta(t, -1.0, samples[1], 1e-9)
	assert.InDelta(t, 32767.0/32768, samples[2], 1e-9)
	assert.InDelta(t, -1.0, samples[3], 1e-9)
}

func TestFloat32ToPCM16_LittleEndian(t *testing.T) {
	pcm := Float32ToPCM16([]float32{0.5})
	assert.Equal(t, []byte{0x00, 0x40}, pcm)
}

func TestPCM16ToFloat32_Unaligned(t *testing.T) {
	_, err := PCM16ToFloat32([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrUnalignedPCM)
}

func TestDecodeBase64ToFloat32_Errors(t *testing.T) {
	_, err := DecodeBase64ToFloat32("")
	assert.ErrorIs(t, err, ErrEmptyAudioData)

	_, err = DecodeBase64ToFloat32("not base64!")
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.InDelta(t, 0.5, Duration(12000, SampleRatePlayback), 1e-12)
	assert.Zero(t, Duration(100, 0))
}

func TestResampleFloat32(t *testing.T) {
	in := make([]float32, 300)
	for i := range in {
		in[i] = float32(i) / 300
	}

	down, err := ResampleFloat32(in, 48000, SampleRateCapture)
	require.NoError(t, err)
	assert.Len(t, down, 100)
	assert.InDelta(t, in[3], down[1], 1e-6)

	same, err := ResampleFloat32(in, 16000, 16000)
	require.NoError(t, err)
	assert.Equal(t, in, same)
	same[0] = 9
	assert.NotEqual(t, in[0], same[0])

	_, err = ResampleFloat32(in, 0, 16000)
	assert.Error(t, err)

	empty, err := ResampleFloat32(nil, 48000, 16000)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResamplePCM16(t *testing.T) {
	pcm := Float32ToPCM16(make([]float32, 100))
	out, err := ResamplePCM16(pcm, SampleRateCapture, SampleRatePlayback)
	require.NoError(t, err)
	assert.Len(t, out, 150*BytesPerSample)

	_, err = ResamplePCM16([]byte{1}, 16000, 24000)
	assert.ErrorIs(t, err, ErrUnalignedPCM)
}
