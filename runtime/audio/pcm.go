package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// BytesPerSample is the size of one 16-bit PCM sample.
const BytesPerSample = 2

// pcm16Scale maps normalized float samples onto the int16 range.
const pcm16Scale = 32768.0

var (
	// ErrUnalignedPCM indicates a PCM16 buffer whose length is not a whole number of samples.
	ErrUnalignedPCM = errors.New("pcm data not aligned to 16-bit samples")

	// ErrEmptyAudioData indicates no audio data was provided.
	ErrEmptyAudioData = errors.New("empty audio data")
)

// Float32ToPCM16 converts normalized samples in [-1, 1] to little-endian 16-bit PCM.
// Out-of-range samples are clamped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(floatToInt16(s))) //nolint:gosec // two's complement PCM16
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := math.Round(float64(s) * pcm16Scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// PCM16ToFloat32 converts little-endian 16-bit PCM to normalized samples in [-1, 1).
func PCM16ToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnalignedPCM, len(pcm))
	}
	out := make([]float32, len(pcm)/BytesPerSample)
	for i := range out {
		//nolint:gosec // two's complement PCM16
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))) / pcm16Scale
	}
	return out, nil
}

// EncodeBase64 encodes a binary buffer as standard base64 text.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard base64 text into a binary buffer.
func DecodeBase64(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	return data, nil
}

// EncodeFloat32ToBase64 is the outbound path: float samples to PCM16 to base64.
func EncodeFloat32ToBase64(samples []float32) string {
	return EncodeBase64(Float32ToPCM16(samples))
}

// DecodeBase64ToFloat32 is the inbound path: base64 to PCM16 to float samples.
func DecodeBase64ToFloat32(text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyAudioData
	}
	pcm, err := DecodeBase64(text)
	if err != nil {
		return nil, err
	}
	return PCM16ToFloat32(pcm)
}

// Duration returns the playback length in seconds of n samples at sampleRate.
func Duration(n, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(n) / float64(sampleRate)
}
