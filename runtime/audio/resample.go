package audio

import "fmt"

// Sample rates used by live voice sessions.
const (
	SampleRatePlayback = 24000 // synthesized speech from the voice endpoint
	SampleRateCapture  = 16000 // microphone audio sent to the voice endpoint
)

// ResampleFloat32 resamples normalized samples from one rate to another using
// linear interpolation. Capture devices that cannot open at SampleRateCapture
// are converted with it before encoding.
func ResampleFloat32(input []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: from=%d, to=%d", fromRate, toRate)
	}
	if fromRate == toRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	}

	n := len(input)
	outLen := int(float64(n) * float64(toRate) / float64(fromRate))
	if n == 0 || outLen == 0 {
		return []float32{}, nil
	}

	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= n-1 {
			out[i] = input[n-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = input[idx] + frac*(input[idx+1]-input[idx])
	}
	return out, nil
}

// ResamplePCM16 resamples little-endian PCM16 data between sample rates.
func ResamplePCM16(input []byte, fromRate, toRate int) ([]byte, error) {
	samples, err := PCM16ToFloat32(input)
	if err != nil {
		return nil, err
	}
	resampled, err := ResampleFloat32(samples, fromRate, toRate)
	if err != nil {
		return nil, err
	}
	return Float32ToPCM16(resampled), nil
}
