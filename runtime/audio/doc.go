// Package audio provides the PCM codec and the gapless playback scheduler used by
// live voice sessions.
//
// Audio crosses the wire as base64 text wrapping little-endian 16-bit PCM. The
// codec converts between that form and normalized float32 samples:
//
//	samples, err := audio.DecodeBase64ToFloat32(frame)
//	frame := audio.EncodeFloat32ToBase64(block)
//
// # Playback
//
// A Player schedules each decoded frame on an OutputContext clock so consecutive
// frames abut exactly. The next start time only moves forward:
//
//	start = max(nextStartTime, ctx.CurrentTime())
//	nextStartTime = start + len(samples)/sampleRate
//
// TimelineContext is an OutputContext backed by a sample counter. Device
// callbacks pull mixed audio from it with Render; tests drive it with Advance.
package audio
