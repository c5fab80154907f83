// Package audio implements loopback device probing and silence-gated capture
// of signed 16-bit PCM audio.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RMS returns the root-mean-square of samples, computed in double precision.
// An empty sequence yields ErrInvalidInput.
func RMS(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: empty sample sequence", ErrInvalidInput)
	}

	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples))), nil
}

// DecodePCM16 decodes little-endian signed 16-bit samples.
// A trailing odd byte is ignored.
func DecodePCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Downmix averages interleaved samples across channels, one value per frame.
// A trailing partial frame is dropped.
func Downmix(samples []int16, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(samples))
		for i, s := range samples {
			out[i] = float64(s)
		}
		return out
	}

	frames := len(samples) / channels
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for _, s := range samples[f*channels : (f+1)*channels] {
			sum += float64(s)
		}
		out[f] = sum / float64(channels)
	}
	return out
}

// FrameRMS decodes a raw PCM16 frame, downmixes it to mono and returns its RMS.
func FrameRMS(frame []byte, channels int) (float64, error) {
	return RMS(Downmix(DecodePCM16(frame), channels))
}
