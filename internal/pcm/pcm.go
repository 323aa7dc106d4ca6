// Package pcm holds small helpers for 16-bit little-endian mono PCM, the
// only audio format the voice service speaks.
package pcm

import (
	"math"
	"time"
)

// bytesPerSample for s16le mono audio.
const bytesPerSample = 2

// RMS computes the root-mean-square amplitude of s16le PCM on the raw
// sample scale (0 to 32768). A quiet room sits well under 500, which is
// the usual speech gate threshold.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / bytesPerSample
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += bytesPerSample {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(samples))
}

// Peak returns the maximum absolute sample value in the PCM data, on the
// raw sample scale.
func Peak(pcm []byte) int {
	var peak int
	for i := 0; i < len(pcm)-1; i += bytesPerSample {
		sample := int(int16(pcm[i]) | int16(pcm[i+1])<<8)
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}

// Silence returns n bytes of zero samples.
func Silence(n int) []byte {
	return make([]byte, n)
}

// BytesPerSecond returns the byte rate of s16le mono audio at sampleRate.
func BytesPerSecond(sampleRate int) int {
	return sampleRate * bytesPerSample
}

// Duration converts a byte count of s16le mono audio to wall time.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
