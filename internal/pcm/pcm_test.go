package pcm

import (
	"math"
	"testing"
	"time"
)

func pcmBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s & 0xFF)
		pcm[i*2+1] = byte((s >> 8) & 0xFF)
	}
	return pcm
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int16
		expected float64
	}{
		{
			name:     "silence",
			samples:  []int16{0, 0, 0, 0},
			expected: 0,
		},
		{
			name:     "steady tone",
			samples:  []int16{1000, 1000, 1000, 1000},
			expected: 1000,
		},
		{
			name:     "alternating signal",
			samples:  []int16{16384, -16384, 16384, -16384},
			expected: 16384,
		},
		{
			name:     "empty input",
			samples:  nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RMS(pcmBytes(tt.samples))
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("expected RMS %.3f, got %.3f", tt.expected, result)
			}
		})
	}
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int16
		expected int
	}{
		{
			name:     "silence",
			samples:  []int16{0, 0, 0, 0},
			expected: 0,
		},
		{
			name:     "positive peak",
			samples:  []int16{0, 16384, 0, 0},
			expected: 16384,
		},
		{
			name:     "negative extreme",
			samples:  []int16{0, -32768, 100, 0},
			expected: 32768,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Peak(pcmBytes(tt.samples)); result != tt.expected {
				t.Errorf("expected peak %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSilence(t *testing.T) {
	chunk := Silence(1024)
	if len(chunk) != 1024 {
		t.Fatalf("len = %d, want 1024", len(chunk))
	}
	if RMS(chunk) != 0 {
		t.Fatalf("silence has nonzero energy")
	}
}

func TestBytesPerSecond(t *testing.T) {
	if got := BytesPerSecond(16000); got != 32000 {
		t.Errorf("expected 32000 bytes/s at 16kHz, got %d", got)
	}
	if got := BytesPerSecond(24000); got != 48000 {
		t.Errorf("expected 48000 bytes/s at 24kHz, got %d", got)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		sampleRate int
		expected   time.Duration
	}{
		{name: "one second at 16kHz", n: 32000, sampleRate: 16000, expected: time.Second},
		{name: "forty ms at 16kHz", n: 1280, sampleRate: 16000, expected: 40 * time.Millisecond},
		{name: "zero rate", n: 32000, sampleRate: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Duration(tt.n, tt.sampleRate); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}
