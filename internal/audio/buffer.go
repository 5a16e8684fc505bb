package audio

import (
	"math"
	"time"
)

// Buffer holds mono PCM samples in [-1, 1] at a fixed sample rate.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Seconds returns the playback length in seconds.
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Duration returns the playback length.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	if b == nil {
		return 0
	}
	var peak float64
	for _, s := range b.Samples {
		peak = math.Max(peak, math.Abs(s))
	}
	return peak
}

// clampSamples forces every sample into [-1, 1] and replaces NaN with silence.
func clampSamples(samples []float64) {
	for i, s := range samples {
		switch {
		case math.IsNaN(s):
			samples[i] = 0
		case s > 1:
			samples[i] = 1
		case s < -1:
			samples[i] = -1
		}
	}
}
