package segment

import (
	"context"
	"fmt"

	"soundsketch/internal/analysis"
	"soundsketch/internal/audio"
)

// Fallback pitch range and velocity. The centroid-halving heuristic and the
// 36-84 clamp are kept exactly for output compatibility.
const (
	fallbackMinPitch = 36
	fallbackMaxPitch = 84
	fallbackVelocity = 70
)

// SpectralFunc recomputes onsets and centroids from PCM.
type SpectralFunc func(ctx context.Context, buf *audio.Buffer) ([]analysis.Onset, []float64, error)

// Fallback builds one note per consecutive onset pair, pitched from the
// spectral centroid at the span's first frame.
type Fallback struct {
	MinDuration float64
	MaxDuration float64
	// Hop is the analysis hop used when features are recomputed.
	Hop int
	// Spectral recomputes features when no analysis result is available.
	Spectral SpectralFunc
}

func (Fallback) Name() string { return "fallback" }

func (f Fallback) Segment(ctx context.Context, in Input) (Stream, error) {
	onsets, centroids, sampleRate, hop, err := f.features(ctx, in)
	if err != nil {
		return nil, err
	}
	var notes Stream
	for i := 0; i+1 < len(onsets); i++ {
		start, end := onsets[i].Seconds(), onsets[i+1].Seconds()
		idx := int(start * float64(sampleRate) / float64(hop))
		if idx >= len(centroids) {
			continue
		}
		duration := end - start
		if duration < f.MinDuration || duration > f.MaxDuration {
			continue
		}
		notes = append(notes, Note{
			Pitch:    CentroidPitch(centroids[idx]),
			Start:    start,
			End:      end,
			Velocity: fallbackVelocity,
			Source:   SourceFallback,
		})
	}
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}
	return notes, nil
}

// CentroidPitch maps a spectral centroid to a MIDI note: half the centroid,
// converted to MIDI, clamped to 36-84 and truncated.
func CentroidPitch(centroidHz float64) int {
	return int(clamp(analysis.HzToMIDI(centroidHz/2), fallbackMinPitch, fallbackMaxPitch))
}

func (f Fallback) features(ctx context.Context, in Input) ([]analysis.Onset, []float64, int, int, error) {
	if a := in.Analysis; a != nil && a.SampleRate > 0 && a.Hop > 0 {
		return a.Onsets, a.Centroids, a.SampleRate, a.Hop, nil
	}
	if in.Buffer == nil || f.Spectral == nil || f.Hop <= 0 {
		return nil, nil, 0, 0, ErrAnalysisUnavailable
	}
	onsets, centroids, err := f.Spectral(ctx, in.Buffer)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("%w: %w", ErrAnalysisUnavailable, err)
	}
	return onsets, centroids, in.Buffer.SampleRate, f.Hop, nil
}
