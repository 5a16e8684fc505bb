package segment

import (
	"context"
	"errors"
	"math"
	"sort"

	"soundsketch/internal/analysis"
	"soundsketch/internal/audio"
)

var (
	// ErrNoNotes means a strategy ran but accepted no notes.
	ErrNoNotes = errors.New("segment: no notes found")
	// ErrAnalysisUnavailable means the strategy's required features are missing.
	ErrAnalysisUnavailable = errors.New("segment: analysis unavailable")
)

// Primary pitch range, A0 to C8.
const (
	primaryMinPitch = 21
	primaryMaxPitch = 108
	primaryVelocity = 80
)

// Input carries everything a strategy may need. Analysis is nil when the
// analyzer failed; Buffer lets strategies recompute features themselves.
type Input struct {
	Analysis *analysis.Result
	Buffer   *audio.Buffer
}

// Segmenter is one segmentation strategy.
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, in Input) (Stream, error)
}

// Primary segments runs of voiced frames. Onsets are ignored.
type Primary struct {
	MinDuration float64
}

func (Primary) Name() string { return "primary" }

func (p Primary) Segment(ctx context.Context, in Input) (Stream, error) {
	if in.Analysis == nil || len(in.Analysis.Frames) == 0 {
		return nil, ErrAnalysisUnavailable
	}
	frames := in.Analysis.Frames
	var notes Stream
	for i := 0; i < len(frames); {
		if i%1024 == 0 && ctx != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !voiced(frames[i]) {
			i++
			continue
		}
		start := i
		var midi []float64
		for i < len(frames) && voiced(frames[i]) {
			midi = append(midi, analysis.HzToMIDI(frames[i].F0Hz))
			i++
		}
		startTime := frames[start].Time
		endTime := frames[min(i, len(frames)-1)].Time
		if endTime-startTime < p.MinDuration {
			continue
		}
		pitch := int(math.RoundToEven(median(midi)))
		notes = append(notes, Note{
			Pitch:    clamp(pitch, primaryMinPitch, primaryMaxPitch),
			Start:    startTime,
			End:      endTime,
			Velocity: primaryVelocity,
			Source:   SourcePrimary,
		})
	}
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}
	return notes, nil
}

func voiced(f analysis.PitchFrame) bool {
	return f.Voiced && !math.IsNaN(f.F0Hz) && !math.IsInf(f.F0Hz, 0) && f.F0Hz > 0
}

// median averages the two middle values for even-length input.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
