package audio

import (
	"context"
	"fmt"

	"github.com/faiface/beep"
)

const (
	streamChunk     = 4096
	resampleQuality = 4
)

// drain reads s to exhaustion, averaging both channels into one.
func drain(ctx context.Context, s beep.Streamer) ([]float64, error) {
	buf := make([][2]float64, streamChunk)
	var out []float64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("stream samples: %w", err)
	}
	return out, nil
}

// sliceStreamer replays mono samples on both channels.
func sliceStreamer(samples []float64) beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := copy2(buf, samples[pos:])
		pos += n
		return n, true
	})
}

func copy2(dst [][2]float64, src []float64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}

// resample converts mono samples between rates with beep's interpolating
// resampler. Equal rates return the input unchanged.
func resample(ctx context.Context, samples []float64, from, to int) ([]float64, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid resample rates %d -> %d", from, to)
	}
	r := beep.Resample(resampleQuality, beep.SampleRate(from), beep.SampleRate(to), sliceStreamer(samples))
	return drain(ctx, r)
}

// finish resamples mono samples to targetRate and wraps them in a Buffer.
func finish(ctx context.Context, samples []float64, nativeRate, targetRate int) (*Buffer, error) {
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	out, err := resample(ctx, samples, nativeRate, targetRate)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	clampSamples(out)
	return &Buffer{Samples: out, SampleRate: targetRate}, nil
}
