package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"soundsketch/internal/audio"
	"soundsketch/internal/config"
	"soundsketch/internal/logging"
)

// silenceFloor is the frame RMS below which a frame is never voiced.
const silenceFloor = 1e-3

// cancelCheckEvery bounds how many frames run between context checks.
const cancelCheckEvery = 256

// ErrEmptyBuffer is returned for nil or zero-length input.
var ErrEmptyBuffer = errors.New("analysis: empty audio buffer")

// PitchFrame is the pitch estimate for one analysis hop.
type PitchFrame struct {
	Time       float64
	F0Hz       float64 // NaN when no pitch was found
	Voiced     bool
	Confidence float64
}

// Onset is the time, in seconds, of a detected attack.
type Onset float64

// Seconds returns the onset time as a float.
func (o Onset) Seconds() float64 { return float64(o) }

// Result bundles every feature extracted from one buffer.
type Result struct {
	Frames     []PitchFrame
	Onsets     []Onset
	Centroids  []float64
	Hop        int
	SampleRate int
}

// VoicedFrames counts frames flagged voiced.
func (r *Result) VoicedFrames() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, f := range r.Frames {
		if f.Voiced {
			count++
		}
	}
	return count
}

// Degenerate reports whether the result carries no usable pitch and no onsets.
func (r *Result) Degenerate() bool {
	return r == nil || (r.VoicedFrames() == 0 && len(r.Onsets) == 0)
}

// Params controls frame sizing and the pitch search.
type Params struct {
	FrameLength      int
	HopLength        int
	FMinHz           float64
	FMaxHz           float64
	VoicingThreshold float64
}

// ParamsFromConfig extracts analysis parameters from the audio config.
func ParamsFromConfig(cfg config.Audio) Params {
	return Params{
		FrameLength:      cfg.FrameLength,
		HopLength:        cfg.HopLength,
		FMinHz:           cfg.FMinHz,
		FMaxHz:           cfg.FMaxHz,
		VoicingThreshold: cfg.VoicingThreshold,
	}
}

// Analyzer extracts features from decoded audio. It is safe for concurrent
// use; per-call buffers are allocated inside each call.
type Analyzer struct {
	params Params
	logger *slog.Logger
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(params Params, logger *slog.Logger) *Analyzer {
	return &Analyzer{params: params, logger: logging.NewComponentLogger(logger, "analysis")}
}

// Analyze computes pitch frames, onsets and spectral centroids. All-unvoiced
// frames and zero onsets are a valid result, not an error.
func (a *Analyzer) Analyze(ctx context.Context, buf *audio.Buffer) (*Result, error) {
	if err := a.validate(buf); err != nil {
		return nil, err
	}
	started := time.Now()
	frames, err := a.Pitch(ctx, buf)
	if err != nil {
		return nil, err
	}
	onsets, centroids, err := a.Spectral(ctx, buf)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Frames:     frames,
		Onsets:     onsets,
		Centroids:  centroids,
		Hop:        a.params.HopLength,
		SampleRate: buf.SampleRate,
	}
	logging.WithContext(ctx, a.logger).Debug("audio analyzed",
		logging.Int("frames", len(frames)),
		logging.Int("voiced_frames", result.VoicedFrames()),
		logging.Int("onsets", len(onsets)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// Pitch runs YIN over every hop of buf.
func (a *Analyzer) Pitch(ctx context.Context, buf *audio.Buffer) ([]PitchFrame, error) {
	if err := a.validate(buf); err != nil {
		return nil, err
	}
	p := a.params
	est, err := newYIN(buf.SampleRate, p.FrameLength, p.FMinHz, p.FMaxHz)
	if err != nil {
		return nil, err
	}
	padded := padCentered(buf.Samples, p.FrameLength)
	count := frameCount(padded, p.FrameLength, p.HopLength)
	frames := make([]PitchFrame, count)
	for i := 0; i < count; i++ {
		if i%cancelCheckEvery == 0 {
			if err := contextErr(ctx); err != nil {
				return nil, err
			}
		}
		frame := frameAt(padded, i, p.FrameLength, p.HopLength)
		pf := PitchFrame{Time: frameTime(i, p.HopLength, buf.SampleRate), F0Hz: math.NaN()}
		if rms(frame) >= silenceFloor {
			f0, confidence := est.estimate(frame)
			pf.Confidence = confidence
			inRange := f0 >= p.FMinHz && f0 <= p.FMaxHz && !math.IsNaN(f0) && !math.IsInf(f0, 0)
			if inRange && confidence >= p.VoicingThreshold {
				pf.F0Hz = f0
				pf.Voiced = true
			}
		}
		frames[i] = pf
	}
	return frames, nil
}

// Spectral returns backtracked onsets and per-frame spectral centroids.
func (a *Analyzer) Spectral(ctx context.Context, buf *audio.Buffer) ([]Onset, []float64, error) {
	if err := a.validate(buf); err != nil {
		return nil, nil, err
	}
	if err := contextErr(ctx); err != nil {
		return nil, nil, err
	}
	p := a.params
	padded := padCentered(buf.Samples, p.FrameLength)
	spectrum := computeSpectrum(padded, p.FrameLength, p.HopLength, buf.SampleRate)

	count := frameCount(padded, p.FrameLength, p.HopLength)
	energy := make([]float64, count)
	for i := range energy {
		energy[i] = rms(frameAt(padded, i, p.FrameLength, p.HopLength))
	}

	peaks := pickPeaks(spectralFlux(spectrum.logPower))
	onsets := onsetTimes(backtrack(peaks, energy), p.HopLength, buf.SampleRate)
	return onsets, spectrum.centroids, nil
}

func (a *Analyzer) validate(buf *audio.Buffer) error {
	if buf == nil || buf.Len() == 0 {
		return ErrEmptyBuffer
	}
	if buf.SampleRate <= 0 {
		return fmt.Errorf("analysis: invalid sample rate %d", buf.SampleRate)
	}
	p := a.params
	if p.FrameLength <= 0 || p.HopLength <= 0 {
		return fmt.Errorf("analysis: invalid frame %d / hop %d", p.FrameLength, p.HopLength)
	}
	return nil
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
