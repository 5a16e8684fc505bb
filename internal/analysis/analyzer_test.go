package analysis_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"soundsketch/internal/analysis"
	"soundsketch/internal/audio"
	"soundsketch/internal/config"
)

const testRate = 22050

func newAnalyzer() *analysis.Analyzer {
	return analysis.NewAnalyzer(analysis.ParamsFromConfig(config.Default().Audio), nil)
}

func sine(hz, seconds, amp float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*hz*float64(i)/testRate)
	}
	return out
}

func TestAnalyzeSteadyToneIsVoicedAtItsFrequency(t *testing.T) {
	buf := &audio.Buffer{Samples: sine(440, 1.0, 0.5), SampleRate: testRate}
	result, err := newAnalyzer().Analyze(context.Background(), buf)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Frames) != 1+len(buf.Samples)/512 {
		t.Fatalf("unexpected frame count %d", len(result.Frames))
	}
	if voiced := result.VoicedFrames(); voiced < len(result.Frames)-8 {
		t.Fatalf("expected nearly all frames voiced, got %d of %d", voiced, len(result.Frames))
	}

	var f0s []float64
	for _, frame := range result.Frames {
		if frame.Voiced {
			f0s = append(f0s, frame.F0Hz)
			if frame.Confidence < 0.75 || frame.Confidence > 1 {
				t.Fatalf("voiced frame with confidence %v", frame.Confidence)
			}
		} else if !math.IsNaN(frame.F0Hz) {
			t.Fatalf("unvoiced frame carries F0 %v", frame.F0Hz)
		}
	}
	sort.Float64s(f0s)
	median := f0s[len(f0s)/2]
	if math.Abs(median-440)/440 > 0.02 {
		t.Fatalf("expected median F0 near 440 Hz, got %v", median)
	}
	for i := 1; i < len(result.Frames); i++ {
		if result.Frames[i].Time <= result.Frames[i-1].Time {
			t.Fatal("frame times must increase")
		}
	}
}

func TestAnalyzeLowToneWithinRange(t *testing.T) {
	buf := &audio.Buffer{Samples: sine(110, 1.0, 0.5), SampleRate: testRate}
	frames, err := newAnalyzer().Pitch(context.Background(), buf)
	if err != nil {
		t.Fatalf("Pitch failed: %v", err)
	}
	var f0s []float64
	for _, frame := range frames {
		if frame.Voiced {
			f0s = append(f0s, frame.F0Hz)
		}
	}
	if len(f0s) == 0 {
		t.Fatal("expected voiced frames for 110 Hz tone")
	}
	sort.Float64s(f0s)
	if median := f0s[len(f0s)/2]; math.Abs(analysis.HzToMIDI(median)-analysis.HzToMIDI(110)) > 0.5 {
		t.Fatalf("expected median near 110 Hz, got %v", median)
	}
}

func TestAnalyzeSilenceIsDegenerateNotError(t *testing.T) {
	buf := &audio.Buffer{Samples: make([]float64, 2*testRate), SampleRate: testRate}
	result, err := newAnalyzer().Analyze(context.Background(), buf)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.VoicedFrames() != 0 {
		t.Fatalf("expected no voiced frames, got %d", result.VoicedFrames())
	}
	if len(result.Onsets) != 0 {
		t.Fatalf("expected no onsets, got %v", result.Onsets)
	}
	for i, c := range result.Centroids {
		if c != 0 {
			t.Fatalf("expected zero centroid at frame %d, got %v", i, c)
		}
	}
	if !result.Degenerate() {
		t.Fatal("expected silent analysis to be degenerate")
	}
}

func TestSpectralDetectsToneBursts(t *testing.T) {
	samples := make([]float64, 0, int(1.5*testRate))
	for burst := 0; burst < 3; burst++ {
		samples = append(samples, sine(330, 0.3, 0.6)...)
		samples = append(samples, make([]float64, int(0.2*testRate))...)
	}
	buf := &audio.Buffer{Samples: samples, SampleRate: testRate}

	onsets, centroids, err := newAnalyzer().Spectral(context.Background(), buf)
	if err != nil {
		t.Fatalf("Spectral failed: %v", err)
	}
	if len(centroids) != 1+len(samples)/512 {
		t.Fatalf("unexpected centroid count %d", len(centroids))
	}
	for i := 1; i < len(onsets); i++ {
		if onsets[i] <= onsets[i-1] {
			t.Fatalf("onsets must be strictly increasing: %v", onsets)
		}
	}
	for _, want := range []float64{0.5, 1.0} {
		found := false
		for _, onset := range onsets {
			if math.Abs(onset.Seconds()-want) <= 0.1 {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected an onset near %.1fs, got %v", want, onsets)
		}
	}
}

func TestCentroidTracksToneFrequency(t *testing.T) {
	buf := &audio.Buffer{Samples: sine(1000, 0.5, 0.5), SampleRate: testRate}
	_, centroids, err := newAnalyzer().Spectral(context.Background(), buf)
	if err != nil {
		t.Fatalf("Spectral failed: %v", err)
	}
	mid := centroids[len(centroids)/2]
	if math.Abs(mid-1000) > 100 {
		t.Fatalf("expected centroid near 1000 Hz, got %v", mid)
	}
}

func TestAnalyzeRejectsEmptyBuffer(t *testing.T) {
	_, err := newAnalyzer().Analyze(context.Background(), &audio.Buffer{SampleRate: testRate})
	if !errors.Is(err, analysis.ErrEmptyBuffer) {
		t.Fatalf("expected ErrEmptyBuffer, got %v", err)
	}
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf := &audio.Buffer{Samples: sine(440, 0.5, 0.5), SampleRate: testRate}
	if _, err := newAnalyzer().Analyze(ctx, buf); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHzToMIDI(t *testing.T) {
	if got := analysis.HzToMIDI(440); got != 69 {
		t.Fatalf("HzToMIDI(440) = %v", got)
	}
	if got := analysis.HzToMIDI(0); !math.IsInf(got, -1) {
		t.Fatalf("HzToMIDI(0) = %v, want -Inf", got)
	}
	if got := analysis.MIDIToHz(60); math.Abs(got-261.6256) > 0.001 {
		t.Fatalf("MIDIToHz(60) = %v", got)
	}
}
