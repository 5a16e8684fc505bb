package analysis

import (
	"gonum.org/v1/gonum/floats"
)

// Peak picking windows, in frames, for a 512-sample hop at 22050 Hz.
const (
	peakPreMax  = 1
	peakPostMax = 1
	peakPreAvg  = 4
	peakPostAvg = 5
	peakWait    = 1
	peakDelta   = 0.07
)

// spectralFlux returns the onset strength envelope: the mean positive change
// in log power between consecutive frames, normalized to [0, 1].
func spectralFlux(logPower [][]float64) []float64 {
	env := make([]float64, len(logPower))
	for t := 1; t < len(logPower); t++ {
		prev, cur := logPower[t-1], logPower[t]
		var sum float64
		for k := range cur {
			if d := cur[k] - prev[k]; d > 0 {
				sum += d
			}
		}
		env[t] = sum / float64(len(cur))
	}
	if len(env) == 0 {
		return env
	}
	floats.AddConst(-floats.Min(env), env)
	if peak := floats.Max(env); peak > 0 {
		floats.Scale(1/peak, env)
	}
	return env
}

// pickPeaks returns frame indices that are local maxima over
// [n-preMax, n+postMax), exceed the local mean over [n-preAvg, n+postAvg) by
// delta, and follow the previous peak by more than wait frames.
func pickPeaks(env []float64) []int {
	var peaks []int
	last := -peakWait - 1
	for n := range env {
		lo, hi := max(0, n-peakPreMax), min(len(env), n+peakPostMax)
		if env[n] < floats.Max(env[lo:hi]) {
			continue
		}
		lo, hi = max(0, n-peakPreAvg), min(len(env), n+peakPostAvg)
		mean := floats.Sum(env[lo:hi]) / float64(hi-lo)
		if env[n] < mean+peakDelta {
			continue
		}
		if n <= last+peakWait {
			continue
		}
		peaks = append(peaks, n)
		last = n
	}
	return peaks
}

// backtrack moves each onset frame to the nearest preceding local minimum of
// energy. Frame 0 always counts as a minimum.
func backtrack(onsets []int, energy []float64) []int {
	minima := []int{0}
	for i := 1; i+1 < len(energy); i++ {
		if energy[i] <= energy[i-1] && energy[i] < energy[i+1] {
			minima = append(minima, i)
		}
	}
	out := make([]int, 0, len(onsets))
	for _, onset := range onsets {
		best := 0
		for _, m := range minima {
			if m > onset {
				break
			}
			best = m
		}
		out = append(out, best)
	}
	return out
}

// onsetTimes converts frame indices into strictly increasing timestamps.
func onsetTimes(frames []int, hop, sampleRate int) []Onset {
	out := make([]Onset, 0, len(frames))
	last := -1
	for _, f := range frames {
		if f <= last {
			continue
		}
		out = append(out, Onset(frameTime(f, hop, sampleRate)))
		last = f
	}
	return out
}
