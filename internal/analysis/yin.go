package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// yinTroughThreshold is the CMND value below which the first dip is taken as
// the period.
const yinTroughThreshold = 0.1

// yin estimates F0 for fixed-length frames. It reuses its buffers and is not
// safe for concurrent use.
type yin struct {
	sampleRate int
	window     int
	minPeriod  int
	maxPeriod  int

	fft    *fourier.FFT
	seqA   []float64
	seqX   []float64
	coeffA []complex128
	coeffX []complex128
	corr   []float64
	energy []float64
	diff   []float64
	cmnd   []float64
}

func newYIN(sampleRate, frameLength int, fminHz, fmaxHz float64) (*yin, error) {
	window := frameLength / 2
	minPeriod := max(1, int(math.Floor(float64(sampleRate)/fmaxHz)))
	maxPeriod := min(int(math.Ceil(float64(sampleRate)/fminHz)), frameLength-window-1)
	if minPeriod >= maxPeriod {
		return nil, fmt.Errorf("pitch range %.1f-%.1f Hz does not fit a %d-sample frame at %d Hz", fminHz, fmaxHz, frameLength, sampleRate)
	}
	n := nextPow2(frameLength + window)
	return &yin{
		sampleRate: sampleRate,
		window:     window,
		minPeriod:  minPeriod,
		maxPeriod:  maxPeriod,
		fft:        fourier.NewFFT(n),
		seqA:       make([]float64, n),
		seqX:       make([]float64, n),
		coeffA:     make([]complex128, n/2+1),
		coeffX:     make([]complex128, n/2+1),
		corr:       make([]float64, n),
		energy:     make([]float64, frameLength+1),
		diff:       make([]float64, maxPeriod+1),
		cmnd:       make([]float64, maxPeriod+1),
	}, nil
}

// estimate returns the F0 in Hz and a confidence in [0, 1] for frame.
func (y *yin) estimate(frame []float64) (float64, float64) {
	n := y.fft.Len()
	clear(y.seqA)
	clear(y.seqX)
	copy(y.seqA, frame[:y.window])
	copy(y.seqX, frame)

	a := y.fft.Coefficients(y.coeffA, y.seqA)
	x := y.fft.Coefficients(y.coeffX, y.seqX)
	for k := range x {
		x[k] = cmplx.Conj(a[k]) * x[k]
	}
	y.fft.Sequence(y.corr, x)

	y.energy[0] = 0
	for i, v := range frame {
		y.energy[i+1] = y.energy[i] + v*v
	}
	e0 := y.energy[y.window]
	for tau := 0; tau <= y.maxPeriod; tau++ {
		et := y.energy[tau+y.window] - y.energy[tau]
		d := e0 + et - 2*y.corr[tau]/float64(n)
		y.diff[tau] = math.Max(d, 0)
	}

	y.cmnd[0] = 1
	var running float64
	for tau := 1; tau <= y.maxPeriod; tau++ {
		running += y.diff[tau]
		if running > 0 {
			y.cmnd[tau] = y.diff[tau] * float64(tau) / running
		} else {
			y.cmnd[tau] = 1
		}
	}

	best := -1
	for tau := y.minPeriod; tau <= y.maxPeriod; tau++ {
		if y.cmnd[tau] < yinTroughThreshold {
			for tau+1 <= y.maxPeriod && y.cmnd[tau+1] < y.cmnd[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		best = y.minPeriod
		for tau := y.minPeriod + 1; tau <= y.maxPeriod; tau++ {
			if y.cmnd[tau] < y.cmnd[best] {
				best = tau
			}
		}
	}

	period := float64(best)
	if best > y.minPeriod && best < y.maxPeriod {
		prev, cur, next := y.cmnd[best-1], y.cmnd[best], y.cmnd[best+1]
		if denom := prev - 2*cur + next; denom > 0 {
			period += 0.5 * (prev - next) / denom
		}
	}
	confidence := math.Min(math.Max(1-y.cmnd[best], 0), 1)
	return float64(y.sampleRate) / period, confidence
}
