package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	powerFloor = 1e-10
	topDB      = 80.0
)

// spectrum holds per-frame STFT features.
type spectrum struct {
	logPower  [][]float64
	centroids []float64
}

// computeSpectrum runs a Hann-windowed STFT over padded frames, returning
// log power (dB, clipped topDB below the peak) and the spectral centroid of
// each frame. Silent frames have a zero centroid.
func computeSpectrum(padded []float64, frameLength, hop, sampleRate int) spectrum {
	frames := frameCount(padded, frameLength, hop)
	fft := fourier.NewFFT(frameLength)
	window := hann(frameLength)
	seq := make([]float64, frameLength)
	coeff := make([]complex128, frameLength/2+1)

	out := spectrum{
		logPower:  make([][]float64, frames),
		centroids: make([]float64, frames),
	}
	binHz := float64(sampleRate) / float64(frameLength)
	peak := math.Inf(-1)
	for i := 0; i < frames; i++ {
		frame := frameAt(padded, i, frameLength, hop)
		for k, v := range frame {
			seq[k] = v * window[k]
		}
		fft.Coefficients(coeff, seq)

		db := make([]float64, len(coeff))
		var weighted, total float64
		for k, c := range coeff {
			mag := cmplx.Abs(c)
			weighted += float64(k) * binHz * mag
			total += mag
			db[k] = 10 * math.Log10(math.Max(mag*mag, powerFloor))
			peak = math.Max(peak, db[k])
		}
		if total > 0 {
			out.centroids[i] = weighted / total
		}
		out.logPower[i] = db
	}

	floor := peak - topDB
	for _, row := range out.logPower {
		for k, v := range row {
			if v < floor {
				row[k] = floor
			}
		}
	}
	return out
}

// hann returns a periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
