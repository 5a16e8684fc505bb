package analysis

import "math"

// padCentered surrounds samples with frameLength/2 zeros on each side.
func padCentered(samples []float64, frameLength int) []float64 {
	half := frameLength / 2
	padded := make([]float64, len(samples)+2*half)
	copy(padded[half:], samples)
	return padded
}

func frameCount(padded []float64, frameLength, hop int) int {
	if len(padded) < frameLength {
		return 0
	}
	return 1 + (len(padded)-frameLength)/hop
}

func frameAt(padded []float64, i, frameLength, hop int) []float64 {
	start := i * hop
	return padded[start : start+frameLength]
}

func rms(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func frameTime(i, hop, sampleRate int) float64 {
	return float64(i*hop) / float64(sampleRate)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// HzToMIDI converts a frequency to a fractional MIDI note number. Zero and
// negative frequencies map to negative infinity.
func HzToMIDI(hz float64) float64 {
	if hz <= 0 {
		return math.Inf(-1)
	}
	return 69 + 12*math.Log2(hz/440)
}

// MIDIToHz converts a MIDI note number to a frequency.
func MIDIToHz(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}
