package notation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"soundsketch/internal/midi"
)

// ErrKeyUndetermined means the pitch content cannot be correlated with any key.
var ErrKeyUndetermined = errors.New("key cannot be determined")

// Mode of a key.
type Mode string

const (
	Major Mode = "major"
	Minor Mode = "minor"
)

// Key is a tonic pitch class and mode.
type Key struct {
	Tonic int
	Mode  Mode
	// Correlation with the winning profile; zero for the fallback key.
	Correlation float64
}

// CMajor is used whenever inference fails.
func CMajor() *Key {
	return &Key{Tonic: 0, Mode: Major}
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

func (k *Key) String() string {
	names := sharpNames
	if k.Fifths() < 0 {
		names = flatNames
	}
	return fmt.Sprintf("%s %s", names[k.Tonic], k.Mode)
}

// majorFifths maps a major tonic pitch class to its signature.
var majorFifths = [12]int{0, -5, 2, -3, 4, -1, 6, 1, -4, 3, -2, 5}

// Fifths returns the key signature as a count of sharps (positive) or
// flats (negative).
func (k *Key) Fifths() int {
	tonic := k.Tonic
	if k.Mode == Minor {
		tonic = (tonic + 3) % 12
	}
	return majorFifths[tonic]
}

// Krumhansl-Kessler key profiles, indexed from the tonic.
var (
	majorProfile = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// InferKey correlates the duration-weighted pitch-class histogram with the
// 24 rotated major and minor profiles and returns the best match.
func InferKey(notes []midi.TickNote) (*Key, error) {
	histogram := make([]float64, 12)
	for _, n := range notes {
		histogram[int(n.Key)%12] += float64(n.End - n.Start)
	}

	var best *Key
	rotated := make([]float64, 12)
	for _, mode := range []Mode{Major, Minor} {
		profile := majorProfile
		if mode == Minor {
			profile = minorProfile
		}
		for tonic := 0; tonic < 12; tonic++ {
			for pc := range rotated {
				rotated[pc] = profile[(pc-tonic+12)%12]
			}
			r := stat.Correlation(histogram, rotated, nil)
			if math.IsNaN(r) {
				continue
			}
			if best == nil || r > best.Correlation {
				best = &Key{Tonic: tonic, Mode: mode, Correlation: r}
			}
		}
	}
	if best == nil {
		return nil, ErrKeyUndetermined
	}
	return best, nil
}

// spell returns the step, alteration and octave of a MIDI pitch, using flats
// in flat keys and sharps otherwise.
func spell(pitch int, key *Key) (step string, alter, octave int) {
	names := sharpNames
	if key != nil && key.Fifths() < 0 {
		names = flatNames
	}
	name := names[pitch%12]
	step = name[:1]
	switch {
	case len(name) > 1 && name[1] == '#':
		alter = 1
	case len(name) > 1 && name[1] == 'b':
		alter = -1
	}
	return step, alter, pitch/12 - 1
}
