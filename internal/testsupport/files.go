package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes an empty file.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}
	for remaining := size; remaining > 0; {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// ToneFunc returns the instantaneous frequency in Hz at time t seconds.
type ToneFunc func(t float64) float64

// Constant returns a ToneFunc holding one frequency.
func Constant(hz float64) ToneFunc {
	return func(float64) float64 { return hz }
}

// Sweep returns a ToneFunc gliding linearly from startHz to endHz over seconds.
func Sweep(startHz, endHz, seconds float64) ToneFunc {
	return func(t float64) float64 {
		if seconds <= 0 {
			return endHz
		}
		frac := math.Min(math.Max(t/seconds, 0), 1)
		return startHz + (endHz-startHz)*frac
	}
}

// WriteToneWAV writes a 16-bit mono WAV file holding a sine tone whose
// frequency follows tone. A nil tone writes silence.
func WriteToneWAV(t testing.TB, path string, sampleRate int, seconds, amplitude float64, tone ToneFunc) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	total := int(seconds * float64(sampleRate))
	var (
		index int
		phase float64
	)
	streamer := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if index >= total {
			return 0, false
		}
		n := 0
		for n < len(samples) && index < total {
			value := 0.0
			if tone != nil {
				value = amplitude * math.Sin(phase)
				phase += 2 * math.Pi * tone(float64(index)/float64(sampleRate)) / float64(sampleRate)
			}
			samples[n][0] = value
			samples[n][1] = value
			n++
			index++
		}
		return n, true
	})

	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, streamer, format); err != nil {
		t.Fatalf("encode wav %s: %v", path, err)
	}
}

// WriteSilentWAV writes a mono WAV file of digital silence.
func WriteSilentWAV(t testing.TB, path string, sampleRate int, seconds float64) {
	t.Helper()
	WriteToneWAV(t, path, sampleRate, seconds, 0, nil)
}
