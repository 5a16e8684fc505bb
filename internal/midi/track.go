package midi

import (
	"fmt"
	"math"
	"strings"
)

// Kind names a track message type.
type Kind string

const (
	KindInstrument    Kind = "instrument_name"
	KindTempo         Kind = "tempo"
	KindProgramChange Kind = "program_change"
	KindNoteOn        Kind = "note_on"
	KindNoteOff       Kind = "note_off"
	KindEndOfTrack    Kind = "end_of_track"
)

// Message is one event at an absolute tick.
type Message struct {
	Kind     Kind
	Tick     uint32
	Channel  uint8
	Key      uint8
	Velocity uint8
	Program  uint8
	TempoBPM float64
	Text     string
}

func (m Message) String() string {
	switch m.Kind {
	case KindNoteOn, KindNoteOff:
		return fmt.Sprintf("%s@%d key=%d vel=%d", m.Kind, m.Tick, m.Key, m.Velocity)
	case KindTempo:
		return fmt.Sprintf("%s@%d bpm=%.2f", m.Kind, m.Tick, m.TempoBPM)
	case KindProgramChange:
		return fmt.Sprintf("%s@%d program=%d", m.Kind, m.Tick, m.Program)
	default:
		return fmt.Sprintf("%s@%d", m.Kind, m.Tick)
	}
}

// Track describes an encoded file. Messages are in file order.
type Track struct {
	Messages     []Message
	TicksPerBeat int
	TempoBPM     float64
	Program      int
	Stem         string
	Path         string
	// Writer names the strategy that produced the file.
	Writer string
	// Failures lists writers that were tried before Writer succeeded.
	Failures []Attempt
}

// NoteCount returns the number of note-on messages.
func (t *Track) NoteCount() int {
	count := 0
	for _, m := range t.Messages {
		if m.Kind == KindNoteOn {
			count++
		}
	}
	return count
}

// UsedFallback reports whether an earlier writer failed.
func (t *Track) UsedFallback() bool {
	return len(t.Failures) > 0
}

// ticksPerSecond converts the track's tempo into a tick rate.
func (t *Track) ticksPerSecond() float64 {
	return float64(t.TicksPerBeat) * t.TempoBPM / 60
}

// roundTicks converts seconds to ticks, rounding to the nearest tick.
func (t *Track) roundTicks(seconds float64) uint32 {
	return toTicks(math.Round(seconds * t.ticksPerSecond()))
}

// truncTicks converts seconds to ticks, dropping the fraction.
func (t *Track) truncTicks(seconds float64) uint32 {
	return toTicks(math.Trunc(seconds * t.ticksPerSecond()))
}

func toTicks(v float64) uint32 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}

var stemPrograms = map[string]int{
	"vocals":  52, // choir aahs
	"drums":   0,
	"bass":    33, // electric bass (finger)
	"other":   0,
	"piano":   0,
	"guitar":  24, // nylon guitar
	"strings": 48, // string ensemble
}

// ProgramForStem returns the General MIDI program for a stem label. Unknown
// stems map to acoustic grand piano.
func ProgramForStem(stem string) int {
	return stemPrograms[strings.ToLower(strings.TrimSpace(stem))]
}

func clampByte(v, lo, hi int) uint8 {
	return uint8(max(lo, min(hi, v)))
}
