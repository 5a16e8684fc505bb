package notation

import (
	"strings"

	"soundsketch/internal/midi"
	"soundsketch/internal/textutil"
)

// Composer credited on every generated score.
const Composer = "Generated by SoundSketch"

// Defaults inserted when the source carries no time signature or tempo.
const (
	DefaultBeats    = 4
	DefaultBeatType = 4
	DefaultTempoBPM = 120.0
)

// Meter is a time signature.
type Meter struct {
	Beats    int
	BeatType int
}

// Tempo is a quarter-note tempo marking.
type Tempo struct {
	BPM float64
}

// Score is the parsed, annotated content of one part.
type Score struct {
	Title     string
	Composer  string
	PartName  string
	Program   int
	Divisions int
	Key       *Key
	Meter     *Meter
	Tempo     *Tempo
	Notes     []midi.TickNote
}

// FromFile builds a score from a parsed MIDI file. Tempo and meter events in
// the file count as present.
func FromFile(file *midi.File) *Score {
	s := &Score{
		Program:   file.Program,
		Divisions: file.TicksPerBeat,
		Notes:     append([]midi.TickNote(nil), file.Notes...),
	}
	if file.HasTempo {
		s.Tempo = &Tempo{BPM: file.TempoBPM}
	}
	if file.HasMeter && file.MeterNum > 0 && file.MeterDen > 0 {
		s.Meter = &Meter{Beats: int(file.MeterNum), BeatType: int(file.MeterDen)}
	}
	return s
}

// SetMetadata names the score after its stem and credits the composer.
func (s *Score) SetMetadata(stem string) {
	part := strings.TrimSpace(stem)
	if part == "" {
		part = "untitled"
	}
	s.PartName = textutil.Title(part)
	s.Title = s.PartName + " Part"
	s.Composer = Composer
}

// EnsureTimeSignature sets the meter only when none is present. It reports
// whether the meter was inserted.
func (s *Score) EnsureTimeSignature(beats, beatType int) bool {
	if s.Meter != nil {
		return false
	}
	s.Meter = &Meter{Beats: beats, BeatType: beatType}
	return true
}

// EnsureTempo sets the tempo only when none is present. It reports whether
// the tempo was inserted.
func (s *Score) EnsureTempo(bpm float64) bool {
	if s.Tempo != nil {
		return false
	}
	s.Tempo = &Tempo{BPM: bpm}
	return true
}

// MeasureTicks returns the length of one measure in divisions. It is zero
// when the meter cannot be expressed at the score's resolution.
func (s *Score) MeasureTicks() int {
	if s.Meter == nil || s.Meter.BeatType <= 0 {
		return 0
	}
	return s.Meter.Beats * s.Divisions * 4 / s.Meter.BeatType
}
