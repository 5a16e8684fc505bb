package midi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"soundsketch/internal/segment"
)

// DefaultTempoBPM applies when a file carries no tempo meta event.
const DefaultTempoBPM = 120.0

// ErrNoTimeFormat means the file does not use metric ticks.
var ErrNoTimeFormat = errors.New("midi file has no metric time format")

// TickNote is a parsed note in absolute ticks.
type TickNote struct {
	Key      uint8
	Velocity uint8
	Start    uint32
	End      uint32
}

// File is the musical content of a parsed SMF, merged across tracks.
type File struct {
	TicksPerBeat int
	TempoBPM     float64
	HasTempo     bool
	MeterNum     uint8
	MeterDen     uint8
	HasMeter     bool
	Program      int
	Notes        []TickNote
}

// ReadFile parses the SMF at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes SMF bytes. Malformed input that makes the decoder panic is
// reported as an error.
func Parse(data []byte) (file *File, err error) {
	defer func() {
		if r := recover(); r != nil {
			file, err = nil, fmt.Errorf("parse midi: %v", r)
		}
	}()
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse midi: %w", err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, ErrNoTimeFormat
	}

	file = &File{TicksPerBeat: int(ticks), TempoBPM: DefaultTempoBPM}
	type noteKey struct{ channel, key uint8 }
	pending := make(map[noteKey][]TickNote)
	programSet := false

	for _, track := range s.Tracks {
		var abs uint32
		for _, ev := range track {
			abs += ev.Delta
			var channel, key, velocity, program, num, den uint8
			var bpm float64
			msg := ev.Message
			switch {
			case msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				k := noteKey{channel, key}
				pending[k] = append(pending[k], TickNote{Key: key, Velocity: velocity, Start: abs})
			case msg.GetNoteOn(&channel, &key, &velocity), msg.GetNoteOff(&channel, &key, &velocity):
				k := noteKey{channel, key}
				open := pending[k]
				if len(open) == 0 {
					continue
				}
				note := open[0]
				pending[k] = open[1:]
				note.End = abs
				if note.End > note.Start {
					file.Notes = append(file.Notes, note)
				}
			case msg.GetMetaTempo(&bpm):
				if !file.HasTempo && bpm > 0 {
					file.TempoBPM, file.HasTempo = bpm, true
				}
			case msg.GetMetaMeter(&num, &den):
				if !file.HasMeter {
					file.MeterNum, file.MeterDen, file.HasMeter = num, den, true
				}
			case midi.Message(msg).GetProgramChange(&channel, &program):
				if !programSet {
					file.Program, programSet = int(program), true
				}
			}
		}
	}

	sort.SliceStable(file.Notes, func(i, j int) bool {
		if file.Notes[i].Start != file.Notes[j].Start {
			return file.Notes[i].Start < file.Notes[j].Start
		}
		return file.Notes[i].Key < file.Notes[j].Key
	})
	return file, nil
}

// Seconds converts an absolute tick to seconds at the file's tempo.
func (f *File) Seconds(tick uint32) float64 {
	return float64(tick) / float64(f.TicksPerBeat) * 60 / f.TempoBPM
}

// Stream converts the parsed notes to seconds.
func (f *File) Stream() segment.Stream {
	out := make(segment.Stream, 0, len(f.Notes))
	for _, n := range f.Notes {
		out = append(out, segment.Note{
			Pitch:    int(n.Key),
			Start:    f.Seconds(n.Start),
			End:      f.Seconds(n.End),
			Velocity: int(n.Velocity),
		})
	}
	return out
}

// ReadNotes reads the notes of the SMF at path in seconds.
func ReadNotes(path string) (segment.Stream, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return file.Stream(), nil
}
