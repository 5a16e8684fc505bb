package midi

import (
	"context"
	"sort"

	"soundsketch/internal/segment"
)

// Writer is one encoding strategy. Write fills track.Messages and writes the
// file to track.Path.
type Writer interface {
	Name() string
	Write(ctx context.Context, notes segment.Stream, track *Track) error
}

// DefaultWriters returns the smf writer followed by the raw fallback.
func DefaultWriters() []Writer {
	return []Writer{SMFWriter{}, RawWriter{}}
}

// header returns the messages every writer emits before the first note.
func header(track *Track) []Message {
	return []Message{
		{Kind: KindInstrument, Text: track.Stem},
		{Kind: KindTempo, TempoBPM: track.TempoBPM},
		{Kind: KindProgramChange, Program: clampByte(track.Program, 0, 127)},
	}
}

// noteMessages converts notes into on/off pairs at rounded absolute ticks,
// sorted so note-offs precede note-ons on the same tick.
func noteMessages(notes segment.Stream, track *Track) []Message {
	msgs := make([]Message, 0, 2*len(notes))
	for _, n := range notes {
		key := clampByte(n.Pitch, 0, 127)
		vel := clampByte(n.Velocity, 1, 127)
		on := track.roundTicks(n.Start)
		off := track.roundTicks(n.End)
		if off <= on {
			off = on + 1
		}
		msgs = append(msgs,
			Message{Kind: KindNoteOn, Tick: on, Key: key, Velocity: vel},
			Message{Kind: KindNoteOff, Tick: off, Key: key},
		)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if a.Tick != b.Tick {
			return a.Tick < b.Tick
		}
		if a.Kind != b.Kind {
			return a.Kind == KindNoteOff
		}
		return a.Key < b.Key
	})
	return msgs
}
