package midi

import (
	"context"
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"soundsketch/internal/fileutil"
	"soundsketch/internal/segment"
)

// SMFWriter writes a format 0 file through gomidi. Note times are rounded to
// the nearest tick.
type SMFWriter struct{}

func (SMFWriter) Name() string { return "smf" }

func (SMFWriter) Write(ctx context.Context, notes segment.Stream, track *Track) error {
	msgs := append(header(track), noteMessages(notes, track)...)

	var tr smf.Track
	var last uint32
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := m.smf()
		if err != nil {
			return err
		}
		tr = append(tr, smf.Event{Delta: m.Tick - last, Message: raw})
		last = m.Tick
	}
	tr.Close(0)
	msgs = append(msgs, Message{Kind: KindEndOfTrack, Tick: last})

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(uint16(track.TicksPerBeat))
	if err := file.Add(tr); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if err := fileutil.WriteAtomic(track.Path, func(w io.Writer) error {
		_, err := file.WriteTo(w)
		return err
	}); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	track.Messages = msgs
	return nil
}

func (m Message) smf() (smf.Message, error) {
	switch m.Kind {
	case KindInstrument:
		return smf.MetaInstrument(m.Text), nil
	case KindTempo:
		return smf.MetaTempo(m.TempoBPM), nil
	case KindProgramChange:
		return smf.Message(midi.ProgramChange(m.Channel, m.Program)), nil
	case KindNoteOn:
		return smf.Message(midi.NoteOn(m.Channel, m.Key, m.Velocity)), nil
	case KindNoteOff:
		return smf.Message(midi.NoteOff(m.Channel, m.Key)), nil
	default:
		return nil, fmt.Errorf("unsupported message kind %q", m.Kind)
	}
}
