package midi

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"

	"soundsketch/internal/fileutil"
	"soundsketch/internal/segment"
)

const (
	statusNoteOff       = 0x80
	statusNoteOn        = 0x90
	statusProgramChange = 0xC0
	metaPrefix          = 0xFF
	metaInstrument      = 0x04
	metaTempo           = 0x51
	metaEndOfTrack      = 0x2F
	noteOffVelocity     = 0x40
)

// RawWriter hand-assembles a minimal format 0 file. Notes are written as
// consecutive on/off pairs in start order with truncated tick times; a note
// starting before the previous one ended is pushed to that end.
type RawWriter struct{}

func (RawWriter) Name() string { return "raw" }

func (RawWriter) Write(ctx context.Context, notes segment.Stream, track *Track) error {
	sorted := append(segment.Stream(nil), notes...)
	sorted.Sort()

	msgs := header(track)
	var now uint32
	for _, n := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		on := max(track.truncTicks(n.Start), now)
		off := track.truncTicks(n.End)
		if off <= on {
			off = on + 1
		}
		key := clampByte(n.Pitch, 0, 127)
		msgs = append(msgs,
			Message{Kind: KindNoteOn, Tick: on, Key: key, Velocity: clampByte(n.Velocity, 1, 127)},
			Message{Kind: KindNoteOff, Tick: off, Key: key, Velocity: noteOffVelocity},
		)
		now = off
	}
	msgs = append(msgs, Message{Kind: KindEndOfTrack, Tick: now})

	data := encodeRaw(msgs, track.TicksPerBeat)
	if err := fileutil.WriteAtomic(track.Path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return err
	}
	track.Messages = msgs
	return nil
}

func encodeRaw(msgs []Message, ticksPerBeat int) []byte {
	var body bytes.Buffer
	var last uint32
	for _, m := range msgs {
		body.Write(appendVLQ(nil, m.Tick-last))
		last = m.Tick
		switch m.Kind {
		case KindInstrument:
			writeMeta(&body, metaInstrument, []byte(m.Text))
		case KindTempo:
			usec := uint32(math.Round(60_000_000 / m.TempoBPM))
			writeMeta(&body, metaTempo, []byte{byte(usec >> 16), byte(usec >> 8), byte(usec)})
		case KindProgramChange:
			body.Write([]byte{statusProgramChange | m.Channel&0x0F, m.Program & 0x7F})
		case KindNoteOn:
			body.Write([]byte{statusNoteOn | m.Channel&0x0F, m.Key & 0x7F, m.Velocity & 0x7F})
		case KindNoteOff:
			body.Write([]byte{statusNoteOff | m.Channel&0x0F, m.Key & 0x7F, m.Velocity & 0x7F})
		case KindEndOfTrack:
			writeMeta(&body, metaEndOfTrack, nil)
		}
	}

	var out bytes.Buffer
	out.WriteString("MThd")
	_ = binary.Write(&out, binary.BigEndian, uint32(6))
	_ = binary.Write(&out, binary.BigEndian, uint16(0)) // format 0
	_ = binary.Write(&out, binary.BigEndian, uint16(1)) // one track
	_ = binary.Write(&out, binary.BigEndian, uint16(ticksPerBeat))
	out.WriteString("MTrk")
	_ = binary.Write(&out, binary.BigEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeMeta(buf *bytes.Buffer, kind byte, data []byte) {
	buf.Write([]byte{metaPrefix, kind})
	buf.Write(appendVLQ(nil, uint32(len(data))))
	buf.Write(data)
}

// appendVLQ appends v as a MIDI variable-length quantity.
func appendVLQ(dst []byte, v uint32) []byte {
	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		tmp[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, tmp[i:]...)
}
