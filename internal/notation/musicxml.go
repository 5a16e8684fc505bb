package notation

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
)

const musicXMLDoctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 4.0 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">` + "\n"

type xmlScore struct {
	XMLName        xml.Name          `xml:"score-partwise"`
	Version        string            `xml:"version,attr"`
	Work           xmlWork           `xml:"work"`
	Identification xmlIdentification `xml:"identification"`
	PartList       xmlPartList       `xml:"part-list"`
	Parts          []xmlPart         `xml:"part"`
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlIdentification struct {
	Creators []xmlCreator `xml:"creator"`
	Encoding xmlEncoding  `xml:"encoding"`
}

type xmlCreator struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlEncoding struct {
	Software string `xml:"software"`
}

type xmlPartList struct {
	ScoreParts []xmlScorePart `xml:"score-part"`
}

type xmlScorePart struct {
	ID         string             `xml:"id,attr"`
	Name       string             `xml:"part-name"`
	Instrument xmlScoreInstrument `xml:"score-instrument"`
	MIDI       xmlMIDIInstrument  `xml:"midi-instrument"`
}

type xmlScoreInstrument struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"instrument-name"`
}

type xmlMIDIInstrument struct {
	ID      string `xml:"id,attr"`
	Channel int    `xml:"midi-channel"`
	Program int    `xml:"midi-program"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	Number     string         `xml:"number,attr"`
	Attributes *xmlAttributes `xml:"attributes,omitempty"`
	Direction  *xmlDirection  `xml:"direction,omitempty"`
	Notes      []xmlNote      `xml:"note"`
}

type xmlAttributes struct {
	Divisions int     `xml:"divisions"`
	Key       xmlKey  `xml:"key"`
	Time      xmlTime `xml:"time"`
	Clef      xmlClef `xml:"clef"`
}

type xmlKey struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

type xmlTime struct {
	Beats    string `xml:"beats"`
	BeatType string `xml:"beat-type"`
}

type xmlClef struct {
	Sign string `xml:"sign"`
	Line int    `xml:"line"`
}

type xmlDirection struct {
	Placement string           `xml:"placement,attr"`
	Type      xmlDirectionType `xml:"direction-type"`
	Sound     xmlSound         `xml:"sound"`
}

type xmlDirectionType struct {
	Metronome xmlMetronome `xml:"metronome"`
}

type xmlMetronome struct {
	BeatUnit  string `xml:"beat-unit"`
	PerMinute string `xml:"per-minute"`
}

type xmlSound struct {
	Tempo string `xml:"tempo,attr"`
}

type xmlNote struct {
	Rest      *xmlRest      `xml:"rest,omitempty"`
	Pitch     *xmlPitch     `xml:"pitch,omitempty"`
	Duration  int           `xml:"duration"`
	Ties      []xmlTie      `xml:"tie"`
	Voice     string        `xml:"voice"`
	Type      string        `xml:"type,omitempty"`
	Dot       *struct{}     `xml:"dot,omitempty"`
	Notations *xmlNotations `xml:"notations,omitempty"`
}

type xmlRest struct {
	Measure string `xml:"measure,attr,omitempty"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

type xmlTie struct {
	Type string `xml:"type,attr"`
}

type xmlNotations struct {
	Tied []xmlTie `xml:"tied"`
}

// noteTypes lists note values as multiples of a quarter, num/den.
var noteTypes = []struct {
	name     string
	num, den int
}{
	{"whole", 4, 1},
	{"half", 2, 1},
	{"quarter", 1, 1},
	{"eighth", 1, 2},
	{"16th", 1, 4},
	{"32nd", 1, 8},
	{"64th", 1, 16},
}

// noteType names a duration when it is an exact plain or dotted value.
func noteType(duration, divisions int) (string, bool) {
	for _, nt := range noteTypes {
		if divisions*nt.num%nt.den != 0 {
			continue
		}
		base := divisions * nt.num / nt.den
		if duration == base {
			return nt.name, false
		}
		if base%2 == 0 && duration == base+base/2 {
			return nt.name, true
		}
	}
	return "", false
}

func (d *Document) toXML() *xmlScore {
	s := d.Score
	partID, instID := "P1", "P1-I1"
	clef := xmlClef{Sign: "G", Line: 2}
	if averagePitch(s) < 55 {
		clef = xmlClef{Sign: "F", Line: 4}
	}
	tempo := strconv.FormatFloat(s.Tempo.BPM, 'f', -1, 64)

	doc := &xmlScore{
		Version: "4.0",
		Work:    xmlWork{Title: s.Title},
		Identification: xmlIdentification{
			Creators: []xmlCreator{{Type: "composer", Value: s.Composer}},
			Encoding: xmlEncoding{Software: "SoundSketch"},
		},
		PartList: xmlPartList{ScoreParts: []xmlScorePart{{
			ID:         partID,
			Name:       s.PartName,
			Instrument: xmlScoreInstrument{ID: instID, Name: s.PartName},
			MIDI:       xmlMIDIInstrument{ID: instID, Channel: 1, Program: s.Program + 1},
		}}},
	}

	part := xmlPart{ID: partID}
	measureLen := s.MeasureTicks()
	for i, m := range d.Measures {
		xm := xmlMeasure{Number: strconv.Itoa(m.Number)}
		if i == 0 {
			xm.Attributes = &xmlAttributes{
				Divisions: s.Divisions,
				Key:       xmlKey{Fifths: s.Key.Fifths(), Mode: string(s.Key.Mode)},
				Time:      xmlTime{Beats: strconv.Itoa(s.Meter.Beats), BeatType: strconv.Itoa(s.Meter.BeatType)},
				Clef:      clef,
			}
			xm.Direction = &xmlDirection{
				Placement: "above",
				Type:      xmlDirectionType{Metronome: xmlMetronome{BeatUnit: "quarter", PerMinute: tempo}},
				Sound:     xmlSound{Tempo: tempo},
			}
		}
		for _, ev := range m.Events {
			xm.Notes = append(xm.Notes, eventXML(ev, s, measureLen))
		}
		part.Measures = append(part.Measures, xm)
	}
	doc.Parts = []xmlPart{part}
	return doc
}

func eventXML(ev Event, s *Score, measureLen int) xmlNote {
	n := xmlNote{Duration: ev.Duration, Voice: "1"}
	if ev.Rest {
		n.Rest = &xmlRest{}
		if ev.Duration == measureLen {
			n.Rest.Measure = "yes"
			return n
		}
	} else {
		step, alter, octave := spell(ev.Pitch, s.Key)
		n.Pitch = &xmlPitch{Step: step, Alter: alter, Octave: octave}
		var tied []xmlTie
		if ev.TieStop {
			n.Ties = append(n.Ties, xmlTie{Type: "stop"})
			tied = append(tied, xmlTie{Type: "stop"})
		}
		if ev.TieStart {
			n.Ties = append(n.Ties, xmlTie{Type: "start"})
			tied = append(tied, xmlTie{Type: "start"})
		}
		if len(tied) > 0 {
			n.Notations = &xmlNotations{Tied: tied}
		}
	}
	if name, dotted := noteType(ev.Duration, s.Divisions); name != "" {
		n.Type = name
		if dotted {
			n.Dot = &struct{}{}
		}
	}
	return n
}

func averagePitch(s *Score) float64 {
	if len(s.Notes) == 0 {
		return 60
	}
	var sum float64
	for _, n := range s.Notes {
		sum += float64(n.Key)
	}
	return sum / float64(len(s.Notes))
}

// writeMusicXML writes the document with XML declaration and doctype.
func (d *Document) writeMusicXML(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(musicXMLDoctype)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d.toXML()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
