package notation

import "sort"

// Event is one note or rest inside a measure. Durations are in divisions.
type Event struct {
	Rest     bool
	Pitch    int
	Velocity int
	Duration int
	TieStart bool
	TieStop  bool
}

// Measure is one bar of the part.
type Measure struct {
	Number int
	Events []Event
}

type span struct {
	start, end int
	pitch      int
	velocity   int
}

// Layout quantizes the notes to grid divisions, forces a single voice by
// cutting a note short when the next one starts, fills gaps with rests and
// splits notes across barlines with ties. At least one measure is returned.
func (s *Score) Layout(grid int) []Measure {
	measureLen := s.MeasureTicks()
	spans := s.quantize(grid)

	end := 0
	if len(spans) > 0 {
		end = spans[len(spans)-1].end
	}
	count := max(1, (end+measureLen-1)/measureLen)
	measures := make([]Measure, count)
	for i := range measures {
		measures[i].Number = i + 1
	}

	cursor := 0
	for _, sp := range spans {
		if sp.start > cursor {
			place(measures, measureLen, span{start: cursor, end: sp.start, pitch: -1})
		}
		place(measures, measureLen, sp)
		cursor = sp.end
	}
	if total := count * measureLen; cursor < total {
		place(measures, measureLen, span{start: cursor, end: total, pitch: -1})
	}
	return measures
}

func (s *Score) quantize(grid int) []span {
	if grid <= 0 {
		grid = 1
	}
	snap := func(tick uint32) int {
		return (int(tick) + grid/2) / grid * grid
	}
	spans := make([]span, 0, len(s.Notes))
	for _, n := range s.Notes {
		sp := span{start: snap(n.Start), end: snap(n.End), pitch: int(n.Key), velocity: int(n.Velocity)}
		if sp.end <= sp.start {
			sp.end = sp.start + grid
		}
		spans = append(spans, sp)
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := spans[:0]
	for i, sp := range spans {
		if i+1 < len(spans) && spans[i+1].start < sp.end {
			sp.end = spans[i+1].start
		}
		if sp.end > sp.start {
			out = append(out, sp)
		}
	}
	return out
}

// place writes sp into the measures it covers. Notes crossing a barline are
// tied; rests are simply split.
func place(measures []Measure, measureLen int, sp span) {
	rest := sp.pitch < 0
	for at := sp.start; at < sp.end; {
		idx := at / measureLen
		if idx >= len(measures) {
			return
		}
		pieceEnd := min(sp.end, (idx+1)*measureLen)
		ev := Event{Rest: rest, Duration: pieceEnd - at}
		if !rest {
			ev.Pitch = sp.pitch
			ev.Velocity = sp.velocity
			ev.TieStop = at > sp.start
			ev.TieStart = pieceEnd < sp.end
		}
		measures[idx].Events = append(measures[idx].Events, ev)
		at = pieceEnd
	}
}
