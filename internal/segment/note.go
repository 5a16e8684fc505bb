package segment

import (
	"fmt"
	"sort"

	"golang.org/x/exp/constraints"
)

// Source identifies the strategy that produced a note.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Note is one discrete note event. Times are seconds.
type Note struct {
	Pitch    int
	Start    float64
	End      float64
	Velocity int
	Source   Source
}

// Duration returns End - Start.
func (n Note) Duration() float64 {
	return n.End - n.Start
}

func (n Note) String() string {
	return fmt.Sprintf("%d@%.3f-%.3f v%d (%s)", n.Pitch, n.Start, n.End, n.Velocity, n.Source)
}

// Stream is an ordered sequence of notes.
type Stream []Note

// Sort orders the stream by start time, then pitch.
func (s Stream) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Start != s[j].Start {
			return s[i].Start < s[j].Start
		}
		return s[i].Pitch < s[j].Pitch
	})
}

// Validate checks the per-note invariants every strategy must uphold.
func (s Stream) Validate() error {
	for i, n := range s {
		switch {
		case n.Pitch < 0 || n.Pitch > 127:
			return fmt.Errorf("note %d: pitch %d outside 0-127", i, n.Pitch)
		case n.Velocity < 1 || n.Velocity > 127:
			return fmt.Errorf("note %d: velocity %d outside 1-127", i, n.Velocity)
		case n.Start < 0:
			return fmt.Errorf("note %d: negative start %.3f", i, n.Start)
		case n.End <= n.Start:
			return fmt.Errorf("note %d: end %.3f not after start %.3f", i, n.End, n.Start)
		}
		if i > 0 && s[i-1].Start > n.Start {
			return fmt.Errorf("note %d: stream not sorted by start", i)
		}
	}
	return nil
}

// DefaultNote is emitted when every strategy comes up empty: middle C for one
// second from time zero.
func DefaultNote() Note {
	return Note{Pitch: 60, Start: 0, End: 1, Velocity: 80, Source: SourceFallback}
}

// EnsureNonEmpty returns s unchanged when it holds notes, otherwise a stream
// containing only DefaultNote. The bool reports whether the default was used.
func EnsureNonEmpty(s Stream) (Stream, bool) {
	if len(s) > 0 {
		return s, false
	}
	return Stream{DefaultNote()}, true
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
