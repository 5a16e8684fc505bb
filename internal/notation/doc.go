// Package notation turns an encoded MIDI track into a MusicXML score.
//
// The renderer parses the file, names the part, infers a key, makes sure a
// time signature and tempo are present exactly once, lays the notes out in
// measures and writes MusicXML 4.0 partwise.
package notation
