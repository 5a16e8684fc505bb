// Package midi encodes note streams as Standard MIDI Files and reads them back.
//
// Encoder runs an ordered chain of Writers. The smf writer builds the file
// with gomidi; when it fails the raw writer emits a minimal single-track file
// byte by byte. Both produce tempo, program change and paired note-on/off
// events so the notation stage can parse either output.
package midi
