// Package segment turns pitch and onset features into discrete notes.
//
// Primary groups consecutive voiced frames into notes pitched at the median
// of the run. Fallback builds notes between consecutive onsets and pitches
// them from the spectral centroid. Chain runs the strategies in order and
// then applies EnsureNonEmpty, so the stream handed to encoding always holds
// at least one note.
package segment
