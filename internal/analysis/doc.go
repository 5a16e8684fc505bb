// Package analysis extracts pitch, onset and spectral features from PCM.
//
// Pitch follows YIN: a cumulative mean normalized difference function built
// from an FFT cross-correlation, searched between the configured fmin and
// fmax. Onsets come from log-power spectral flux with local-maximum peak
// picking, backtracked to the preceding energy minimum. Spectral centroids
// share the same STFT frames and serve as the pitch proxy when YIN finds no
// voiced frames.
//
// Frames are centered: frame i covers samples around i*hop, with the signal
// zero-padded by half a frame at both ends.
package analysis
