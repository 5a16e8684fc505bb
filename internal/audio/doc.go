// Package audio decodes audio files into normalized mono PCM.
//
// Decoding walks an ordered list of backends and keeps the first result. The
// container backend reads WAV and FLAC through beep. The compressed backend
// decodes MP3 frames with go-mp3 and Ogg Vorbis through beep without any
// external binary. The transcoder backend asks ffmpeg for raw float samples
// and handles everything else. Every backend downmixes by channel averaging
// and resamples to the configured target rate, so callers always receive a
// Buffer at exactly that rate.
package audio
