package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"soundsketch/internal/services"
)

// ErrUnsupported is returned by a backend that does not handle the file's format.
var ErrUnsupported = errors.New("format not handled by backend")

// ErrEmpty is returned when a backend decodes zero samples.
var ErrEmpty = errors.New("decoded audio is empty")

// Attempt records one failed backend.
type Attempt struct {
	Backend string
	Err     error
}

// DecodeError reports that no backend could read a file.
type DecodeError struct {
	Path     string
	Ext      string
	Attempts []Attempt
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Backend, attempt.Err))
	}
	return fmt.Sprintf("could not load audio file %s (%s). %s", filepath.Base(e.Path), strings.Join(parts, "; "), e.Remediation())
}

// Remediation tells the user how to make the file decodable.
func (e *DecodeError) Remediation() string {
	if needsTranscoder(e.Ext) {
		return fmt.Sprintf("Could not decode %s file. Install FFmpeg (brew install ffmpeg, sudo apt-get install ffmpeg) "+
			"or convert the audio to WAV first.", e.Ext)
	}
	ext := e.Ext
	if ext == "" {
		ext = "(no extension)"
	}
	return fmt.Sprintf("Unsupported audio format: %s. Please use WAV or FLAC, or convert to WAV format.", ext)
}

// Unwrap exposes the decode marker and every backend failure to errors.Is.
func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, services.ErrDecode)
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt.Err)
	}
	return errs
}

func needsTranscoder(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".m4a", ".ogg", ".aac", ".opus", ".wma":
		return true
	default:
		return false
	}
}
