package midi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"soundsketch/internal/config"
	"soundsketch/internal/fileutil"
	"soundsketch/internal/logging"
	"soundsketch/internal/segment"
	"soundsketch/internal/services"
)

// ErrEmptyFile means a writer returned success but left no bytes on disk.
var ErrEmptyFile = errors.New("writer produced an empty file")

// Attempt records one failed writer.
type Attempt struct {
	Writer string
	Err    error
}

// EncodeError reports that every writer failed.
type EncodeError struct {
	Path     string
	Attempts []Attempt
}

func (e *EncodeError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Writer, attempt.Err))
	}
	return fmt.Sprintf("midi encoding failed for %s (%s)", e.Path, strings.Join(parts, "; "))
}

// Unwrap exposes the encode marker and each writer failure.
func (e *EncodeError) Unwrap() []error {
	errs := []error{services.ErrEncode}
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt.Err)
	}
	return errs
}

// Encoder writes note streams with the first writer that succeeds.
type Encoder struct {
	ticksPerBeat int
	tempoBPM     float64
	writers      []Writer
	logger       *slog.Logger
}

// Option customizes an Encoder.
type Option func(*Encoder)

// WithWriters replaces the default writer chain.
func WithWriters(writers ...Writer) Option {
	return func(e *Encoder) {
		e.writers = append([]Writer(nil), writers...)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Encoder) {
		e.logger = logger
	}
}

func NewEncoder(cfg config.MIDI, opts ...Option) *Encoder {
	e := &Encoder{
		ticksPerBeat: cfg.TicksPerBeat,
		tempoBPM:     cfg.TempoBPM,
		writers:      DefaultWriters(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "midi")
	return e
}

// Encode writes notes to path. The returned track names the writer used and
// any writers that failed first. When all writers fail the error is an
// *EncodeError.
func (e *Encoder) Encode(ctx context.Context, notes segment.Stream, stem, path string) (*Track, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.WithContext(ctx, e.logger).With(logging.String("stem", stem))
	encodeErr := &EncodeError{Path: path}
	if e.ticksPerBeat <= 0 || e.ticksPerBeat > 0x7FFF || e.tempoBPM <= 0 {
		encodeErr.Attempts = append(encodeErr.Attempts, Attempt{Writer: "config", Err: fmt.Errorf("invalid timing %d tpb at %.2f bpm", e.ticksPerBeat, e.tempoBPM)})
		return nil, encodeErr
	}

	var failures []Attempt
	for _, writer := range e.writers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		track := &Track{
			TicksPerBeat: e.ticksPerBeat,
			TempoBPM:     e.tempoBPM,
			Program:      ProgramForStem(stem),
			Stem:         stem,
			Path:         path,
		}
		started := time.Now()
		if err := e.attempt(ctx, writer, notes, track); err != nil {
			failures = append(failures, Attempt{Writer: writer.Name(), Err: err})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logging.WarnWithContext(logger, "midi writer failed", "midi_writer_failed",
				logging.String("writer", writer.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "next writer will be tried"),
				logging.String(logging.FieldImpact, "none unless every writer fails"),
			)
			continue
		}
		track.Writer = writer.Name()
		track.Failures = failures
		logger.Info("midi encoded",
			logging.String("writer", writer.Name()),
			logging.Int("notes", track.NoteCount()),
			logging.Int("program", track.Program),
			logging.String("path", path),
			logging.Duration("elapsed", time.Since(started)),
		)
		return track, nil
	}

	encodeErr.Attempts = failures
	logging.ErrorWithContext(logger, "all midi writers failed", "midi_encode_failed",
		logging.Int("attempts", len(failures)),
		logging.String(logging.FieldErrorHint, "check output directory permissions and free space"),
	)
	return nil, encodeErr
}

func (e *Encoder) attempt(ctx context.Context, writer Writer, notes segment.Stream, track *Track) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("writer panic: %v", r)
		}
		if err != nil {
			_ = os.Remove(track.Path)
		}
	}()
	if err := os.Remove(track.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale output: %w", err)
	}
	if err := writer.Write(ctx, notes, track); err != nil {
		return err
	}
	if !fileutil.NonEmpty(track.Path) {
		return ErrEmptyFile
	}
	return nil
}
