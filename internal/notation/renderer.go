package notation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"soundsketch/internal/fileutil"
	"soundsketch/internal/logging"
	"soundsketch/internal/midi"
	"soundsketch/internal/services"
)

var (
	// ErrEmptyScore means the source file holds no notes.
	ErrEmptyScore = errors.New("score has no notes")
	// ErrInvalidMeter means a measure would span no divisions.
	ErrInvalidMeter = errors.New("meter has no measure length")
)

// RenderError reports a failed render.
type RenderError struct {
	Path string
	Op   string
	Err  error
}

func (e *RenderError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("notation rendering failed (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("notation rendering failed (%s) for %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes the render marker and the cause.
func (e *RenderError) Unwrap() []error {
	return []error{services.ErrRender, e.Err}
}

// Document is a rendered score.
type Document struct {
	Score    *Score
	Measures []Measure
	// KeyInferred is false when inference failed and C major was used.
	KeyInferred bool
	Path        string
}

// Renderer converts MIDI files to MusicXML.
type Renderer struct {
	logger *slog.Logger
	// gridPerQuarter sets quantization: 4 snaps to sixteenth notes.
	gridPerQuarter int
}

// NewRenderer returns a renderer quantizing to sixteenth notes.
func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{
		logger:         logging.NewComponentLogger(logger, "notation"),
		gridPerQuarter: 4,
	}
}

// Render reads the track's MIDI file and writes MusicXML to path.
func (r *Renderer) Render(ctx context.Context, track *midi.Track, path string) (*Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if track == nil {
		return nil, &RenderError{Path: path, Op: "parse", Err: errors.New("no track")}
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String("stem", track.Stem))
	started := time.Now()

	file, err := midi.ReadFile(track.Path)
	if err != nil {
		return nil, &RenderError{Path: path, Op: "parse", Err: err}
	}
	doc, err := r.Build(ctx, file, track.Stem)
	if err != nil {
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			renderErr.Path = path
			return nil, renderErr
		}
		return nil, &RenderError{Path: path, Op: "build", Err: err}
	}
	if err := fileutil.WriteAtomic(path, doc.writeMusicXML); err != nil {
		return nil, &RenderError{Path: path, Op: "write", Err: err}
	}
	doc.Path = path

	logger.Info("notation rendered",
		logging.String("key", doc.Score.Key.String()),
		logging.Int("measures", len(doc.Measures)),
		logging.Int("notes", len(doc.Score.Notes)),
		logging.String("path", path),
		logging.Duration("elapsed", time.Since(started)),
	)
	return doc, nil
}

// Build annotates a parsed file and lays it out without writing anything.
func (r *Renderer) Build(ctx context.Context, file *midi.File, stem string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	score := FromFile(file)
	if len(score.Notes) == 0 {
		return nil, ErrEmptyScore
	}
	if score.Divisions <= 0 {
		return nil, fmt.Errorf("invalid divisions %d", score.Divisions)
	}
	score.SetMetadata(stem)

	doc := &Document{Score: score, KeyInferred: true}
	key, err := InferKey(score.Notes)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "key inference failed", "notation_key_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "pitch content too sparse to correlate"),
			logging.String(logging.FieldImpact, "score notated in C major"),
		)
		key = CMajor()
		doc.KeyInferred = false
	}
	score.Key = key
	score.EnsureTimeSignature(DefaultBeats, DefaultBeatType)
	score.EnsureTempo(DefaultTempoBPM)
	if score.MeasureTicks() <= 0 {
		return nil, &RenderError{Op: "layout", Err: fmt.Errorf("%w: %d/%d at %d divisions per quarter",
			ErrInvalidMeter, score.Meter.Beats, score.Meter.BeatType, score.Divisions)}
	}

	doc.Measures = score.Layout(max(1, score.Divisions/r.gridPerQuarter))
	return doc, nil
}
