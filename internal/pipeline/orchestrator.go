package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"soundsketch/internal/analysis"
	"soundsketch/internal/audio"
	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/midi"
	"soundsketch/internal/notation"
	"soundsketch/internal/queue"
	"soundsketch/internal/segment"
	"soundsketch/internal/services"
	"soundsketch/internal/stage"
	"soundsketch/internal/textutil"
)

// Decoder loads an audio file into a mono buffer.
type Decoder interface {
	Decode(ctx context.Context, path string) (*audio.Buffer, error)
}

// Analyzer extracts pitch frames, onsets and centroids.
type Analyzer interface {
	Analyze(ctx context.Context, buf *audio.Buffer) (*analysis.Result, error)
}

// Segmenter turns analysis into a never-empty note stream.
type Segmenter interface {
	Segment(ctx context.Context, in segment.Input) (segment.Stream, segment.Report)
}

// Encoder writes a note stream as a MIDI file.
type Encoder interface {
	Encode(ctx context.Context, notes segment.Stream, stem, path string) (*midi.Track, error)
}

// Renderer writes a MusicXML score for an encoded track.
type Renderer interface {
	Render(ctx context.Context, track *midi.Track, path string) (*notation.Document, error)
}

// Orchestrator runs transcriptions. It holds no per-run state and may be
// shared by concurrent workers.
type Orchestrator struct {
	outputDir   string
	defaultStem string
	timeout     time.Duration

	decoder   Decoder
	analyzer  Analyzer
	segmenter Segmenter
	encoder   Encoder
	renderer  Renderer
	observer  stage.Observer
	logger    *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithDecoder(d Decoder) Option     { return func(o *Orchestrator) { o.decoder = d } }
func WithAnalyzer(a Analyzer) Option   { return func(o *Orchestrator) { o.analyzer = a } }
func WithSegmenter(s Segmenter) Option { return func(o *Orchestrator) { o.segmenter = s } }
func WithEncoder(e Encoder) Option     { return func(o *Orchestrator) { o.encoder = e } }
func WithRenderer(r Renderer) Option   { return func(o *Orchestrator) { o.renderer = r } }

// WithObserver reports stage transitions, e.g. to persist job progress.
func WithObserver(obs stage.Observer) Option { return func(o *Orchestrator) { o.observer = obs } }

// WithTimeout overrides the configured per-run deadline. Zero disables it.
func WithTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.timeout = d } }

// New wires the default components from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	analyzer := analysis.NewAnalyzer(analysis.ParamsFromConfig(cfg.Audio), logger)
	o := &Orchestrator{
		outputDir:   cfg.Paths.OutputDir,
		defaultStem: cfg.Transcription.DefaultStem,
		timeout:     cfg.JobTimeout(),
		decoder:     audio.NewDecoder(cfg.Audio, audio.WithLogger(logger)),
		analyzer:    analyzer,
		segmenter:   segment.NewChain(cfg.Transcription, cfg.Audio.HopLength, analyzer, logger),
		encoder:     midi.NewEncoder(cfg.MIDI, midi.WithLogger(logger)),
		renderer:    notation.NewRenderer(logger),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(logger, "pipeline")
	return o
}

// HealthCheck reports the decoder's readiness when it can tell.
func (o *Orchestrator) HealthCheck(ctx context.Context) stage.Health {
	if checker, ok := o.decoder.(stage.Checker); ok {
		return checker.HealthCheck(ctx)
	}
	return stage.Healthy("pipeline")
}

// Run transcribes inputPath under jobID with the default stem.
func (o *Orchestrator) Run(ctx context.Context, inputPath, jobID string) *Result {
	return o.RunRequest(ctx, Request{InputPath: inputPath, JobID: jobID})
}

// RunRequest transcribes one file. The returned Result is always non-nil and
// always carries a terminal status.
func (o *Orchestrator) RunRequest(ctx context.Context, req Request) (res *Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	res = &Result{
		JobID:     strings.TrimSpace(req.JobID),
		InputPath: req.InputPath,
		Stem:      SanitizeStem(req.Stem, o.defaultStem),
		Status:    queue.StatusQueued,
		Started:   time.Now(),
	}
	if res.JobID == "" {
		res.JobID = uuid.NewString()
	}
	ctx = services.WithJobID(ctx, res.JobID)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	logger := logging.WithContext(ctx, o.logger)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			res.note(fmt.Sprintf("internal error during %s: %v", res.Stage, r))
			res.Err = err
			if res.MIDIPath != "" {
				res.Status = queue.StatusCompletedWithErrors
			} else {
				res.Status = queue.StatusFailed
			}
			logging.ErrorWithContext(logger, "transcription panicked", "pipeline_panic",
				logging.String("stage", res.Stage),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldImpact, "job ended early"),
			)
		}
		res.Finished = time.Now()
		logger.Info("transcription finished",
			logging.String("status", string(res.Status)),
			logging.Int("notes", res.NoteCount()),
			logging.Int("errors", len(res.Errors)),
			logging.Duration("elapsed", res.Duration()),
		)
	}()

	res.Status = queue.StatusProcessing
	logger.Info("transcription started",
		logging.String("input", filepath.Base(req.InputPath)),
		logging.String("stem", res.Stem),
	)
	o.run(ctx, res)
	return res
}

func (o *Orchestrator) run(ctx context.Context, res *Result) {
	ctx = o.enter(ctx, res, stage.Decode)
	buf, err := o.decoder.Decode(ctx, res.InputPath)
	if err != nil {
		o.fail(ctx, res, err)
		return
	}

	ctx = o.enter(ctx, res, stage.Analyze)
	features, err := o.analyze(ctx, buf)
	if o.expired(ctx, res) {
		return
	}
	if err != nil {
		res.note(fmt.Sprintf("pitch analysis failed (%v); using spectral fallback", err))
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "pitch analysis failed", "pipeline_analysis_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "notes come from onset and centroid heuristics"),
		)
	}

	ctx = o.enter(ctx, res, stage.Segment)
	notes, report := o.segmenter.Segment(ctx, segment.Input{Analysis: features, Buffer: buf})
	if o.expired(ctx, res) {
		return
	}
	res.Notes = notes
	res.Strategy = report.Strategy
	res.Errors = append(res.Errors, report.Notes...)

	ctx = o.enter(ctx, res, stage.Encode)
	midiPath := filepath.Join(o.jobDir(res.JobID), "midi", res.Stem+".mid")
	track, err := o.encoder.Encode(ctx, notes, res.Stem, midiPath)
	if err != nil {
		if o.expired(ctx, res) {
			return
		}
		res.note(fmt.Sprintf("MIDI encoding failed: %v", err))
		res.Status = queue.StatusCompletedWithErrors
		return
	}
	res.MIDIPath = track.Path
	res.Encoder = track.Writer
	for _, failure := range track.Failures {
		res.note(fmt.Sprintf("%s MIDI encoder failed (%v); used %s encoder", failure.Writer, failure.Err, track.Writer))
	}

	ctx = o.enter(ctx, res, stage.Render)
	xmlPath := filepath.Join(o.jobDir(res.JobID), "musicxml", res.Stem+".musicxml")
	doc, err := o.renderer.Render(ctx, track, xmlPath)
	if err != nil {
		if o.expired(ctx, res) {
			return
		}
		res.note(fmt.Sprintf("notation rendering failed: %v", err))
		res.Status = queue.StatusCompletedWithErrors
		return
	}
	res.MusicXMLPath = doc.Path
	if doc.Score != nil && doc.Score.Key != nil {
		res.Key = doc.Score.Key.String()
	}
	res.Status = queue.StatusCompleted
}

// analyze shields the run from analyzer panics so the fallback can proceed.
func (o *Orchestrator) analyze(ctx context.Context, buf *audio.Buffer) (result *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return o.analyzer.Analyze(ctx, buf)
}

func (o *Orchestrator) enter(ctx context.Context, res *Result, name stage.Name) context.Context {
	res.Stage = string(name)
	ctx = services.WithStage(ctx, string(name))
	if o.observer != nil {
		o.observer.StageStarted(ctx, res.JobID, name)
	}
	return ctx
}

// expired ends the run when its deadline passed or it was cancelled.
func (o *Orchestrator) expired(ctx context.Context, res *Result) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = services.Wrap(services.ErrTimeout, res.Stage, "run", "job exceeded its time limit", err)
	}
	o.fail(ctx, res, err)
	if res.MIDIPath != "" {
		res.Status = queue.StatusCompletedWithErrors
	}
	return true
}

func (o *Orchestrator) fail(ctx context.Context, res *Result, err error) {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, res.Stage, "run", "job exceeded its time limit", err)
	}
	res.Err = err
	res.Status = queue.StatusFailed
	res.note(describe(err))
	logging.ErrorWithContext(logging.WithContext(ctx, o.logger), "transcription failed", "pipeline_failed",
		logging.String("stage", res.Stage),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint(err)),
	)
}

func (o *Orchestrator) jobDir(jobID string) string {
	return filepath.Join(o.outputDir, jobID)
}

func describe(err error) string {
	var decodeErr *audio.DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Error()
	}
	return services.Details(err)
}

func hint(err error) string {
	var decodeErr *audio.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		return decodeErr.Remediation()
	case errors.Is(err, services.ErrTimeout):
		return "raise workflow.job_timeout_seconds or submit a shorter file"
	default:
		return "see job log for details"
	}
}

// SanitizeStem lowercases a stem label and strips characters unsafe in file
// names. An empty result falls back to def, then to "audio".
func SanitizeStem(stem, def string) string {
	return textutil.Token(stem, def, "audio")
}
