package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"soundsketch/internal/analysis"
	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/services"
)

// Report describes which strategy produced the stream and any fallbacks
// taken on the way. Notes are human-readable and end up in the job's errors.
type Report struct {
	Strategy string
	Notes    []string
	// Cause is set when the default note stands in for degenerate analysis
	// and carries services.ErrAnalysisDegenerate.
	Cause error
}

// Chain runs segmenters in order until one yields notes.
type Chain struct {
	segmenters []Segmenter
	logger     *slog.Logger
}

// NewChain builds the primary then fallback chain from configuration. The
// analyzer recomputes onsets for the fallback when full analysis failed.
func NewChain(cfg config.Transcription, hop int, analyzer *analysis.Analyzer, logger *slog.Logger) *Chain {
	fallback := Fallback{
		MinDuration: cfg.FallbackMinNoteSeconds,
		MaxDuration: cfg.FallbackMaxNoteSeconds,
		Hop:         hop,
	}
	if analyzer != nil {
		fallback.Spectral = analyzer.Spectral
	}
	return NewChainWith(logger, Primary{MinDuration: cfg.MinNoteSeconds}, fallback)
}

// NewChainWith builds a chain from explicit strategies.
func NewChainWith(logger *slog.Logger, segmenters ...Segmenter) *Chain {
	return &Chain{
		segmenters: segmenters,
		logger:     logging.NewComponentLogger(logger, "segment"),
	}
}

// Segment returns a sorted, never-empty stream.
func (c *Chain) Segment(ctx context.Context, in Input) (Stream, Report) {
	logger := logging.WithContext(ctx, c.logger)
	var report Report
	for i, seg := range c.segmenters {
		notes, err := c.run(ctx, seg, in)
		if err == nil {
			notes.Sort()
			if verr := notes.Validate(); verr != nil {
				err = verr
			} else {
				report.Strategy = seg.Name()
				if i > 0 {
					report.Notes = append(report.Notes, fmt.Sprintf("%s segmentation produced %d notes", seg.Name(), len(notes)))
				}
				logger.Info("notes segmented",
					logging.String("strategy", seg.Name()),
					logging.Int("notes", len(notes)),
				)
				return notes, report
			}
		}
		report.Notes = append(report.Notes, describeFailure(seg.Name(), err))
		logger.Debug("segmentation strategy yielded nothing",
			logging.String("strategy", seg.Name()),
			logging.Error(err),
		)
	}

	notes, _ := EnsureNonEmpty(nil)
	report.Strategy = "default"
	if in.Analysis != nil && in.Analysis.Degenerate() {
		report.Cause = services.Wrap(services.ErrAnalysisDegenerate, "segment", "analyze",
			"no voiced frames or onsets", nil)
		report.Notes = append(report.Notes, services.Details(report.Cause))
	}
	report.Notes = append(report.Notes, "no notes detected; inserted a default middle C note")
	logging.WarnWithContext(logger, "segmentation empty, default note inserted", "segment_default_note",
		logging.String(logging.FieldErrorHint, "input may be silent or unpitched"),
		logging.String(logging.FieldImpact, "transcription holds a single placeholder note"),
	)
	return notes, report
}

func (c *Chain) run(ctx context.Context, seg Segmenter, in Input) (notes Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			notes, err = nil, fmt.Errorf("%s segmenter panic: %v", seg.Name(), r)
		}
	}()
	notes, err = seg.Segment(ctx, in)
	if err == nil && len(notes) == 0 {
		err = ErrNoNotes
	}
	return notes, err
}

func describeFailure(name string, err error) string {
	switch {
	case errors.Is(err, ErrNoNotes):
		return fmt.Sprintf("%s segmentation found no notes", name)
	case errors.Is(err, ErrAnalysisUnavailable):
		return fmt.Sprintf("%s segmentation skipped: %v", name, err)
	default:
		return fmt.Sprintf("%s segmentation failed: %v", name, err)
	}
}
