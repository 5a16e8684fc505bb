package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"soundsketch/internal/config"
	"soundsketch/internal/logging"
	"soundsketch/internal/stage"
)

// Decoder loads audio files by trying each backend in order.
// It holds no per-call state and is safe for concurrent use.
type Decoder struct {
	targetRate int
	backends   []Backend
	logger     *slog.Logger
}

// Option customizes a Decoder.
type Option func(*Decoder)

// WithBackends replaces the default backend chain.
func WithBackends(backends ...Backend) Option {
	return func(d *Decoder) {
		d.backends = append([]Backend(nil), backends...)
	}
}

// WithLogger attaches a logger for per-attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// NewDecoder builds a decoder targeting cfg.SampleRate with the default
// container, compressed and transcoder backends.
func NewDecoder(cfg config.Audio, opts ...Option) *Decoder {
	d := &Decoder{
		targetRate: cfg.SampleRate,
		backends:   DefaultBackends(cfg.FFmpegBinary),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "audio")
	return d
}

// TargetRate returns the sample rate every decoded Buffer uses.
func (d *Decoder) TargetRate() int {
	return d.targetRate
}

// HealthCheck reports the decoder ready when at least one backend is. Backends
// that can report their own health are consulted; the rest count as ready.
func (d *Decoder) HealthCheck(ctx context.Context) stage.Health {
	var degraded []string
	ready := false
	for _, backend := range d.backends {
		checker, ok := backend.(stage.Checker)
		if !ok {
			ready = true
			continue
		}
		if h := checker.HealthCheck(ctx); h.Ready {
			ready = true
		} else {
			degraded = append(degraded, h.Detail)
		}
	}
	if !ready {
		return stage.Unhealthy("decoder", strings.Join(degraded, "; "))
	}
	h := stage.Healthy("decoder")
	h.Detail = strings.Join(degraded, "; ")
	return h
}

// Decode returns the first successful backend's buffer, or a *DecodeError
// listing every failed attempt.
func (d *Decoder) Decode(ctx context.Context, path string) (*Buffer, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d.targetRate <= 0 {
		return nil, fmt.Errorf("invalid target sample rate %d", d.targetRate)
	}
	logger := logging.WithContext(ctx, d.logger).With(logging.String("file", filepath.Base(path)))
	decodeErr := &DecodeError{Path: path, Ext: strings.ToLower(filepath.Ext(path))}

	for _, backend := range d.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()
		logger.Debug("decode attempt", logging.String("backend", backend.Name()))

		buf, err := d.attempt(ctx, backend, path)
		if err != nil {
			decodeErr.Attempts = append(decodeErr.Attempts, Attempt{Backend: backend.Name(), Err: err})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if errors.Is(err, ErrUnsupported) {
				logger.Debug("decode backend skipped", logging.String("backend", backend.Name()), logging.Error(err))
				continue
			}
			logging.WarnWithContext(logger, "decode backend failed", "audio_decode_attempt_failed",
				logging.String("backend", backend.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "next backend will be tried"),
				logging.String(logging.FieldImpact, "none unless every backend fails"),
			)
			continue
		}

		logger.Info("audio decoded",
			logging.String("backend", backend.Name()),
			logging.Int("samples", buf.Len()),
			logging.Int("sample_rate", buf.SampleRate),
			logging.Duration("audio_duration", buf.Duration()),
			logging.Duration("elapsed", time.Since(started)),
		)
		return buf, nil
	}

	logging.ErrorWithContext(logger, "all decode backends failed", "audio_decode_failed",
		logging.Int("attempts", len(decodeErr.Attempts)),
		logging.String(logging.FieldErrorHint, decodeErr.Remediation()),
	)
	return nil, decodeErr
}

// attempt runs one backend and enforces the Buffer post-conditions.
func (d *Decoder) attempt(ctx context.Context, backend Backend, path string) (buf *Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()
	buf, err = backend.Decode(ctx, path, d.targetRate)
	if err != nil {
		return nil, err
	}
	switch {
	case buf == nil || buf.Len() == 0:
		return nil, ErrEmpty
	case buf.SampleRate != d.targetRate:
		return nil, fmt.Errorf("backend returned %d Hz, want %d Hz", buf.SampleRate, d.targetRate)
	}
	clampSamples(buf.Samples)
	return buf, nil
}
