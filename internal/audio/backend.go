package audio

import (
	"context"
)

// Backend is one decoding strategy. Implementations return ErrUnsupported
// for formats they do not handle and must return samples at targetRate.
type Backend interface {
	Name() string
	Decode(ctx context.Context, path string, targetRate int) (*Buffer, error)
}

// DefaultBackends returns the container, compressed and transcoder backends
// in fallback order.
func DefaultBackends(ffmpegBinary string) []Backend {
	return []Backend{
		ContainerBackend{},
		CompressedBackend{},
		TranscoderBackend{Binary: ffmpegBinary},
	}
}
