package audio

import (
	"context"
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/wav"
)

// ContainerBackend reads uncompressed and lossless containers (WAV, FLAC).
type ContainerBackend struct{}

func (ContainerBackend) Name() string { return "container" }

func (ContainerBackend) Decode(ctx context.Context, path string, targetRate int) (*Buffer, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		native   beep.Format
	)
	switch format {
	case FormatWAV:
		streamer, native, err = wav.Decode(f)
	case FormatFLAC:
		streamer, native, err = flac.Decode(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", format, err)
	}
	defer streamer.Close()

	samples, err := drain(ctx, streamer)
	if err != nil {
		return nil, err
	}
	return finish(ctx, samples, int(native.SampleRate), targetRate)
}
