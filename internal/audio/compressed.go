package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/faiface/beep/vorbis"
	"github.com/hajimehoshi/go-mp3"
)

// CompressedBackend decodes lossy formats in pure Go: MP3 frames through
// go-mp3 and Ogg Vorbis through beep.
type CompressedBackend struct{}

func (CompressedBackend) Name() string { return "compressed" }

func (CompressedBackend) Decode(ctx context.Context, path string, targetRate int) (*Buffer, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatMP3:
		return decodeMP3(ctx, path, targetRate)
	case FormatOgg:
		return decodeVorbis(ctx, path, targetRate)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
}

// go-mp3 always yields interleaved 16-bit little-endian stereo.
const mp3FrameBytes = 4

func decodeMP3(ctx context.Context, path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("mp3 header: %w", err)
	}

	chunk := make([]byte, streamChunk*mp3FrameBytes)
	var (
		samples []float64
		carry   []byte
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := dec.Read(chunk)
		data := append(carry, chunk[:n]...)
		whole := len(data) - len(data)%mp3FrameBytes
		for i := 0; i < whole; i += mp3FrameBytes {
			left := int16(binary.LittleEndian.Uint16(data[i:]))
			right := int16(binary.LittleEndian.Uint16(data[i+2:]))
			samples = append(samples, (float64(left)+float64(right))/2/32768)
		}
		carry = append(carry[:0], data[whole:]...)
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("mp3 frames: %w", readErr)
		}
	}
	return finish(ctx, samples, dec.SampleRate(), targetRate)
}

func decodeVorbis(ctx context.Context, path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	streamer, native, err := vorbis.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vorbis header: %w", err)
	}
	// Closing the streamer closes f.
	defer streamer.Close()

	samples, err := drain(ctx, streamer)
	if err != nil {
		return nil, err
	}
	return finish(ctx, samples, int(native.SampleRate), targetRate)
}
