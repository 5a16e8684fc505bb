package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"soundsketch/internal/services"
	"soundsketch/internal/stage"
)

var commandContext = exec.CommandContext

// TranscoderBackend shells out to ffmpeg, which handles any container it was
// built with, and reads mono 32-bit float PCM from its stdout.
type TranscoderBackend struct {
	Binary string
}

func (TranscoderBackend) Name() string { return "transcoder" }

func (t TranscoderBackend) binary() string {
	if bin := strings.TrimSpace(t.Binary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// HealthCheck reports whether the ffmpeg binary can be found.
func (t TranscoderBackend) HealthCheck(context.Context) stage.Health {
	bin := t.binary()
	if _, err := exec.LookPath(bin); err != nil {
		return stage.Unhealthy(t.Name(), bin+" not found; only WAV, FLAC, MP3 and Ogg Vorbis decode natively")
	}
	return stage.Healthy(t.Name())
}

func (t TranscoderBackend) Decode(ctx context.Context, path string, targetRate int) (*Buffer, error) {
	bin := t.binary()
	if _, err := exec.LookPath(bin); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decode", "locate ffmpeg", bin+" not found on PATH", err)
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(targetRate),
		"-f", "f32le",
		"-",
	}
	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, bin, args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	samples := decodeFloat32LE(stdout.Bytes())
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	clampSamples(samples)
	return &Buffer{Samples: samples, SampleRate: targetRate}, nil
}

func decodeFloat32LE(raw []byte) []float64 {
	count := len(raw) / 4
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	return out
}
