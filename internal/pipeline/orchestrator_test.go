package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"soundsketch/internal/analysis"
	"soundsketch/internal/audio"
	"soundsketch/internal/config"
	"soundsketch/internal/midi"
	"soundsketch/internal/notation"
	"soundsketch/internal/pipeline"
	"soundsketch/internal/queue"
	"soundsketch/internal/segment"
	"soundsketch/internal/services"
	"soundsketch/internal/stage"
	"soundsketch/internal/testsupport"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithFFmpegBinary("/nonexistent/ffmpeg"))
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected artifact %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("artifact %s is empty", path)
	}
}

func TestRunSilentWAVYieldsDefaultNote(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "silence.wav")
	testsupport.WriteSilentWAV(t, input, cfg.Audio.SampleRate, 2)

	res := pipeline.New(cfg, nil).Run(context.Background(), input, "job-silent")
	if res.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (errors %v, err %v)", res.Status, res.Errors, res.Err)
	}
	if len(res.Notes) != 1 || res.Notes[0] != segment.DefaultNote() {
		t.Fatalf("expected the default note, got %v", res.Notes)
	}
	if res.Strategy != "default" {
		t.Fatalf("unexpected strategy %q", res.Strategy)
	}
	if res.Stem != "audio" {
		t.Fatalf("expected default stem audio, got %q", res.Stem)
	}
	wantMIDI := filepath.Join(cfg.Paths.OutputDir, "job-silent", "midi", "audio.mid")
	wantXML := filepath.Join(cfg.Paths.OutputDir, "job-silent", "musicxml", "audio.musicxml")
	if res.MIDIPath != wantMIDI || res.MusicXMLPath != wantXML {
		t.Fatalf("unexpected artifact paths %q %q", res.MIDIPath, res.MusicXMLPath)
	}
	assertFile(t, res.MIDIPath)
	assertFile(t, res.MusicXMLPath)

	notes, err := midi.ReadNotes(res.MIDIPath)
	if err != nil {
		t.Fatalf("read midi: %v", err)
	}
	if len(notes) != 1 || notes[0].Pitch != 60 {
		t.Fatalf("unexpected midi notes %v", notes)
	}
	file, err := midi.ReadFile(res.MIDIPath)
	if err != nil {
		t.Fatalf("read midi file: %v", err)
	}
	if file.Program != 0 {
		t.Fatalf("expected piano program for the default stem, got %d", file.Program)
	}
	joined := strings.Join(res.Errors, "\n")
	if !strings.Contains(joined, "default middle C") {
		t.Fatalf("expected default note to be reported, got %v", res.Errors)
	}
	if !strings.Contains(joined, "no voiced frames or onsets") {
		t.Fatalf("expected degenerate analysis to be reported, got %v", res.Errors)
	}
	if res.Encoder != "smf" || res.Key == "" {
		t.Fatalf("unexpected encoder %q or key %q", res.Encoder, res.Key)
	}
}

func TestRunZeroByteFileFails(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "empty.wav")
	testsupport.WriteFile(t, input, 0)

	res := pipeline.New(cfg, nil).Run(context.Background(), input, "job-empty")
	if res.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if !errors.Is(res.Err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", res.Err)
	}
	if res.MIDIPath != "" || res.MusicXMLPath != "" || len(res.Notes) != 0 {
		t.Fatalf("failed run must not report artifacts: %+v", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "WAV") {
		t.Fatalf("expected remediation in errors, got %v", res.Errors)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "job-empty")); !os.IsNotExist(err) {
		t.Fatalf("expected no output directory, stat err %v", err)
	}
}

func TestRunSweepProducesPrimaryNotes(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "sweep.wav")
	testsupport.WriteToneWAV(t, input, cfg.Audio.SampleRate, 2, 0.5, testsupport.Sweep(220, 440, 2))

	res := pipeline.New(cfg, nil).RunRequest(context.Background(), pipeline.Request{InputPath: input, JobID: "job-sweep", Stem: "Strings"})
	if res.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (errors %v)", res.Status, res.Errors)
	}
	if res.Strategy != "primary" || len(res.Notes) == 0 {
		t.Fatalf("expected primary notes, got %q %v", res.Strategy, res.Notes)
	}
	low, high := int(analysis.HzToMIDI(220))-1, int(analysis.HzToMIDI(440))+1
	for _, n := range res.Notes {
		if n.Pitch < low || n.Pitch > high {
			t.Fatalf("note %v outside sweep range [%d, %d]", n, low, high)
		}
	}
	if !strings.HasSuffix(res.MIDIPath, filepath.Join("midi", "strings.mid")) {
		t.Fatalf("stem not applied to artifact name: %s", res.MIDIPath)
	}
	file, err := midi.ReadFile(res.MIDIPath)
	if err != nil {
		t.Fatalf("read midi: %v", err)
	}
	if file.Program != 48 {
		t.Fatalf("expected strings program 48, got %d", file.Program)
	}
}

type failingWriter struct{}

func (failingWriter) Name() string { return "broken" }

func (failingWriter) Write(context.Context, segment.Stream, *midi.Track) error {
	return errors.New("read-only file system")
}

func TestRunBothEncodersFailKeepsNotes(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "tone.wav")
	testsupport.WriteToneWAV(t, input, cfg.Audio.SampleRate, 1, 0.5, testsupport.Constant(440))

	enc := midi.NewEncoder(cfg.MIDI, midi.WithWriters(failingWriter{}, failingWriter{}))
	res := pipeline.New(cfg, nil, pipeline.WithEncoder(enc)).Run(context.Background(), input, "job-noenc")
	if res.Status != queue.StatusCompletedWithErrors {
		t.Fatalf("expected completed_with_errors, got %s", res.Status)
	}
	if len(res.Notes) == 0 {
		t.Fatal("note stream must be retained")
	}
	if res.MIDIPath != "" || res.MusicXMLPath != "" {
		t.Fatalf("no artifacts expected, got %q %q", res.MIDIPath, res.MusicXMLPath)
	}
	if !strings.Contains(strings.Join(res.Errors, "\n"), "MIDI encoding failed") {
		t.Fatalf("expected encoding failure note, got %v", res.Errors)
	}
}

func TestRunPrimaryEncoderFailureUsesFallback(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "tone.wav")
	testsupport.WriteToneWAV(t, input, cfg.Audio.SampleRate, 1, 0.5, testsupport.Constant(440))

	enc := midi.NewEncoder(cfg.MIDI, midi.WithWriters(failingWriter{}, midi.RawWriter{}))
	res := pipeline.New(cfg, nil, pipeline.WithEncoder(enc)).Run(context.Background(), input, "job-raw")
	if res.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", res.Status, res.Errors)
	}
	if res.Encoder != "raw" {
		t.Fatalf("expected raw encoder, got %q", res.Encoder)
	}
	if !strings.Contains(strings.Join(res.Errors, "\n"), "broken MIDI encoder failed") {
		t.Fatalf("expected fallback note, got %v", res.Errors)
	}
	assertFile(t, res.MusicXMLPath)
}

type failingRenderer struct{}

func (failingRenderer) Render(_ context.Context, _ *midi.Track, path string) (*notation.Document, error) {
	return nil, &notation.RenderError{Path: path, Op: "write", Err: errors.New("disk full")}
}

func TestRunRenderFailureKeepsMIDI(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "tone.wav")
	testsupport.WriteToneWAV(t, input, cfg.Audio.SampleRate, 1, 0.5, testsupport.Constant(440))

	res := pipeline.New(cfg, nil, pipeline.WithRenderer(failingRenderer{})).Run(context.Background(), input, "job-norender")
	if res.Status != queue.StatusCompletedWithErrors {
		t.Fatalf("expected completed_with_errors, got %s", res.Status)
	}
	assertFile(t, res.MIDIPath)
	if res.MusicXMLPath != "" {
		t.Fatalf("unexpected musicxml path %q", res.MusicXMLPath)
	}
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, *audio.Buffer) (*analysis.Result, error) {
	panic("fft size mismatch")
}

func TestRunAnalysisFailureFallsBack(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "silence.wav")
	testsupport.WriteSilentWAV(t, input, cfg.Audio.SampleRate, 1)

	res := pipeline.New(cfg, nil, pipeline.WithAnalyzer(failingAnalyzer{})).Run(context.Background(), input, "job-noanalysis")
	if !res.Status.HasArtifacts() {
		t.Fatalf("expected a completed status, got %s (%v)", res.Status, res.Errors)
	}
	if len(res.Notes) == 0 {
		t.Fatal("expected non-empty notes")
	}
	if !strings.Contains(res.Errors[0], "pitch analysis failed") {
		t.Fatalf("expected analysis failure first, got %v", res.Errors)
	}
}

type panickyDecoder struct{}

func (panickyDecoder) Decode(context.Context, string) (*audio.Buffer, error) {
	panic("unexpected nil header")
}

func TestRunRecoversFromPanic(t *testing.T) {
	cfg := newConfig(t)
	res := pipeline.New(cfg, nil, pipeline.WithDecoder(panickyDecoder{})).Run(context.Background(), "in.wav", "")
	if res.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if res.JobID == "" {
		t.Fatal("expected generated job id")
	}
	if res.Err == nil || !strings.Contains(res.Errors[0], "internal error during decoding") {
		t.Fatalf("expected recorded panic, got %v", res.Errors)
	}
}

type blockingDecoder struct{}

func (blockingDecoder) Decode(ctx context.Context, _ string) (*audio.Buffer, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunTimesOut(t *testing.T) {
	cfg := newConfig(t)
	orch := pipeline.New(cfg, nil, pipeline.WithDecoder(blockingDecoder{}), pipeline.WithTimeout(20*time.Millisecond))
	res := orch.Run(context.Background(), "in.wav", "job-slow")
	if res.Status != queue.StatusFailed || !errors.Is(res.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout failure, got %s %v", res.Status, res.Err)
	}
}

func TestRunReportsStagesInOrder(t *testing.T) {
	cfg := newConfig(t)
	input := filepath.Join(cfg.Paths.UploadDir, "silence.wav")
	testsupport.WriteSilentWAV(t, input, cfg.Audio.SampleRate, 1)

	var mu sync.Mutex
	var seen []stage.Name
	obs := stage.ObserverFunc(func(_ context.Context, jobID string, name stage.Name) {
		mu.Lock()
		defer mu.Unlock()
		if jobID != "job-stages" {
			t.Errorf("unexpected job id %q", jobID)
		}
		seen = append(seen, name)
	})
	res := pipeline.New(cfg, nil, pipeline.WithObserver(obs)).Run(context.Background(), input, "job-stages")
	if res.Status != queue.StatusCompleted {
		t.Fatalf("unexpected status %s", res.Status)
	}
	want := stage.Ordered()
	if len(seen) != len(want) {
		t.Fatalf("unexpected stages %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("stage %d: got %s want %s", i, seen[i], want[i])
		}
	}
}

func TestSanitizeStem(t *testing.T) {
	cases := []struct{ stem, def, want string }{
		{"Guitar", "vocals", "guitar"},
		{"../../etc", "vocals", "etc"},
		{"", "bass", "bass"},
		{" ", "", "audio"},
		{"lead_vox-2", "vocals", "lead_vox-2"},
	}
	for _, tc := range cases {
		if got := pipeline.SanitizeStem(tc.stem, tc.def); got != tc.want {
			t.Fatalf("SanitizeStem(%q, %q) = %q, want %q", tc.stem, tc.def, got, tc.want)
		}
	}
}
