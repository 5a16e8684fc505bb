package notation_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soundsketch/internal/config"
	"soundsketch/internal/midi"
	"soundsketch/internal/notation"
	"soundsketch/internal/segment"
	"soundsketch/internal/services"
)

func scale(pitches ...int) segment.Stream {
	notes := make(segment.Stream, 0, len(pitches))
	for i, p := range pitches {
		notes = append(notes, segment.Note{Pitch: p, Start: float64(i) * 0.5, End: float64(i+1) * 0.5, Velocity: 80})
	}
	return notes
}

func encode(t *testing.T, notes segment.Stream, stem string) *midi.Track {
	t.Helper()
	enc := midi.NewEncoder(config.MIDI{TempoBPM: 120, TicksPerBeat: 480})
	track, err := enc.Encode(context.Background(), notes, stem, filepath.Join(t.TempDir(), stem+".mid"))
	require.NoError(t, err)
	return track
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRenderWritesMusicXML(t *testing.T) {
	track := encode(t, scale(60, 62, 64, 65, 67, 69, 71, 72), "vocals")
	out := filepath.Join(t.TempDir(), "musicxml", "vocals.musicxml")

	doc, err := notation.NewRenderer(nil).Render(context.Background(), track, out)
	require.NoError(t, err)
	assert.Equal(t, out, doc.Path)
	assert.Equal(t, "Vocals Part", doc.Score.Title)
	assert.Equal(t, notation.Composer, doc.Score.Composer)
	assert.Equal(t, &notation.Meter{Beats: 4, BeatType: 4}, doc.Score.Meter)
	assert.InDelta(t, 120, doc.Score.Tempo.BPM, 0.01)
	assert.True(t, doc.KeyInferred)
	assert.Equal(t, 0, doc.Score.Key.Tonic)
	assert.Equal(t, notation.Major, doc.Score.Key.Mode)
	require.Len(t, doc.Measures, 2)
	for _, m := range doc.Measures {
		assert.Len(t, m.Events, 4)
	}

	xml := readString(t, out)
	assert.True(t, strings.HasPrefix(xml, "<?xml"))
	assert.Contains(t, xml, "<!DOCTYPE score-partwise")
	assert.Contains(t, xml, `<score-partwise version="4.0">`)
	assert.Contains(t, xml, "<work-title>Vocals Part</work-title>")
	assert.Contains(t, xml, `<creator type="composer">Generated by SoundSketch</creator>`)
	assert.Contains(t, xml, "<midi-program>53</midi-program>")
	assert.Contains(t, xml, "<type>quarter</type>")
	assert.Equal(t, 1, strings.Count(xml, "<time>"))
	assert.Equal(t, 1, strings.Count(xml, "<sound tempo="))
	assert.Equal(t, 8, strings.Count(xml, "<pitch>"))
}

func TestRenderIsIdempotent(t *testing.T) {
	track := encode(t, scale(60, 64, 67), "piano")
	dir := t.TempDir()
	r := notation.NewRenderer(nil)

	first, err := r.Render(context.Background(), track, filepath.Join(dir, "a.musicxml"))
	require.NoError(t, err)
	second, err := r.Render(context.Background(), track, filepath.Join(dir, "b.musicxml"))
	require.NoError(t, err)

	assert.Equal(t, readString(t, first.Path), readString(t, second.Path))
	assert.False(t, second.Score.EnsureTimeSignature(3, 4))
	assert.False(t, second.Score.EnsureTempo(90))
	assert.Equal(t, 4, second.Score.Meter.Beats)
	assert.InDelta(t, 120, second.Score.Tempo.BPM, 0.01)
	assert.Equal(t, 1, strings.Count(readString(t, second.Path), "<time>"))
}

func TestBuildKeepsExistingMeterAndTempo(t *testing.T) {
	file := &midi.File{
		TicksPerBeat: 480,
		TempoBPM:     90,
		HasTempo:     true,
		MeterNum:     3,
		MeterDen:     4,
		HasMeter:     true,
		Notes:        []midi.TickNote{{Key: 67, Velocity: 80, Start: 0, End: 1440}},
	}
	doc, err := notation.NewRenderer(nil).Build(context.Background(), file, "strings")
	require.NoError(t, err)
	assert.Equal(t, &notation.Meter{Beats: 3, BeatType: 4}, doc.Score.Meter)
	assert.InDelta(t, 90, doc.Score.Tempo.BPM, 0.001)
	assert.Equal(t, 1440, doc.Score.MeasureTicks())
	require.Len(t, doc.Measures, 1)
	assert.Equal(t, []notation.Event{{Pitch: 67, Velocity: 80, Duration: 1440}}, doc.Measures[0].Events)
}

func TestLayoutTiesAcrossBarline(t *testing.T) {
	file := &midi.File{
		TicksPerBeat: 480,
		Notes:        []midi.TickNote{{Key: 62, Velocity: 80, Start: 1440, End: 2400}},
	}
	doc, err := notation.NewRenderer(nil).Build(context.Background(), file, "bass")
	require.NoError(t, err)
	require.Len(t, doc.Measures, 2)
	assert.Equal(t, []notation.Event{
		{Rest: true, Duration: 1440},
		{Pitch: 62, Velocity: 80, Duration: 480, TieStart: true},
	}, doc.Measures[0].Events)
	assert.Equal(t, []notation.Event{
		{Pitch: 62, Velocity: 80, Duration: 480, TieStop: true},
		{Rest: true, Duration: 1440},
	}, doc.Measures[1].Events)
}

func TestLayoutForcesSingleVoice(t *testing.T) {
	file := &midi.File{
		TicksPerBeat: 480,
		Notes: []midi.TickNote{
			{Key: 60, Velocity: 80, Start: 0, End: 960},
			{Key: 64, Velocity: 80, Start: 481, End: 1000},
		},
	}
	doc, err := notation.NewRenderer(nil).Build(context.Background(), file, "other")
	require.NoError(t, err)
	events := doc.Measures[0].Events
	require.Len(t, events, 3)
	// 481 snaps to 480 and 1000 to 960 on the sixteenth grid.
	assert.Equal(t, notation.Event{Pitch: 60, Velocity: 80, Duration: 480}, events[0])
	assert.Equal(t, notation.Event{Pitch: 64, Velocity: 80, Duration: 480}, events[1])
	assert.True(t, events[2].Rest)
}

func TestFlatKeysSpellWithFlats(t *testing.T) {
	track := encode(t, scale(65, 67, 69, 70, 72, 74, 76, 77), "guitar")
	out := filepath.Join(t.TempDir(), "guitar.musicxml")
	doc, err := notation.NewRenderer(nil).Render(context.Background(), track, out)
	require.NoError(t, err)
	assert.Equal(t, -1, doc.Score.Key.Fifths())

	xml := readString(t, out)
	assert.Contains(t, xml, "<fifths>-1</fifths>")
	assert.Contains(t, xml, "<alter>-1</alter>")
	assert.NotContains(t, xml, "<alter>1</alter>")
}

func TestInferKey(t *testing.T) {
	_, err := notation.InferKey(nil)
	assert.ErrorIs(t, err, notation.ErrKeyUndetermined)

	var notes []midi.TickNote
	for i, key := range []uint8{62, 64, 66, 67, 69, 71, 73, 74, 62, 66, 69} {
		notes = append(notes, midi.TickNote{Key: key, Start: uint32(i * 480), End: uint32(i*480 + 480)})
	}
	key, err := notation.InferKey(notes)
	require.NoError(t, err)
	assert.Equal(t, 2, key.Tonic)
	assert.Equal(t, notation.Major, key.Mode)
	assert.Equal(t, 2, key.Fifths())
	assert.Equal(t, "D major", key.String())

	assert.Equal(t, 0, notation.CMajor().Fifths())
	assert.Equal(t, -3, (&notation.Key{Tonic: 0, Mode: notation.Minor}).Fifths())
}

func TestRenderFailures(t *testing.T) {
	r := notation.NewRenderer(nil)
	out := filepath.Join(t.TempDir(), "x.musicxml")

	_, err := r.Render(context.Background(), &midi.Track{Path: filepath.Join(t.TempDir(), "missing.mid")}, out)
	assert.ErrorIs(t, err, services.ErrRender)
	var renderErr *notation.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "parse", renderErr.Op)

	_, err = r.Build(context.Background(), &midi.File{TicksPerBeat: 480}, "vocals")
	assert.ErrorIs(t, err, notation.ErrEmptyScore)

	_, err = r.Render(context.Background(), nil, out)
	assert.ErrorIs(t, err, services.ErrRender)
	assert.NoFileExists(t, out)
}

func TestBuildRejectsMeterWithoutMeasureLength(t *testing.T) {
	file := &midi.File{
		TicksPerBeat: 1,
		MeterNum:     1,
		MeterDen:     8,
		HasMeter:     true,
		Notes:        []midi.TickNote{{Key: 60, Velocity: 80, Start: 0, End: 4}},
	}
	doc, err := notation.NewRenderer(nil).Build(context.Background(), file, "piano")
	require.Error(t, err)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, notation.ErrInvalidMeter)
	assert.ErrorIs(t, err, services.ErrRender)
	var renderErr *notation.RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "layout", renderErr.Op)
}
