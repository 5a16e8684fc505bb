package notation

import "testing"

func TestNoteType(t *testing.T) {
	cases := []struct {
		duration int
		name     string
		dotted   bool
	}{
		{1920, "whole", false},
		{960, "half", false},
		{720, "quarter", true},
		{480, "quarter", false},
		{240, "eighth", false},
		{180, "16th", true},
		{120, "16th", false},
		{100, "", false},
	}
	for _, tc := range cases {
		name, dotted := noteType(tc.duration, 480)
		if name != tc.name || dotted != tc.dotted {
			t.Fatalf("noteType(%d) = %q/%v, want %q/%v", tc.duration, name, dotted, tc.name, tc.dotted)
		}
	}
}

func TestSpell(t *testing.T) {
	step, alter, octave := spell(61, &Key{Tonic: 2, Mode: Major})
	if step != "C" || alter != 1 || octave != 4 {
		t.Fatalf("sharp spelling: %s %d %d", step, alter, octave)
	}
	step, alter, octave = spell(70, &Key{Tonic: 5, Mode: Major})
	if step != "B" || alter != -1 || octave != 4 {
		t.Fatalf("flat spelling: %s %d %d", step, alter, octave)
	}
}
