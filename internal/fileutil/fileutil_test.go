package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "nested", "dst.wav")

	content := []byte("RIFF fake audio")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestSaveLimited(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "upload.bin")

	n, err := SaveLimited(strings.NewReader("12345"), dst, 5)
	if err != nil || n != 5 {
		t.Fatalf("expected 5 bytes saved, got %d (%v)", n, err)
	}

	_, err = SaveLimited(strings.NewReader("123456"), dst, 5)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatal("expected oversized upload to be removed")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "score.musicxml")

	if err := WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "<score/>")
		return err
	}); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if !NonEmpty(path) {
		t.Fatal("expected written file to be non-empty")
	}

	boom := errors.New("boom")
	failed := filepath.Join(dir, "out", "failed.mid")
	if err := WriteAtomic(failed, func(io.Writer) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
	if _, err := os.Stat(failed); !os.IsNotExist(err) {
		t.Fatal("expected no file after failed write")
	}
	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}
