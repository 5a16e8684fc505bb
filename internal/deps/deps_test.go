package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank requirement status: %#v", results[2])
	}
}

func TestCheckFFmpegUsesConfiguredBinary(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "my-ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	status := CheckFFmpeg(stub)
	if !status.Available || !status.Optional {
		t.Fatalf("expected optional available ffmpeg, got %#v", status)
	}

	missing := CheckFFmpeg("definitely-missing-ffmpeg")
	if missing.Available {
		t.Fatalf("expected missing ffmpeg, got %#v", missing)
	}
	if FFmpegRequirement("").Command != "ffmpeg" {
		t.Fatal("expected default ffmpeg command")
	}
}
