package services_test

import (
	"errors"
	"strings"
	"testing"

	"soundsketch/internal/queue"
	"soundsketch/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDecode, "decode", "ffmpeg", "transcode failed", base)
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"decode", "ffmpeg", "transcode failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	decodeErr := services.Wrap(services.ErrDecode, "decode", "open", "unreadable", nil)
	if status := services.FailureStatus(decodeErr); status != queue.StatusFailed {
		t.Fatalf("expected failed for decode error, got %s", status)
	}
	encodeErr := services.Wrap(services.ErrEncode, "encode", "write", "both writers failed", nil)
	if status := services.FailureStatus(encodeErr); status != queue.StatusCompletedWithErrors {
		t.Fatalf("expected completed_with_errors for encode error, got %s", status)
	}
	renderErr := services.Wrap(services.ErrRender, "render", "parse", "empty score", nil)
	if status := services.FailureStatus(renderErr); status != queue.StatusCompletedWithErrors {
		t.Fatalf("expected completed_with_errors for render error, got %s", status)
	}
	if status := services.FailureStatus(nil); status != queue.StatusCompleted {
		t.Fatalf("expected completed for nil error, got %s", status)
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrRender, "render", "parse", "empty score", nil)
	if got := services.Details(err); got != "render: parse: empty score" {
		t.Fatalf("unexpected details %q", got)
	}
	if services.Details(nil) != "" {
		t.Fatal("expected empty details for nil")
	}
}
