package services

import (
	"errors"
	"fmt"
	"strings"

	"soundsketch/internal/queue"
)

var (
	ErrDecode             = errors.New("decode error")
	ErrAnalysisDegenerate = errors.New("analysis degenerate")
	ErrEncode             = errors.New("encode error")
	ErrRender             = errors.New("render error")
	ErrExternalTool       = errors.New("external tool error")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
	ErrTimeout            = errors.New("timeout")
	ErrTransient          = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a pipeline error to the job status that should be
// persisted. Only failures that leave no usable output mark the job failed;
// encode and render failures keep whatever artifacts were produced.
func FailureStatus(err error) queue.Status {
	switch {
	case err == nil:
		return queue.StatusCompleted
	case errors.Is(err, ErrEncode), errors.Is(err, ErrRender), errors.Is(err, ErrAnalysisDegenerate):
		return queue.StatusCompletedWithErrors
	default:
		return queue.StatusFailed
	}
}

// Details returns the innermost human-readable message of err, skipping the
// marker and stage prefixes that Wrap adds.
func Details(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrDecode, ErrAnalysisDegenerate, ErrEncode, ErrRender, ErrExternalTool, ErrValidation, ErrConfiguration, ErrNotFound, ErrTimeout, ErrTransient} {
		prefix := marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
