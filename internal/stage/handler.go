package stage

import (
	"context"
	"strings"
	"unicode"
)

// Name identifies a pipeline stage. Values are persisted in the job's stage
// column and shown by the status endpoint.
type Name string

const (
	Decode  Name = "decoding"
	Analyze Name = "analyzing"
	Segment Name = "segmenting"
	Encode  Name = "encoding"
	Render  Name = "rendering"
)

// Ordered lists the stages in execution order.
func Ordered() []Name {
	return []Name{Decode, Analyze, Segment, Encode, Render}
}

// Label returns a human-readable form, e.g. "Decoding".
func (n Name) Label() string {
	if n == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(n), "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}

// Observer is told when a run enters a stage.
type Observer interface {
	StageStarted(ctx context.Context, jobID string, name Name)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, jobID string, name Name)

func (f ObserverFunc) StageStarted(ctx context.Context, jobID string, name Name) {
	f(ctx, jobID, name)
}

// Checker reports whether a component is ready to run.
type Checker interface {
	HealthCheck(context.Context) Health
}
