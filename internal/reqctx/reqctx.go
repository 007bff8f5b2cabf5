// Package reqctx carries the identity of one harvest run through contexts
// and log lines.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type key int

const runKey key = 0

// RunContext identifies one harvest run
type RunContext struct {
	RunID     string
	Query     string
	StartTime time.Time
}

// WithRun attaches a new run with a time-ordered ID to ctx
func WithRun(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, runKey, &RunContext{
		RunID:     newID(),
		Query:     query,
		StartTime: time.Now(),
	})
}

// FromContext returns the run attached to ctx, or a placeholder
func FromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runKey).(*RunContext); ok {
		return rc
	}
	return &RunContext{
		RunID:     "unknown",
		StartTime: time.Now(),
	}
}

// Logger returns a logger annotated with the run ID and query of ctx
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	rc := FromContext(ctx)
	lc := base.With().Str("run_id", rc.RunID)
	if rc.Query != "" {
		lc = lc.Str("query", rc.Query)
	}
	return lc.Logger()
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// RunError wraps an error with the run it happened in
type RunError struct {
	RunID string
	Err   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError tags err with the run ID found in ctx
func NewRunError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{
		RunID: FromContext(ctx).RunID,
		Err:   err,
	}
}
