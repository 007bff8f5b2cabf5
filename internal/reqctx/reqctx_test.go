package reqctx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestWithRun(t *testing.T) {
	ctx := WithRun(context.Background(), "cafes in pune")
	rc := FromContext(ctx)

	id, err := uuid.Parse(rc.RunID)
	if err != nil {
		t.Fatalf("RunID %q is not a UUID: %v", rc.RunID, err)
	}
	if id.Version() != 7 {
		t.Errorf("RunID version = %d, want 7", id.Version())
	}
	if rc.Query != "cafes in pune" {
		t.Errorf("Query = %q", rc.Query)
	}
}

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()).RunID; got != "unknown" {
		t.Errorf("RunID = %q, want unknown", got)
	}
}

func TestLogger_AddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRun(context.Background(), "q")

	l := Logger(ctx, zerolog.New(&buf))
	l.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"`+FromContext(ctx).RunID+`"`) {
		t.Errorf("log line missing run_id: %s", out)
	}
	if !strings.Contains(out, `"query":"q"`) {
		t.Errorf("log line missing query: %s", out)
	}
}

func TestNewRunError(t *testing.T) {
	base := errors.New("boom")
	ctx := WithRun(context.Background(), "")

	err := NewRunError(ctx, base)
	if !errors.Is(err, base) {
		t.Error("RunError does not unwrap to the original error")
	}
	if !strings.HasPrefix(err.Error(), "["+FromContext(ctx).RunID+"]") {
		t.Errorf("Error() = %q", err.Error())
	}
	if NewRunError(ctx, nil) != nil {
		t.Error("NewRunError(nil) should be nil")
	}
}
