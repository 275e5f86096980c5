package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "trace-1")
	_, parse := StartChildSpan(ctx, "parse")
	parse.SetAttr("tokens", 3)
	parse.End()
	_, eval := StartChildSpan(ctx, "evaluate")
	eval.End()
	root.End()

	if len(root.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(root.Children))
	}
	if parse.TraceID != "trace-1" {
		t.Fatalf("child trace id = %q", parse.TraceID)
	}
	if SpanFromContext(ctx) != root {
		t.Fatal("root span not stored in context")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(context.Background(), logger)
	out := buf.String()
	if strings.Count(out, "msg=span") != 3 || !strings.Contains(out, "tokens=3") {
		t.Fatalf("unexpected span log:\n%s", out)
	}
}

func TestLogSkippedAboveDebug(t *testing.T) {
	_, root := StartSpan(context.Background(), "search", "trace-2")
	root.End()
	var buf bytes.Buffer
	root.Log(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	if buf.Len() != 0 {
		t.Fatalf("expected no output at info level, got %q", buf.String())
	}
}

func TestDetachedChild(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" || SpanFromContext(ctx) != span {
		t.Fatal("detached child should become the context span with no trace id")
	}
}
