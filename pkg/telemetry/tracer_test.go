package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStdoutTracerExportsSpans(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig().Tracing
	cfg.Exporter = "stdout"
	cfg.Output = &out

	tracer, err := NewTracer(cfg, "ccs-install", "test")
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := tracer.Start(context.Background(), "reconcile.run")
	if TraceID(ctx) == "" {
		t.Error("expected a trace ID inside the span")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "reconcile.run") {
		t.Errorf("exported spans missing reconcile.run: %s", out.String())
	}
}

func TestNewTracerRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultConfig().Tracing
	cfg.Exporter = "zipkin"
	if _, err := NewTracer(cfg, "ccs-install", "test"); err == nil {
		t.Error("expected error")
	}
}

func TestTraceIDOutsideSpan(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID = %q, want empty", id)
	}
}
