package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing error: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("disabled tracing produced a recording span")
	}
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("InitTracing accepted an unknown exporter")
	}
}

func TestInitTracingStdoutExportsRunSpans(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "sim-server",
		SampleRatio: 1,
		Writer:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing error: %v", err)
	}
	_, span := otel.Tracer("test").Start(context.Background(), "core.Simulate")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, "core.Simulate") || !strings.Contains(out, ServiceNamespace) {
		t.Fatalf("exported spans = %q, want core.Simulate under %s", out, ServiceNamespace)
	}
}

func TestTracingSamplerBounds(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 2, want: "AlwaysOnSampler"},
		{ratio: 0, want: "AlwaysOffSampler"},
		{ratio: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		got := TracingConfig{SampleRatio: tc.ratio}.sampler().Description()
		if !strings.Contains(got, "root:"+tc.want) {
			t.Fatalf("sampler(%v) = %q, want %s", tc.ratio, got, tc.want)
		}
	}
}
