package nbi

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func endedSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("no ended span named %q", name)
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSimulateSpanCarriesRunAttributes(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()
	state := sim.NewScenarioState(kb.NewKnowledgeBase(), logging.Noop())
	svc := NewSimulationService(state, logging.Noop())

	if _, err := svc.LoadScenario(ctx, mustStruct(t, map[string]any{"document": depotDocument(t)})); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if _, err := svc.Simulate(ctx, mustStruct(t, map[string]any{})); err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	rec, err := state.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}

	load := endedSpan(t, recorder, "Sim.LoadScenario")
	if v, ok := spanAttr(load, attrGeneration); !ok || v.AsInt64() != 1 {
		t.Fatalf("load span generation = %v, want 1", v.Emit())
	}

	span := endedSpan(t, recorder, "Sim.Simulate")
	if v, ok := spanAttr(span, attrRunID); !ok || v.AsString() != rec.ID {
		t.Fatalf("simulate span run_id = %q, want %q", v.Emit(), rec.ID)
	}
	if v, ok := spanAttr(span, attrEvents); !ok || v.AsInt64() != int64(rec.Result.EventsReplayed) {
		t.Fatalf("simulate span events = %v, want %d", v.Emit(), rec.Result.EventsReplayed)
	}
	if v, ok := spanAttr(span, attrDemands); !ok || v.AsInt64() != int64(len(rec.Result.Demands)) {
		t.Fatalf("simulate span demands = %v, want %d", v.Emit(), len(rec.Result.Demands))
	}
	if v, ok := spanAttr(span, attrScenario); !ok || v.AsString() != rec.Scenario {
		t.Fatalf("simulate span scenario = %q, want %q", v.Emit(), rec.Scenario)
	}
}

func TestAutoRepairSpanRecordsFailure(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()
	state := sim.NewScenarioState(kb.NewKnowledgeBase(), logging.Noop())
	svc := NewSimulationService(state, logging.Noop())

	if _, err := svc.AutoRepair(ctx, mustStruct(t, map[string]any{"mission": 2.0, "budget": 4.0})); err == nil {
		t.Fatalf("AutoRepair without a scenario succeeded")
	}
	span := endedSpan(t, recorder, "Sim.AutoRepair")
	if span.Status().Code != otelcodes.Error {
		t.Fatalf("span status = %v, want Error", span.Status())
	}
	if v, ok := spanAttr(span, attrMission); !ok || v.AsInt64() != 2 {
		t.Fatalf("span mission = %v, want 2", v.Emit())
	}
	if _, ok := spanAttr(span, attrRunID); ok {
		t.Fatalf("span names a run although none exists")
	}
}

func TestTracingInterceptorNamesServerSpan(t *testing.T) {
	recorder := recordSpans(t)
	interceptor := TracingUnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: SimulationService_Simulate_FullMethodName}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	span := endedSpan(t, recorder, "Sim/SimulationService/Simulate")
	if v, ok := spanAttr(span, "rpc.method"); !ok || v.AsString() != "Simulate" {
		t.Fatalf("rpc.method = %q, want Simulate", v.Emit())
	}
}
