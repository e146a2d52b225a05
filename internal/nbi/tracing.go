package nbi

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/observability"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/model"
)

const tracerName = "github.com/signalsfoundry/logistics-simulator/internal/nbi"

// Span attribute keys shared by the RPC and HTTP handlers.
const (
	attrScenario      = attribute.Key("sim.scenario")
	attrGeneration    = attribute.Key("sim.generation")
	attrMissions      = attribute.Key("sim.missions")
	attrElements      = attribute.Key("sim.elements")
	attrRunID         = attribute.Key("sim.run_id")
	attrEvents        = attribute.Key("sim.events")
	attrDemands       = attribute.Key("sim.demands")
	attrSpatialErrors = attribute.Key("sim.spatial_errors")
	attrFinalTime     = attribute.Key("sim.final_time")
	attrMission       = attribute.Key("sim.mission")
	attrBudget        = attribute.Key("sim.repair_budget")
	attrRepairHours   = attribute.Key("sim.repair_hours")
)

// TracingUnaryServerInterceptor names RPC spans after the simulation method
// and creates a server span when no otelgrpc handler has started one.
func TracingUnaryServerInterceptor() grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := observability.SplitMethod(info.FullMethod)
		name := fmt.Sprintf("Sim/%s/%s", service, method)
		span := trace.SpanFromContext(ctx)
		created := false
		if span.SpanContext().IsValid() {
			span.SetName(name)
		} else {
			ctx, span = tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
			created = true
		}

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
			attribute.String("rpc.full_method", strings.TrimPrefix(info.FullMethod, "/")),
		)
		if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
			span.SetAttributes(attribute.String("request_id", reqID))
		}

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		if created {
			span.End()
		}
		return resp, err
	}
}

// startSpan starts a child span for simulation work done inside a handler.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// failSpan marks span as failed with err.
func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

// scenarioAttributes describes a loaded scenario generation.
func scenarioAttributes(scn *model.Scenario, gen uint64) []attribute.KeyValue {
	if scn == nil {
		return nil
	}
	return []attribute.KeyValue{
		attrScenario.String(scn.Name),
		attrGeneration.Int64(int64(gen)),
		attrMissions.Int(len(scn.Missions)),
		attrElements.Int(len(scn.Elements)),
	}
}

// runAttributes describes a finished run and what its replay produced.
func runAttributes(rec *sim.RunRecord) []attribute.KeyValue {
	if rec == nil {
		return nil
	}
	sum := rec.Summary()
	return []attribute.KeyValue{
		attrScenario.String(sum.Scenario),
		attrGeneration.Int64(int64(sum.Generation)),
		attrRunID.String(sum.ID),
		attrEvents.Int(sum.Events),
		attrDemands.Int(sum.Demands),
		attrSpatialErrors.Int(sum.SpatialErrors),
		attrFinalTime.Float64(sum.FinalTime),
	}
}
