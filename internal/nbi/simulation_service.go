package nbi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
)

// SimulationService implements SimulationServer backed by a ScenarioState.
//
// Semantics:
//   - LoadScenario replaces the loaded scenario and starts a new
//     generation; earlier results stay readable by run ID.
//   - Simulate fails with Aborted while another run is active unless the
//     request sets "wait", in which case it queues until the call deadline.
//   - GetResult and Aggregate read the latest run unless "runId" is set.
//   - AutoRepair changes the scenario, so the latest result is dropped and
//     the client must simulate again to observe the repairs.
type SimulationService struct {
	state *sim.ScenarioState
	log   logging.Logger
}

var _ SimulationServer = (*SimulationService)(nil)

// NewSimulationService constructs a SimulationService bound to state.
func NewSimulationService(state *sim.ScenarioState, log logging.Logger) *SimulationService {
	if log == nil {
		log = logging.Noop()
	}
	return &SimulationService{state: state, log: log}
}

func (s *SimulationService) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

func (s *SimulationService) ensureReady() error {
	if s == nil || s.state == nil {
		return ToStatusError(ErrNotConfigured)
	}
	return nil
}

// LoadScenario parses an inline document and makes it the loaded scenario.
func (s *SimulationService) LoadScenario(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseLoadScenarioRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := startSpan(ctx, "Sim.LoadScenario",
		attribute.Int("document.bytes", len(req.Document)))
	defer span.End()

	scn, err := s.state.LoadScenario(ctx, strings.NewReader(req.Document))
	if err != nil {
		failSpan(span, err)
		s.logger(ctx).Warn(ctx, "scenario load rejected", logging.Err(err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	_, gen, _ := s.state.Scenario()
	span.SetAttributes(scenarioAttributes(scn, gen)...)

	snap := s.state.Snapshot()
	return toStatusStruct(NewStatusView(snap).Scenario)
}

// Simulate replays the loaded scenario and returns the run header.
func (s *SimulationService) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseSimulateRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	scn, gen, err := s.state.Scenario()
	if err != nil {
		return nil, ToStatusError(err)
	}
	opts := sim.RunOptions{NoWait: !req.Wait}
	if req.Config != nil {
		base, err := s.state.EffectiveConfig()
		if err != nil {
			return nil, ToStatusError(err)
		}
		cfg, err := req.Config.Apply(base)
		if err != nil {
			return nil, ToStatusError(err)
		}
		opts.Config = &cfg
	}

	attrs := append(scenarioAttributes(scn, gen),
		attribute.Bool("wait", req.Wait),
		attribute.Bool("config.override", req.Config != nil))
	ctx, span := startSpan(ctx, "Sim.Simulate", attrs...)
	defer span.End()

	rec, err := s.state.RunSimulation(ctx, opts)
	if err != nil {
		failSpan(span, err)
		s.logger(ctx).Warn(ctx, "simulation failed", logging.String("scenario", scn.Name), logging.Err(err))
		return nil, ToStatusError(err)
	}
	span.SetAttributes(runAttributes(rec)...)

	s.logger(ctx).Info(ctx, "simulation completed",
		logging.String("run_id", rec.ID),
		logging.Int("events", rec.Result.EventsReplayed),
		logging.Int("spatial_errors", len(rec.Result.SpatialErrors)),
	)
	return toStatusStruct(runInfo(rec.Summary()))
}

// GetResult returns the full result of a run.
func (s *SimulationService) GetResult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseRunRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	rec, err := lookupRun(s.state, req.RunID)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStatusStruct(NewResultView(rec))
}

// Aggregate returns a run's demands bucketed onto supply edges and points,
// together with its measures of effectiveness.
func (s *SimulationService) Aggregate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseRunRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	rec, err := lookupRun(s.state, req.RunID)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := startSpan(ctx, "Sim.Aggregate", runAttributes(rec)...)
	defer span.End()

	agg, err := s.state.Aggregate(ctx, rec.ID)
	if err != nil {
		failSpan(span, err)
		return nil, ToStatusError(err)
	}
	moe, err := s.state.Measures(ctx, rec.ID)
	if err != nil {
		failSpan(span, err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(
		attribute.Int("sim.supply_edges", len(agg.EdgeDemands)),
		attribute.Int("sim.supply_points", len(agg.PointDemands)),
		attribute.Int("sim.unassigned", len(agg.Unassigned)),
	)
	return toStatusStruct(AggregateView{RunID: rec.ID, Aggregation: agg, Measures: moe})
}

// AutoRepair spends a crew-hour budget on the repairable items of one
// mission in the latest run.
func (s *SimulationService) AutoRepair(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseAutoRepairRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}

	attrs := []attribute.KeyValue{attrMission.Int(req.Mission), attrBudget.Float64(req.Budget)}
	if rec, err := s.state.Latest(); err == nil {
		attrs = append(attrs, runAttributes(rec)...)
	}
	ctx, span := startSpan(ctx, "Sim.AutoRepair", attrs...)
	defer span.End()

	hours, err := s.state.AutoRepair(ctx, req.Mission, req.Budget)
	if err != nil {
		failSpan(span, err)
		return nil, ToStatusError(err)
	}
	_, gen, _ := s.state.Scenario()
	span.SetAttributes(attrRepairHours.Float64(hours))
	return toStatusStruct(AutoRepairView{Mission: req.Mission, Hours: hours, Generation: gen})
}

// ClearRepairs empties one mission's repaired-items ledger.
func (s *SimulationService) ClearRepairs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	req, err := ParseClearRepairsRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, span := startSpan(ctx, "Sim.ClearRepairs", attrMission.Int(req.Mission))
	defer span.End()
	if err := s.state.ClearRepairs(ctx, req.Mission); err != nil {
		failSpan(span, err)
		return nil, ToStatusError(err)
	}
	_, gen, _ := s.state.Scenario()
	return toStatusStruct(AutoRepairView{Mission: req.Mission, Generation: gen})
}

// GetStatus reports the loaded scenario and run history.
func (s *SimulationService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return toStatusStruct(NewStatusView(s.state.Snapshot()))
}

// ClearScenario drops the loaded scenario, its catalog and run history.
func (s *SimulationService) ClearScenario(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	s.state.ClearScenario(ctx)
	s.logger(ctx).Info(ctx, "scenario cleared")
	return &emptypb.Empty{}, nil
}

func toStatusStruct(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}
