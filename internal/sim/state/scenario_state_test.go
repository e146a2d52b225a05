package state

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/model"
)

func TestLoadScenarioBumpsGeneration(t *testing.T) {
	s := newTestState(t)
	if _, _, err := s.Scenario(); !errors.Is(err, ErrNoScenario) {
		t.Fatalf("Scenario() error = %v, want ErrNoScenario", err)
	}

	ctx := context.Background()
	scn, err := s.LoadScenario(ctx, strings.NewReader(depotYAML))
	if err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	if scn.Name != "depot" || len(scn.Missions) != 1 {
		t.Fatalf("LoadScenario() = %q with %d missions", scn.Name, len(scn.Missions))
	}
	_, gen, _ := s.Scenario()
	if gen != 1 {
		t.Fatalf("generation = %d, want 1", gen)
	}
	if _, err := s.LoadScenario(ctx, strings.NewReader(depotYAML)); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if _, gen, _ = s.Scenario(); gen != 2 {
		t.Fatalf("generation after reload = %d, want 2", gen)
	}
}

func TestLoadScenarioRejectsBadDocument(t *testing.T) {
	s := newTestState(t)
	if _, err := s.LoadScenario(context.Background(), strings.NewReader("name: [")); err == nil {
		t.Fatalf("LoadScenario() accepted malformed YAML")
	}
	if _, _, err := s.Scenario(); !errors.Is(err, ErrNoScenario) {
		t.Fatalf("failed load replaced the scenario")
	}
}

func TestRunSimulationWithoutScenario(t *testing.T) {
	s := newTestState(t)
	if _, err := s.RunSimulation(context.Background(), RunOptions{}); !errors.Is(err, ErrNoScenario) {
		t.Fatalf("RunSimulation() error = %v, want ErrNoScenario", err)
	}
	if s.Running() {
		t.Fatalf("run slot not released after failure")
	}
}

func TestRunSimulationKeepsLatestAndHistory(t *testing.T) {
	var hooked atomic.Int32
	s := newLoadedState(t, WithRunHook(func(_ context.Context, rec *RunRecord) error {
		hooked.Add(1)
		if rec.Result == nil {
			t.Errorf("hook received a record without result")
		}
		return errors.New("sink offline")
	}))

	rec, err := s.RunSimulation(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}
	if rec.ID == "" || rec.Scenario != "depot" || rec.Generation != 1 {
		t.Fatalf("RunRecord = %+v", rec)
	}
	if len(rec.Result.Demands) != 1 || rec.Result.Demands[0].TotalAmount() != 10 {
		t.Fatalf("Demands = %+v, want one 10 unit record", rec.Result.Demands)
	}
	if hooked.Load() != 1 {
		t.Fatalf("hook called %d times, want 1", hooked.Load())
	}

	latest, err := s.Latest()
	if err != nil || latest.ID != rec.ID {
		t.Fatalf("Latest() = %v, %v; want %s", latest, err, rec.ID)
	}
	stored, err := s.Run(rec.ID)
	if err != nil || stored.Result != rec.Result {
		t.Fatalf("Run(%s) = %v, %v", rec.ID, stored, err)
	}
	if _, err := s.Run("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Run(nope) error = %v, want ErrRunNotFound", err)
	}
}

func TestRunSimulationConfigOverride(t *testing.T) {
	s := newLoadedState(t)
	cfg := model.DefaultConfig()
	cfg.ItemAggregation = 2
	_, err := s.RunSimulation(context.Background(), RunOptions{Config: &cfg})
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("RunSimulation() error = %v, want ErrConfiguration", err)
	}
	if _, err := s.Latest(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("failed run produced a latest result")
	}
}

func TestRunSimulationNoWaitWhileBusy(t *testing.T) {
	s := newLoadedState(t)
	s.runSlot <- struct{}{}

	if _, err := s.RunSimulation(context.Background(), RunOptions{NoWait: true}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("RunSimulation(NoWait) error = %v, want ErrAlreadyRunning", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.RunSimulation(ctx, RunOptions{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("queued RunSimulation() error = %v, want deadline exceeded", err)
	}

	s.release()
	if _, err := s.RunSimulation(context.Background(), RunOptions{NoWait: true}); err != nil {
		t.Fatalf("RunSimulation() after release error = %v", err)
	}
}

func TestRunSimulationDiscardsSupersededRun(t *testing.T) {
	s := newLoadedState(t)
	replacement, _, _ := s.Scenario()

	calls := 0
	s.now = func() time.Time {
		calls++
		if calls == 2 {
			// The second clock read happens after replay and before the
			// result is published.
			s.SetScenario(context.Background(), replacement)
		}
		return time.Unix(0, 0)
	}

	_, err := s.RunSimulation(context.Background(), RunOptions{})
	if !errors.Is(err, ErrScenarioChanged) {
		t.Fatalf("RunSimulation() error = %v, want ErrScenarioChanged", err)
	}
	if _, err := s.Latest(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("superseded run was published")
	}
	if s.History().Len() != 0 {
		t.Fatalf("superseded run stored in history")
	}
}

func TestAnalysisAccessors(t *testing.T) {
	s := newLoadedState(t)
	ctx := context.Background()

	if _, err := s.Aggregate(ctx, ""); !errors.Is(err, ErrNoResult) {
		t.Fatalf("Aggregate() before run error = %v, want ErrNoResult", err)
	}
	rec, err := s.RunSimulation(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}

	agg, err := s.Aggregate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(agg.EdgeDemands) != len(rec.Result.SupplyEdges) {
		t.Fatalf("Aggregate() edges = %d, want %d", len(agg.EdgeDemands), len(rec.Result.SupplyEdges))
	}
	if len(agg.PointDemands) != 1 || agg.PointDemands[0].TotalMass() != 10 {
		t.Fatalf("Aggregate() points = %+v, want 10 kg at the station arrival", agg.PointDemands)
	}

	m, err := s.Measures(ctx, "")
	if err != nil {
		t.Fatalf("Measures() error = %v", err)
	}
	if len(m.Launches) != 1 || m.TotalLaunchMass != 500 {
		t.Fatalf("Measures() = %+v, want one 500 kg launch", m)
	}

	tables, err := s.RepairTables(ctx, "")
	if err != nil {
		t.Fatalf("RepairTables() error = %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("RepairTables() = %+v, want none for an uncrewed campaign", tables)
	}
	if _, err := s.AutoRepair(ctx, 0, 10); !errors.Is(err, ErrMissionNotFound) {
		t.Fatalf("AutoRepair() error = %v, want ErrMissionNotFound", err)
	}
}

func TestClearRepairsStartsNewGeneration(t *testing.T) {
	s := newLoadedState(t)
	ctx := context.Background()
	if _, err := s.RunSimulation(ctx, RunOptions{}); err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}

	if err := s.ClearRepairs(ctx, 3); !errors.Is(err, ErrMissionNotFound) {
		t.Fatalf("ClearRepairs(3) error = %v, want ErrMissionNotFound", err)
	}
	if err := s.ClearRepairs(ctx, 0); err != nil {
		t.Fatalf("ClearRepairs(0) error = %v", err)
	}
	if _, gen, _ := s.Scenario(); gen != 2 {
		t.Fatalf("generation = %d, want 2", gen)
	}
	if _, err := s.Latest(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("latest result survived a scenario change")
	}
	if s.History().Len() != 1 {
		t.Fatalf("history dropped the earlier run")
	}
}

func TestClearScenario(t *testing.T) {
	s := newLoadedState(t)
	ctx := context.Background()
	if _, err := s.RunSimulation(ctx, RunOptions{}); err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}

	s.ClearScenario(ctx)

	if _, _, err := s.Scenario(); !errors.Is(err, ErrNoScenario) {
		t.Fatalf("Scenario() after clear error = %v", err)
	}
	if r, l, e := s.Catalog().Counts(); r+l+e != 0 {
		t.Fatalf("catalog not cleared: %d %d %d", r, l, e)
	}
	snap := s.Snapshot()
	if snap.Scenario != "" || len(snap.Runs) != 0 || snap.LatestRun != "" {
		t.Fatalf("Snapshot() after clear = %+v", snap)
	}
}

func TestSnapshot(t *testing.T) {
	s := newLoadedState(t)
	rec, err := s.RunSimulation(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Scenario != "depot" || snap.Missions != 1 || snap.Elements != 1 || snap.Locations != 3 || snap.Resources != 1 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap.LatestRun != rec.ID || len(snap.Runs) != 1 || snap.Running {
		t.Fatalf("Snapshot() runs = %+v", snap)
	}
}

func TestDefaultConfigAppliesToRuns(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.ItemDiscretization = model.DiscretizeByLocation
	s := newLoadedState(t, WithDefaultConfig(cfg))

	eff, err := s.EffectiveConfig()
	if err != nil || eff.ItemDiscretization != model.DiscretizeByLocation {
		t.Fatalf("EffectiveConfig() = %v, %v", eff.ItemDiscretization, err)
	}
	rec, err := s.RunSimulation(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}
	if rec.Result.Config.ItemDiscretization != model.DiscretizeByLocation {
		t.Fatalf("run config = %v, want location", rec.Result.Config.ItemDiscretization)
	}

	override := model.DefaultConfig()
	rec, err = s.RunSimulation(context.Background(), RunOptions{Config: &override})
	if err != nil {
		t.Fatalf("RunSimulation(override) error = %v", err)
	}
	if rec.Result.Config.ItemDiscretization != model.DiscretizeNone {
		t.Fatalf("override ignored: %v", rec.Result.Config.ItemDiscretization)
	}
}

func TestAnalysisUsesTheRunsOwnScenario(t *testing.T) {
	s := newLoadedState(t)
	ctx := context.Background()
	rec, err := s.RunSimulation(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}
	before, err := s.Aggregate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if _, err := s.LoadScenario(ctx, strings.NewReader(relabelledYAML)); err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	after, err := s.Aggregate(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Aggregate() after reload error = %v", err)
	}
	if len(after.Unassigned) != len(before.Unassigned) || len(after.PointDemands) != 1 || after.PointDemands[0].TotalMass() != 10 {
		t.Fatalf("Aggregate() after reload = %+v, want %+v", after, before)
	}
	if rec.Source == nil || rec.Source.Name != "depot" {
		t.Fatalf("RunRecord.Source = %v, want the depot scenario", rec.Source)
	}
	m, err := s.Measures(ctx, rec.ID)
	if err != nil || m.TotalLaunchMass != 500 {
		t.Fatalf("Measures() after reload = %+v, %v; want the depot launch", m, err)
	}
}

func TestAutoRepairUsesTheRunConfig(t *testing.T) {
	s := newTestState(t, WithDefaultConfig(model.DefaultConfig()))
	ctx := context.Background()
	if _, err := s.LoadScenario(ctx, strings.NewReader(outpostYAML)); err != nil {
		t.Fatalf("LoadScenario() error = %v", err)
	}
	rec, err := s.RunSimulation(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}
	if rec.Result.Config.ItemDiscretization != model.DiscretizeNone {
		t.Fatalf("run discretization = %v, want none", rec.Result.Config.ItemDiscretization)
	}

	spent, err := s.AutoRepair(ctx, 0, 15)
	if err != nil {
		t.Fatalf("AutoRepair() error = %v", err)
	}
	if spent != 15 {
		t.Fatalf("AutoRepair() spent = %v, want 15", spent)
	}
	scn, gen, _ := s.Scenario()
	if gen != 2 {
		t.Fatalf("generation = %d, want 2", gen)
	}
	items := scn.RepairedItems[0]
	if len(items) != 1 || items[0].Demand.Resource.Name != "pump" || items[0].Demand.Amount != 1.5 {
		t.Fatalf("repaired items = %+v, want 1.5 pumps", items)
	}

	if _, err := s.AutoRepair(ctx, 0, 15); !errors.Is(err, ErrNoResult) {
		t.Fatalf("AutoRepair() on a superseded run error = %v, want ErrNoResult", err)
	}
}

func TestRunHooksSeeTheRunScope(t *testing.T) {
	var hookRunID string
	var hookLogger logging.Logger
	s := newLoadedState(t, WithRunHook(func(ctx context.Context, _ *RunRecord) error {
		hookRunID = logging.RunIDFromContext(ctx)
		hookLogger = logging.LoggerFromContext(ctx)
		return nil
	}))

	rec, err := s.RunSimulation(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("RunSimulation() error = %v", err)
	}
	if hookRunID != rec.ID {
		t.Fatalf("hook run id = %q, want %q", hookRunID, rec.ID)
	}
	if hookLogger == nil {
		t.Fatalf("hook context carries no run logger")
	}
}
