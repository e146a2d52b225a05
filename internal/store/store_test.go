package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(Config{}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func sampleResult() *core.Result {
	water := model.Resource{ID: 7, Name: "water", Kind: model.ResourceContinuous, ClassOfSupply: model.ClassOfSupply(201), UnitMass: 1}
	pump := model.Resource{ID: 9, Name: "pump", Kind: model.ResourceItem, ClassOfSupply: model.ClassOfSupply(4), UnitMass: 5}
	return &core.Result{
		States: []model.SimState{
			{Time: 0, Locations: map[model.ElementID]model.LocationID{1: 10}},
			{Time: 3, Locations: map[model.ElementID]model.LocationID{1: 20, 2: 20}, Parents: map[model.ElementID]model.ContainerRef{2: model.InElement(1)}},
		},
		Demands: []model.SimDemand{
			{Time: 1, Location: 10, Element: 1, Event: "crew consumables", Demands: []model.Demand{{Resource: water, Amount: 12}}},
			{Time: 2.5, Location: 30, Demands: []model.Demand{{Resource: pump, Amount: 2}}},
		},
		SpatialErrors: []model.SpatialError{{Time: 2, Event: "burn", Kind: model.EventBurn, Message: "insufficient delta-v"}},
		Warnings:      []model.Warning{{Time: 3, Event: "arrive", Message: "cargo over capacity"}},
		Scavenges:     []model.SimScavenge{{Time: 2.5, Location: 20, Part: pump, Amount: 1, Source: 3, Consumer: 1}},
		SupplyEdges: []model.SupplyEdge{
			{Edge: 30, Origin: 10, Destination: 20, Start: 2, End: 3, Mission: 0, Carriers: []model.ElementID{1}, Mass: 500, MaxCargoMass: 200, CargoMass: 40},
		},
		EventsReplayed: 6,
		EventsByKind:   map[model.EventKind]int{model.EventCreate: 2, model.EventBurn: 1, model.EventSpaceTransport: 3},
		FinalTime:      3,
		Config:         model.DefaultConfig(),
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, zerolog.Nop())
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}

func TestSaveRun_AssignsIDAndCountsMass(t *testing.T) {
	m := newTestManager(t)

	run, err := m.SaveRun(context.Background(), "", "lunar", time.Now(), 40*time.Millisecond, sampleResult())
	require.NoError(t, err)

	assert.Len(t, run.ID, 36)
	assert.Equal(t, int64(40), run.ElapsedMS)
	assert.InDelta(t, 22.0, run.DemandMass, 1e-9)
	assert.Len(t, run.States, 2)
	assert.Len(t, run.Issues, 2)
}

func TestSaveRun_NilResult(t *testing.T) {
	m := newTestManager(t)
	_, err := m.SaveRun(context.Background(), "x", "lunar", time.Now(), 0, nil)
	require.Error(t, err)
}

func TestGetRun_RoundTripsResult(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	want := sampleResult()

	saved, err := m.SaveRun(ctx, "run-a", "lunar", time.Now(), time.Second, want)
	require.NoError(t, err)

	loaded, err := m.GetRun(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "lunar", loaded.Scenario)

	got, err := loaded.Result()
	require.NoError(t, err)

	assert.Equal(t, want.States, got.States)
	assert.Equal(t, want.Demands, got.Demands)
	assert.Equal(t, want.SpatialErrors, got.SpatialErrors)
	assert.Equal(t, want.Warnings, got.Warnings)
	assert.Equal(t, want.Scavenges, got.Scavenges)
	assert.Equal(t, want.SupplyEdges, got.SupplyEdges)
	assert.Equal(t, []model.SupplyPoint{{Node: 20, Time: 3}}, got.SupplyPoints)
	assert.Equal(t, want.EventsByKind, got.EventsByKind)
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.FinalTime, got.FinalTime)
}

func TestGetRun_NotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_FiltersAndOrders(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := m.SaveRun(ctx, "old", "lunar", base, 0, sampleResult())
	require.NoError(t, err)
	_, err = m.SaveRun(ctx, "new", "lunar", base.Add(time.Hour), 0, sampleResult())
	require.NoError(t, err)
	_, err = m.SaveRun(ctx, "mars", "mars", base.Add(2*time.Hour), 0, sampleResult())
	require.NoError(t, err)

	runs, err := m.ListRuns(ctx, "lunar", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)
	assert.Empty(t, runs[0].States, "headers are not preloaded")

	all, err := m.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "mars", all[0].ID)
}

func TestDeleteRun_RemovesChildren(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.SaveRun(ctx, "gone", "lunar", time.Now(), 0, sampleResult())
	require.NoError(t, err)
	require.NoError(t, m.DeleteRun(ctx, "gone"))

	var states int64
	require.NoError(t, m.DB.Model(&StateRow{}).Where("run_id = ?", "gone").Count(&states).Error)
	assert.Zero(t, states)

	require.ErrorIs(t, m.DeleteRun(ctx, "gone"), ErrRunNotFound)
}

func TestOpen_SeparateMemoryStoresAreIsolated(t *testing.T) {
	a := newTestManager(t)
	b := newTestManager(t)

	_, err := a.SaveRun(context.Background(), "only-a", "lunar", time.Now(), 0, sampleResult())
	require.NoError(t, err)

	_, err = b.GetRun(context.Background(), "only-a")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestOpen_FileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	m, err := Open(Config{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	_, err = m.SaveRun(ctx, "kept", "lunar", time.Now(), 0, sampleResult())
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := Open(Config{Path: path}, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	run, err := reopened.GetRun(ctx, "kept")
	require.NoError(t, err)
	assert.Len(t, run.Demands, 2)
}
