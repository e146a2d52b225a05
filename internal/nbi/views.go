package nbi

import (
	"time"

	"github.com/signalsfoundry/logistics-simulator/analysis"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// ScenarioInfo describes the loaded scenario.
type ScenarioInfo struct {
	Name       string `json:"name"`
	Generation uint64 `json:"generation"`
	Missions   int    `json:"missions"`
	Elements   int    `json:"elements"`
	Locations  int    `json:"locations"`
	Resources  int    `json:"resources"`
}

// RunInfo is the header of one simulation run.
type RunInfo struct {
	RunID         string    `json:"runId"`
	Scenario      string    `json:"scenario"`
	Generation    uint64    `json:"generation"`
	StartedAt     time.Time `json:"startedAt"`
	ElapsedMS     int64     `json:"elapsedMs"`
	Events        int       `json:"events"`
	SpatialErrors int       `json:"spatialErrors"`
	Demands       int       `json:"demands"`
	FinalTime     float64   `json:"finalTime"`
}

// ConfigView is the JSON form of model.Config.
type ConfigView struct {
	ItemDiscretization     string  `json:"itemDiscretization"`
	ItemAggregation        float64 `json:"itemAggregation"`
	ScavengeSpares         bool    `json:"scavengeSpares"`
	PackingDemandsAdded    bool    `json:"packingDemandsAdded"`
	DemandsSatisfied       bool    `json:"demandsSatisfied"`
	EnvironmentConstrained bool    `json:"environmentConstrained"`
	VolumeConstrained      bool    `json:"volumeConstrained"`
	DetailedEVA            bool    `json:"detailedEva"`
}

// ResultView is the JSON form of a run and its result.
type ResultView struct {
	Run           RunInfo              `json:"run"`
	Config        ConfigView           `json:"config"`
	EventsByKind  map[string]int       `json:"eventsByKind"`
	States        []model.SimState     `json:"states"`
	SpatialErrors []model.SpatialError `json:"spatialErrors"`
	Warnings      []model.Warning      `json:"warnings"`
	Demands       []model.SimDemand    `json:"demands"`
	Scavenges     []model.SimScavenge  `json:"scavenges"`
	Repairs       []model.SimRepair    `json:"repairs"`
	SupplyEdges   []model.SupplyEdge   `json:"supplyEdges"`
	SupplyPoints  []model.SupplyPoint  `json:"supplyPoints"`
}

// AggregateView pairs a run with its network aggregation.
type AggregateView struct {
	RunID string `json:"runId"`
	analysis.Aggregation
	Measures analysis.Measures `json:"measures"`
}

// AutoRepairView reports a change to one mission's repaired items. Hours is
// zero when the ledger was cleared.
type AutoRepairView struct {
	Mission    int     `json:"mission"`
	Hours      float64 `json:"hours"`
	Generation uint64  `json:"generation"`
}

// StatusView is the server status document.
type StatusView struct {
	Scenario  *ScenarioInfo `json:"scenario,omitempty"`
	Running   bool          `json:"running"`
	LatestRun string        `json:"latestRun,omitempty"`
	Runs      []RunInfo     `json:"runs"`
}

func configView(cfg model.Config) ConfigView {
	return ConfigView{
		ItemDiscretization:     cfg.ItemDiscretization.String(),
		ItemAggregation:        cfg.ItemAggregation,
		ScavengeSpares:         cfg.ScavengeSpares,
		PackingDemandsAdded:    cfg.PackingDemandsAdded,
		DemandsSatisfied:       cfg.DemandsSatisfied,
		EnvironmentConstrained: cfg.EnvironmentConstrained,
		VolumeConstrained:      cfg.VolumeConstrained,
		DetailedEVA:            cfg.DetailedEVA,
	}
}

func runInfo(s sim.RunSummary) RunInfo {
	return RunInfo{
		RunID:         s.ID,
		Scenario:      s.Scenario,
		Generation:    s.Generation,
		StartedAt:     s.StartedAt.UTC(),
		ElapsedMS:     s.Elapsed.Milliseconds(),
		Events:        s.Events,
		SpatialErrors: s.SpatialErrors,
		Demands:       s.Demands,
		FinalTime:     s.FinalTime,
	}
}

// NewResultView flattens a run record for JSON transports.
func NewResultView(rec *sim.RunRecord) ResultView {
	v := ResultView{Run: runInfo(rec.Summary()), EventsByKind: map[string]int{}}
	res := rec.Result
	if res == nil {
		return v
	}
	v.Config = configView(res.Config)
	for kind, n := range res.EventsByKind {
		v.EventsByKind[kind.String()] = n
	}
	v.States = res.States
	v.SpatialErrors = res.SpatialErrors
	v.Warnings = res.Warnings
	v.Demands = res.Demands
	v.Scavenges = res.Scavenges
	v.Repairs = res.Repairs
	v.SupplyEdges = res.SupplyEdges
	v.SupplyPoints = res.SupplyPoints
	return v
}

// NewStatusView converts a state snapshot.
func NewStatusView(snap sim.ScenarioSnapshot) StatusView {
	v := StatusView{
		Running:   snap.Running,
		LatestRun: snap.LatestRun,
		Runs:      make([]RunInfo, 0, len(snap.Runs)),
	}
	if snap.Scenario != "" {
		v.Scenario = &ScenarioInfo{
			Name:       snap.Scenario,
			Generation: snap.Generation,
			Missions:   snap.Missions,
			Elements:   snap.Elements,
			Locations:  snap.Locations,
			Resources:  snap.Resources,
		}
	}
	for _, r := range snap.Runs {
		v.Runs = append(v.Runs, runInfo(r))
	}
	return v
}
