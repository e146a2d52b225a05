// Package state holds the scenario loaded into a running server together
// with the results of the simulation runs made against it.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/logistics-simulator/analysis"
	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/model"
)

var (
	// ErrNoScenario indicates no scenario has been loaded.
	ErrNoScenario = errors.New("no scenario loaded")
	// ErrNoResult indicates no run has completed for the loaded scenario.
	ErrNoResult = errors.New("no simulation result")
	// ErrRunNotFound indicates a requested run is not in the history.
	ErrRunNotFound = errors.New("run not found")
	// ErrMissionNotFound indicates a mission index outside the scenario.
	ErrMissionNotFound = errors.New("mission not found")
	// ErrScenarioChanged indicates a run finished after its scenario was
	// replaced; its result was discarded.
	ErrScenarioChanged = errors.New("scenario changed during run")
	// ErrAlreadyRunning re-exports the simulator's busy error.
	ErrAlreadyRunning = core.ErrAlreadyRunning
)

// ScenarioMetricsRecorder receives count updates for the loaded scenario.
type ScenarioMetricsRecorder interface {
	SetScenarioCounts(missions, elements, locations, resources int)
}

// RunHook is invoked after every run whose result was kept. Errors are
// logged and do not fail the run.
type RunHook func(ctx context.Context, rec *RunRecord) error

// ScenarioState coordinates the catalog, the loaded scenario and the run
// history.
type ScenarioState struct {
	// mu guards scenario, generation and latest. Take it after runSlot.
	mu sync.RWMutex

	catalog    *kb.KnowledgeBase
	scenario   *model.Scenario
	generation uint64
	latest     *RunRecord

	// runSlot serializes runs; holding the token means a run is active.
	runSlot chan struct{}

	history  *RunHistory
	log      logging.Logger
	metrics  ScenarioMetricsRecorder
	recorder core.RunRecorder
	tracer   trace.Tracer
	hooks    []RunHook
	now      func() time.Time

	// defaultConfig replaces each scenario's own configuration when set.
	defaultConfig *model.Config
}

// ScenarioStateOption customises ScenarioState construction.
type ScenarioStateOption func(*ScenarioState)

// WithMetricsRecorder attaches an optional metrics recorder for scenario counts.
func WithMetricsRecorder(m ScenarioMetricsRecorder) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.metrics = m
	}
}

// WithRunRecorder forwards every completed run to r.
func WithRunRecorder(r core.RunRecorder) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.recorder = r
	}
}

// WithTracer overrides the tracer passed to each simulator.
func WithTracer(t trace.Tracer) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.tracer = t
	}
}

// WithRunHook registers a hook called after each kept run.
func WithRunHook(h RunHook) ScenarioStateOption {
	return func(s *ScenarioState) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// WithDefaultConfig runs every scenario with cfg instead of the
// configuration carried by the scenario document. Per-run overrides still
// take precedence.
func WithDefaultConfig(cfg model.Config) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.defaultConfig = &cfg
	}
}

// WithHistorySize bounds the number of runs kept in memory.
func WithHistorySize(n int) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.history = NewRunHistory(n)
	}
}

// NewScenarioState creates an empty state around catalog.
func NewScenarioState(catalog *kb.KnowledgeBase, log logging.Logger, opts ...ScenarioStateOption) *ScenarioState {
	if catalog == nil {
		catalog = kb.NewKnowledgeBase()
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &ScenarioState{
		catalog: catalog,
		runSlot: make(chan struct{}, 1),
		history: NewRunHistory(DefaultHistorySize),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked()
	return s
}

// Catalog exposes the resource and location catalog.
func (s *ScenarioState) Catalog() *kb.KnowledgeBase {
	return s.catalog
}

// History exposes the run history.
func (s *ScenarioState) History() *RunHistory {
	return s.history
}

// LoadScenario decodes a YAML or JSON scenario through the catalog and
// makes it current.
func (s *ScenarioState) LoadScenario(ctx context.Context, r io.Reader) (*model.Scenario, error) {
	scn, err := core.LoadScenario(s.catalog, r)
	if err != nil {
		return nil, err
	}
	s.SetScenario(ctx, scn)
	return scn, nil
}

// SetScenario replaces the current scenario. The latest result is dropped
// and any run still in flight will be discarded when it finishes.
func (s *ScenarioState) SetScenario(ctx context.Context, scn *model.Scenario) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scenario = scn
	s.generation++
	s.latest = nil
	s.updateMetricsLocked()

	name := ""
	if scn != nil {
		name = scn.Name
	}
	s.log.Info(ctx, "scenario loaded",
		logging.String("scenario", name),
		logging.Any("generation", s.generation),
	)
	return s.generation
}

// Scenario returns the current scenario and its generation. The scenario is
// shared and must be treated as read-only.
func (s *ScenarioState) Scenario() (*model.Scenario, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scenario == nil {
		return nil, s.generation, ErrNoScenario
	}
	return s.scenario, s.generation, nil
}

// EffectiveConfig returns the configuration a run without overrides would
// use.
func (s *ScenarioState) EffectiveConfig() (model.Config, error) {
	scn, _, err := s.Scenario()
	if err != nil {
		return model.Config{}, err
	}
	if s.defaultConfig != nil {
		return *s.defaultConfig, nil
	}
	return scn.Config, nil
}

// ClearScenario unloads the scenario, clears the catalog and drops every
// stored run.
func (s *ScenarioState) ClearScenario(ctx context.Context) {
	ctx, reqLog := logging.WithRequestLogger(ctx, s.log)

	s.mu.Lock()
	defer s.mu.Unlock()

	resources, locations, elements := s.catalog.Counts()
	reqLog.Debug(ctx, "clearing scenario",
		logging.String("operation", "clear"),
		logging.Int("resources", resources),
		logging.Int("locations", locations),
		logging.Int("elements", elements),
		logging.Int("runs", s.history.Len()),
	)

	s.catalog.Clear()
	s.scenario = nil
	s.generation++
	s.latest = nil
	s.history.Clear()
	s.updateMetricsLocked()
}

// RunOptions customises one RunSimulation call.
type RunOptions struct {
	// Config overrides the scenario's own configuration.
	Config *model.Config
	// NoWait fails with ErrAlreadyRunning instead of queueing behind an
	// active run.
	NoWait bool
}

// RunSimulation replays the current scenario. Runs are serialized. When the
// scenario is replaced while a run is in flight the finished result is
// discarded and ErrScenarioChanged is returned.
func (s *ScenarioState) RunSimulation(ctx context.Context, opts RunOptions) (*RunRecord, error) {
	if err := s.acquire(ctx, opts.NoWait); err != nil {
		return nil, err
	}
	defer s.release()

	scn, gen, err := s.Scenario()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, runLog := logging.WithRunLogger(ctx, s.log, runID, scn.Name, gen)
	runLog.Debug(ctx, "run started", logging.Bool("config_override", opts.Config != nil))

	simOpts := []core.Option{core.WithLogger(runLog)}
	cfg := opts.Config
	if cfg == nil {
		cfg = s.defaultConfig
	}
	if cfg != nil {
		simOpts = append(simOpts, core.WithConfig(*cfg))
	}
	if s.recorder != nil {
		simOpts = append(simOpts, core.WithRunRecorder(s.recorder))
	}
	if s.tracer != nil {
		simOpts = append(simOpts, core.WithTracer(s.tracer))
	}

	started := s.now()
	res, err := core.NewSimulator(scn, simOpts...).Simulate(ctx)
	if err != nil {
		return nil, err
	}
	rec := &RunRecord{
		ID:         runID,
		Scenario:   scn.Name,
		Generation: gen,
		StartedAt:  started,
		Elapsed:    s.now().Sub(started),
		Source:     scn,
		Result:     res,
	}

	s.mu.Lock()
	if s.generation != gen {
		current := s.generation
		s.mu.Unlock()
		runLog.Warn(ctx, "discarding run for superseded scenario",
			logging.Any("current_generation", current),
		)
		return nil, fmt.Errorf("%w: run %s", ErrScenarioChanged, rec.ID)
	}
	s.latest = rec
	s.mu.Unlock()

	s.history.Add(rec)
	for _, hook := range s.hooks {
		if err := hook(ctx, rec); err != nil {
			runLog.Warn(ctx, "run hook failed", logging.Err(err))
		}
	}
	return rec, nil
}

func (s *ScenarioState) acquire(ctx context.Context, noWait bool) error {
	if noWait {
		select {
		case s.runSlot <- struct{}{}:
			return nil
		default:
			return ErrAlreadyRunning
		}
	}
	select {
	case s.runSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ScenarioState) release() { <-s.runSlot }

// Running reports whether a run is in progress.
func (s *ScenarioState) Running() bool {
	return len(s.runSlot) > 0
}

// Latest returns the newest run for the current scenario.
func (s *ScenarioState) Latest() (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoResult
	}
	return s.latest, nil
}

// Run returns a stored run by ID.
func (s *ScenarioState) Run(id string) (*RunRecord, error) {
	rec := s.history.Get(id)
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return rec, nil
}

// resultFor resolves a run ID, or the latest run when id is empty.
func (s *ScenarioState) resultFor(id string) (*RunRecord, error) {
	if id == "" {
		return s.Latest()
	}
	return s.Run(id)
}

// Aggregate buckets the demands of a run onto its supply edges and points.
func (s *ScenarioState) Aggregate(ctx context.Context, runID string) (analysis.Aggregation, error) {
	rec, err := s.resultFor(runID)
	if err != nil {
		return analysis.Aggregation{}, err
	}
	return analysis.Aggregate(ctx, &rec.Source.Network, rec.Result), nil
}

// RepairTables tabulates the repairable items of a run per crewed mission.
func (s *ScenarioState) RepairTables(ctx context.Context, runID string) ([]analysis.RepairTable, error) {
	rec, err := s.resultFor(runID)
	if err != nil {
		return nil, err
	}
	return analysis.TabulateRepairItems(ctx, rec.Source, rec.Result), nil
}

// Measures computes the measures of effectiveness of a run.
func (s *ScenarioState) Measures(ctx context.Context, runID string) (analysis.Measures, error) {
	rec, err := s.resultFor(runID)
	if err != nil {
		return analysis.Measures{}, err
	}
	return analysis.MeasuresOfEffectiveness(ctx, rec.Source, rec.Result), nil
}

// AutoRepair spends up to budget crew hours repairing the items of one
// mission found in the latest run and records the choice in the scenario's
// repaired-items ledger. Items are split using the discretization the run
// was simulated with. The scenario becomes a new generation, so the latest
// result is dropped and the caller should simulate again. It returns the
// hours spent, or ErrScenarioChanged when the scenario was replaced after
// the run.
func (s *ScenarioState) AutoRepair(ctx context.Context, mission int, budget float64) (float64, error) {
	rec, err := s.Latest()
	if err != nil {
		return 0, err
	}
	tables := analysis.TabulateRepairItems(ctx, rec.Source, rec.Result)
	var table *analysis.RepairTable
	for i := range tables {
		if tables[i].Mission == mission {
			table = &tables[i]
			break
		}
	}
	if table == nil {
		return 0, fmt.Errorf("%w: %d has no repair window", ErrMissionNotFound, mission)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scenario == nil {
		return 0, ErrNoScenario
	}
	if s.generation != rec.Generation {
		return 0, fmt.Errorf("%w: run %s", ErrScenarioChanged, rec.ID)
	}
	next := *s.scenario
	next.RepairedItems = s.scenario.RepairedItems.Clone()
	if next.RepairedItems == nil {
		next.RepairedItems = model.RepairLedger{}
	}
	spent := analysis.ApplyAutoRepair(next.RepairedItems, *table, budget, rec.Result.Config.ItemDiscretization)

	s.scenario = &next
	s.generation++
	s.latest = nil
	s.log.Info(ctx, "auto repair applied",
		logging.String("run_id", rec.ID),
		logging.Int("mission", mission),
		logging.Float("budget", budget),
		logging.Float("hours", spent),
	)
	return spent, nil
}

// ClearRepairs drops a mission's repaired-items ledger.
func (s *ScenarioState) ClearRepairs(ctx context.Context, mission int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scenario == nil {
		return ErrNoScenario
	}
	if mission < 0 || mission >= len(s.scenario.Missions) {
		return fmt.Errorf("%w: %d", ErrMissionNotFound, mission)
	}
	next := *s.scenario
	next.RepairedItems = s.scenario.RepairedItems.Clone()
	next.RepairedItems.Clear(mission)
	s.scenario = &next
	s.generation++
	s.latest = nil
	s.log.Debug(ctx, "repairs cleared", logging.Int("mission", mission))
	return nil
}

// ScenarioSnapshot summarises the state for status endpoints.
type ScenarioSnapshot struct {
	Scenario   string
	Generation uint64
	Missions   int
	Elements   int
	Locations  int
	Resources  int
	Running    bool
	LatestRun  string
	Runs       []RunSummary
}

// Snapshot returns a coherent view of the current state.
func (s *ScenarioState) Snapshot() ScenarioSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := ScenarioSnapshot{
		Generation: s.generation,
		Running:    s.Running(),
		Runs:       s.history.List(),
	}
	snap.Resources, _, _ = s.catalog.Counts()
	if s.scenario != nil {
		snap.Scenario = s.scenario.Name
		snap.Missions = len(s.scenario.Missions)
		snap.Elements = len(s.scenario.Elements)
		snap.Locations = len(s.scenario.Network.Nodes) + len(s.scenario.Network.Edges)
	}
	if s.latest != nil {
		snap.LatestRun = s.latest.ID
	}
	return snap
}

func (s *ScenarioState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	resources, _, _ := s.catalog.Counts()
	missions, elements, locations := 0, 0, 0
	if s.scenario != nil {
		missions = len(s.scenario.Missions)
		elements = len(s.scenario.Elements)
		locations = len(s.scenario.Network.Nodes) + len(s.scenario.Network.Edges)
	}
	s.metrics.SetScenarioCounts(missions, elements, locations, resources)
}
