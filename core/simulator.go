package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/model"
	"github.com/signalsfoundry/logistics-simulator/timectrl"
)

// ErrAlreadyRunning is returned by TrySimulate while another run holds the
// simulator.
var ErrAlreadyRunning = errors.New("simulation already running")

const tracerName = "github.com/signalsfoundry/logistics-simulator/core"

// Phase is the lifecycle position of a Simulator.
type Phase int32

const (
	PhaseNotStarted Phase = iota
	PhaseReplaying
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseReplaying:
		return "replaying"
	case PhaseCompleted:
		return "completed"
	default:
		return "not_started"
	}
}

// Result holds everything produced by one replay. It is rebuilt from scratch
// on every run and never updated afterwards.
type Result struct {
	States        []model.SimState
	SpatialErrors []model.SpatialError
	Demands       []model.SimDemand
	Scavenges     []model.SimScavenge
	Repairs       []model.SimRepair
	Warnings      []model.Warning
	SupplyEdges   []model.SupplyEdge
	SupplyPoints  []model.SupplyPoint

	EventsReplayed int
	EventsByKind   map[model.EventKind]int
	FinalTime      float64
	Config         model.Config
}

// RunRecorder receives a summary of every completed run.
type RunRecorder interface {
	RecordRun(elapsed time.Duration, eventsByKind map[model.EventKind]int, spatialErrors, demands int)
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithConfig overrides the scenario's configuration.
func WithConfig(cfg model.Config) Option {
	return func(s *Simulator) {
		s.cfg = &cfg
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Simulator) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRunRecorder attaches a recorder notified after every completed run.
func WithRunRecorder(r RunRecorder) Option {
	return func(s *Simulator) {
		s.recorder = r
	}
}

// WithClockListener registers a callback invoked every time simulation time
// advances during replay.
func WithClockListener(fn func(days float64, at time.Time)) Option {
	return func(s *Simulator) {
		s.clockListeners = append(s.clockListeners, fn)
	}
}

// WithTracer overrides the OpenTelemetry tracer used for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulator) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Simulator replays a scenario's missions against a fresh world model.
// Runs are serialized; each run owns its own World.
type Simulator struct {
	scenario *model.Scenario
	cfg      *model.Config

	log            logging.Logger
	recorder       RunRecorder
	clockListeners []func(float64, time.Time)
	tracer         trace.Tracer

	mu    sync.Mutex
	phase atomic.Int32
}

// NewSimulator constructs a simulator for scenario. The scenario is read but
// never mutated.
func NewSimulator(scenario *model.Scenario, opts ...Option) *Simulator {
	s := &Simulator{
		scenario: scenario,
		log:      logging.Noop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase reports the current lifecycle phase.
func (s *Simulator) Phase() Phase { return Phase(s.phase.Load()) }

// Simulate validates the scenario and replays every mission. It blocks while
// another run is in progress. Configuration problems are returned as a
// *ConfigurationError before replay starts. Cancellation is honoured between
// events; a cancelled run returns no result.
func (s *Simulator) Simulate(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulate(ctx)
}

// TrySimulate behaves like Simulate but returns ErrAlreadyRunning instead of
// waiting for an active run.
func (s *Simulator) TrySimulate(ctx context.Context) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.mu.Unlock()
	return s.simulate(ctx)
}

func (s *Simulator) config() model.Config {
	if s.cfg != nil {
		return *s.cfg
	}
	return s.scenario.Config
}

func (s *Simulator) simulate(ctx context.Context) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "core.Simulate",
		trace.WithAttributes(
			attribute.String("scenario", s.scenario.Name),
			attribute.Int("missions", len(s.scenario.Missions)),
		))
	defer span.End()

	cfg := s.config()
	if err := s.validate(ctx, cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid scenario")
		return nil, err
	}

	started := time.Now()
	s.phase.Store(int32(PhaseReplaying))
	s.log.Info(ctx, "simulation started",
		logging.String("scenario", s.scenario.Name),
		logging.Int("missions", len(s.scenario.Missions)),
	)

	r := newRun(ctx, s, cfg)
	if err := r.replay(); err != nil {
		s.phase.Store(int32(PhaseNotStarted))
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}
	s.phase.Store(int32(PhaseCompleted))

	res := r.result
	elapsed := time.Since(started)
	span.SetAttributes(
		attribute.Int("events", res.EventsReplayed),
		attribute.Int("spatial_errors", len(res.SpatialErrors)),
		attribute.Int("demands", len(res.Demands)),
	)
	s.log.Info(ctx, "simulation completed",
		logging.String("scenario", s.scenario.Name),
		logging.Int("events", res.EventsReplayed),
		logging.Int("states", len(res.States)),
		logging.Int("spatial_errors", len(res.SpatialErrors)),
		logging.Int("demands", len(res.Demands)),
		logging.Any("final_time", res.FinalTime),
		logging.Any("elapsed", elapsed),
	)
	if s.recorder != nil {
		s.recorder.RecordRun(elapsed, res.EventsByKind, len(res.SpatialErrors), len(res.Demands))
	}
	return res, nil
}

func (s *Simulator) validate(ctx context.Context, cfg model.Config) error {
	_, span := s.tracer.Start(ctx, "core.Validate")
	defer span.End()

	if err := cfg.Validate(); err != nil {
		return &ConfigurationError{Problems: []error{err}}
	}
	return Validate(s.scenario)
}

// impulseKey identifies one timed impulse demand model of one element state
// or mission.
type impulseKey struct {
	mission int
	element model.ElementID
	state   int
	model   int
}

// grainKey identifies an item accumulator for discretization.
type grainKey struct {
	element  model.ElementID
	location model.LocationID
	item     int
}

// run is the mutable context of a single replay.
type run struct {
	ctx context.Context
	sim *Simulator
	scn *model.Scenario
	cfg model.Config
	log logging.Logger

	world   *World
	queue   eventQueue
	clock   *timectrl.Clock
	windows []MissionWindow
	order   []int

	now float64
	cur *scheduled

	impulses map[impulseKey]bool
	grains   map[grainKey]float64
	repairs  model.RepairLedger

	result *Result
}

func newRun(ctx context.Context, s *Simulator, cfg model.Config) *run {
	scn := s.scenario
	r := &run{
		ctx:      ctx,
		sim:      s,
		scn:      scn,
		cfg:      cfg,
		log:      s.log,
		world:    NewWorld(&scn.Network, scn.Elements),
		clock:    timectrl.NewClock(scn.StartDate),
		impulses: make(map[impulseKey]bool),
		grains:   make(map[grainKey]float64),
		repairs:  scn.RepairedItems.Clone(),
		result: &Result{
			EventsByKind: make(map[model.EventKind]int),
			Config:       cfg,
		},
	}
	windowScn := *scn
	windowScn.Config = cfg
	r.windows = MissionTimeline(&windowScn)
	r.order = missionOrder(scn)
	for _, fn := range s.clockListeners {
		r.clock.AddListener(fn)
	}
	return r
}

func (r *run) replay() error {
	for _, idx := range r.order {
		r.queue.push(&scheduled{
			at:       r.windows[idx].Start,
			priority: math.MinInt32,
			mission:  idx,
			event:    model.Event{Name: r.scn.Missions[idx].Name, Location: r.scn.Missions[idx].Origin},
			step:     func(r *run) { r.startMission(idx) },
		})
	}

	r.snapshot()

	for {
		if err := r.ctx.Err(); err != nil {
			return fmt.Errorf("simulation interrupted at t=%.3f: %w", r.now, err)
		}
		item := r.queue.pop()
		if item == nil {
			break
		}
		r.step(item)
	}
	r.result.FinalTime = r.now
	return nil
}

func (r *run) step(item *scheduled) {
	elapsed := item.at - r.now
	if item.at > r.now {
		r.now = item.at
		r.clock.Advance(r.now)
	}
	r.cur = item
	if elapsed > 0 {
		r.generateElementDemands(elapsed)
	}

	if item.step != nil {
		item.step(r)
	} else {
		r.dispatch(item)
		r.result.EventsReplayed++
		r.result.EventsByKind[item.event.Kind()]++
	}

	if r.world.moved {
		r.snapshot()
	}
}

func (r *run) snapshot() {
	r.result.States = append(r.result.States, r.world.Snapshot(r.now))
	r.world.moved = false
}

// startMission schedules the mission's events and its mission-level demand.
func (r *run) startMission(idx int) {
	m := &r.scn.Missions[idx]
	if len(m.Events) == 0 {
		r.warn(r.cur.event, "no events defined")
	}
	r.log.Debug(r.ctx, "mission started",
		logging.String("mission", m.Name),
		logging.Any("time", r.now),
	)
	for _, ev := range m.Events {
		r.queue.push(&scheduled{
			at:       r.cfg.RoundTime(r.now + ev.Time),
			priority: ev.Priority,
			mission:  idx,
			event:    ev,
		})
	}

	if len(m.DemandModels) == 0 {
		return
	}
	window := r.windows[idx]
	demands := model.NewDemandSet()
	for i, dm := range m.DemandModels {
		key := impulseKey{mission: idx + 1, model: i}
		for _, d := range r.generate(dm, key, window.Duration(), nil) {
			demands.Add(d)
		}
	}
	r.queue.push(&scheduled{
		at:       r.cfg.RoundTime(r.now + window.Transit),
		priority: math.MaxInt32,
		mission:  idx,
		implicit: true,
		event: model.Event{
			Name:     "Demand Event for " + m.Name,
			Location: m.Destination,
			Payload:  model.DemandPayload{Demands: r.discretize(demands.Demands(), 0, m.Destination)},
		},
	})
}

// schedule queues a sub-event delta days from now within the current
// mission.
func (r *run) schedule(delta float64, priority int, ev model.Event, opts ...func(*scheduled)) {
	item := &scheduled{
		at:       r.cfg.RoundTime(r.now + delta),
		priority: priority,
		event:    ev,
	}
	if r.cur != nil {
		item.mission = r.cur.mission
	}
	for _, opt := range opts {
		opt(item)
	}
	r.queue.push(item)
}

func skippingRemoved(s *scheduled) { s.skipRemoved = true }

func (r *run) spatial(ev model.Event, format string, args ...any) {
	e := model.SpatialError{
		Time:    r.now,
		Event:   ev.Name,
		Kind:    ev.Kind(),
		Message: fmt.Sprintf(format, args...),
	}
	r.result.SpatialErrors = append(r.result.SpatialErrors, e)
	r.log.Debug(r.ctx, "spatial error",
		logging.String("event", e.Event),
		logging.String("kind", e.Kind.String()),
		logging.String("message", e.Message),
		logging.Any("time", e.Time),
	)
}

func (r *run) warn(ev model.Event, format string, args ...any) {
	r.result.Warnings = append(r.result.Warnings, model.Warning{
		Time:    r.now,
		Event:   ev.Name,
		Message: fmt.Sprintf(format, args...),
	})
}
