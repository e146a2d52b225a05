package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/logistics-simulator/model"
)

// SimulationCollector bundles Prometheus metrics for simulation runs, the
// loaded scenario and the RPC surface. It satisfies core.RunRecorder and the
// state package's metrics recorder.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Runs           prometheus.Counter
	RunDuration    prometheus.Histogram
	EventsReplayed *prometheus.CounterVec
	SpatialErrors  prometheus.Counter
	DemandRecords  prometheus.Counter

	ScenarioMissions  prometheus.Gauge
	ScenarioElements  prometheus.Gauge
	ScenarioLocations prometheus.Gauge
	ScenarioResources prometheus.Gauge

	StreamClients prometheus.Gauge
	StreamFrames  prometheus.Counter
}

// NewSimulationCollector registers the metrics against reg, defaulting to
// the global Prometheus registry when nil. Registering twice against the
// same registry reuses the existing collectors.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &SimulationCollector{gatherer: gatherer}

	var err error
	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_rpc_requests_total",
		Help: "Total number of handled simulation RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"})); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_rpc_duration_seconds",
		Help:    "Simulation RPC latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"service", "method"})); err != nil {
		return nil, err
	}

	if c.Runs, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_runs_total",
		Help: "Completed simulation runs.",
	})); err != nil {
		return nil, err
	}
	if c.RunDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_run_duration_seconds",
		Help:    "Wall-clock duration of completed simulation runs.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})); err != nil {
		return nil, err
	}
	if c.EventsReplayed, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_events_replayed_total",
		Help: "Events replayed across all runs, labeled by event kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.SpatialErrors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_spatial_errors_total",
		Help: "Spatial errors recorded across all runs.",
	})); err != nil {
		return nil, err
	}
	if c.DemandRecords, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_demand_records_total",
		Help: "Demand records emitted across all runs.",
	})); err != nil {
		return nil, err
	}

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.ScenarioMissions, "scenario_missions", "Missions in the loaded scenario."},
		{&c.ScenarioElements, "scenario_elements", "Elements in the loaded scenario."},
		{&c.ScenarioLocations, "scenario_locations", "Nodes and edges in the loaded scenario."},
		{&c.ScenarioResources, "scenario_resources", "Resources in the catalog."},
		{&c.StreamClients, "sim_stream_clients", "Connected state stream clients."},
	}
	for _, g := range gauges {
		if *g.dst, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help})); err != nil {
			return nil, err
		}
	}
	if c.StreamFrames, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_stream_frames_total",
		Help: "State snapshots written to stream clients.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordRun records a completed simulation run.
func (c *SimulationCollector) RecordRun(elapsed time.Duration, eventsByKind map[model.EventKind]int, spatialErrors, demands int) {
	if c == nil {
		return
	}
	c.Runs.Inc()
	c.RunDuration.Observe(elapsed.Seconds())
	for kind, n := range eventsByKind {
		c.EventsReplayed.WithLabelValues(kind.String()).Add(float64(n))
	}
	c.SpatialErrors.Add(float64(spatialErrors))
	c.DemandRecords.Add(float64(demands))
}

// SetScenarioCounts updates the scenario gauges.
func (c *SimulationCollector) SetScenarioCounts(missions, elements, locations, resources int) {
	if c == nil {
		return
	}
	c.ScenarioMissions.Set(float64(missions))
	c.ScenarioElements.Set(float64(elements))
	c.ScenarioLocations.Set(float64(locations))
	c.ScenarioResources.Set(float64(resources))
}

// StreamOpened and StreamClosed track connected stream clients.
func (c *SimulationCollector) StreamOpened() {
	if c != nil {
		c.StreamClients.Inc()
	}
}

func (c *SimulationCollector) StreamClosed() {
	if c != nil {
		c.StreamClients.Dec()
	}
}

// FrameSent counts one streamed snapshot.
func (c *SimulationCollector) FrameSent() {
	if c != nil {
		c.StreamFrames.Inc()
	}
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *SimulationCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Gatherer returns the gatherer the collector registered against.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

// register adds col to reg, returning the already registered collector of
// the same type when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return col, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return col, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return existing, nil
	}
	return col, nil
}
