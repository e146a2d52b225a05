package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/logistics-simulator/internal/config"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/nbi"
	"github.com/signalsfoundry/logistics-simulator/internal/observability"
	sim "github.com/signalsfoundry/logistics-simulator/internal/sim/state"
	"github.com/signalsfoundry/logistics-simulator/internal/store"
	"github.com/signalsfoundry/logistics-simulator/kb"
)

// serverOptions carries command-line settings that are not part of the
// shared configuration.
type serverOptions struct {
	// ScenarioPath is loaded before the listeners accept requests.
	ScenarioPath string
	// Registry receives the Prometheus collectors; nil uses a fresh one.
	Registry *prometheus.Registry
}

func main() {
	configDir := flag.String("config", ".", "Directory searched for simulator.yaml or simulator.json")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before configuration")
	scenarioPath := flag.String("scenario", "", "Scenario file to load at startup")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := cfg.Logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}
	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.Server.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, serverOptions{ScenarioPath: *scenarioPath}, log, grpcLis, httpLis); err != nil {
		log.Error(ctx, "sim-server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then shuts both servers down.
func run(ctx context.Context, cfg config.Config, opts serverOptions, log logging.Logger, grpcLis, httpLis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Observability(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	collector, err := observability.NewSimulationCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	stateOpts := []sim.ScenarioStateOption{
		sim.WithMetricsRecorder(collector),
		sim.WithRunRecorder(collector),
	}
	if cfg.Simulation.Override {
		simCfg, err := cfg.Simulation.Model()
		if err != nil {
			return err
		}
		stateOpts = append(stateOpts, sim.WithDefaultConfig(simCfg))
	}

	var archive nbi.RunArchive
	if cfg.Store.Enabled {
		db, err := store.Open(store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN, Path: cfg.Store.Path}, logging.Zerolog(log))
		if err != nil {
			return fmt.Errorf("open results store: %w", err)
		}
		defer db.Close()
		archive = db
		stateOpts = append(stateOpts, sim.WithRunHook(storeHook(db)))
	}
	if cfg.Influx.Enabled {
		reporter, err := observability.NewInfluxReporter(ctx, cfg.Influx.Observability(), logging.Zerolog(log))
		if err != nil {
			log.Warn(ctx, "influx reporting disabled", logging.Err(err))
		} else {
			defer reporter.Close()
			stateOpts = append(stateOpts, sim.WithRunHook(influxHook(reporter)))
		}
	}

	state := sim.NewScenarioState(kb.NewKnowledgeBase(), log, stateOpts...)
	if opts.ScenarioPath != "" {
		f, err := os.Open(opts.ScenarioPath)
		if err != nil {
			return fmt.Errorf("open scenario: %w", err)
		}
		scn, err := state.LoadScenario(ctx, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load scenario %s: %w", opts.ScenarioPath, err)
		}
		log.Info(ctx, "scenario loaded", logging.String("scenario", scn.Name), logging.String("path", opts.ScenarioPath))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Server.SimulateRate), cfg.Server.SimulateBurst)
	if cfg.Server.SimulateRate <= 0 {
		limiter = nil
	}
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			nbi.RequestIDUnaryServerInterceptor(log),
			nbi.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
			nbi.RateLimitUnaryServerInterceptor(limiter, nbi.SimulationService_Simulate_FullMethodName),
		),
	)
	nbi.RegisterSimulationServer(grpcServer, nbi.NewSimulationService(state, log))
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(nbi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	httpServer := &http.Server{
		Handler: nbi.NewHTTPHandler(nbi.HTTPOptions{
			State:          state,
			Metrics:        collector.Handler(),
			Stream:         nbi.NewStateStream(state, collector, cfg.Server.StreamInterval, log),
			Archive:        archive,
			AllowedOrigins: cfg.Server.CORSOrigins,
			Log:            log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting gRPC server", logging.String("addr", grpcLis.Addr().String()))
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logging.String("addr", httpLis.Addr().String()))
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down sim-server")
		healthSrv.Shutdown()

		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// storeHook persists every kept run to the results store.
func storeHook(db *store.Manager) sim.RunHook {
	return func(ctx context.Context, rec *sim.RunRecord) error {
		_, err := db.SaveRun(ctx, rec.ID, rec.Scenario, rec.StartedAt, rec.Elapsed, rec.Result)
		return err
	}
}

// influxHook reports a summary point for every kept run.
func influxHook(r *observability.InfluxReporter) sim.RunHook {
	return func(ctx context.Context, rec *sim.RunRecord) error {
		return r.ReportRun(ctx, observability.NewRunSummary(
			rec.ID, rec.Scenario, rec.StartedAt.Add(rec.Elapsed), rec.Elapsed, rec.Result))
	}
}
