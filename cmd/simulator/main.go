package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/signalsfoundry/logistics-simulator/analysis"
	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/internal/config"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/observability"
	"github.com/signalsfoundry/logistics-simulator/internal/store"
	"github.com/signalsfoundry/logistics-simulator/kb"
	"github.com/signalsfoundry/logistics-simulator/model"
	"github.com/signalsfoundry/logistics-simulator/timectrl"
)

type cliOptions struct {
	ScenarioPath   string
	Discretization string
	Aggregation    float64
	Play           bool
	DayDuration    time.Duration
	JSON           bool
}

func main() {
	configDir := flag.String("config", ".", "Directory searched for simulator.yaml or simulator.json")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before configuration")
	var opts cliOptions
	flag.StringVar(&opts.ScenarioPath, "scenario", "", "Scenario file (YAML or JSON) to simulate")
	flag.StringVar(&opts.Discretization, "discretization", "", "Override item discretization: none, element, location or scenario")
	flag.Float64Var(&opts.Aggregation, "aggregation", -1, "Override item aggregation in [0,1]")
	flag.BoolVar(&opts.Play, "play", false, "Replay element locations frame by frame after the run")
	flag.DurationVar(&opts.DayDuration, "day", 0, "Wall-clock time per simulated day during -play (0 = accelerated)")
	flag.BoolVar(&opts.JSON, "json", false, "Print the summary as JSON")
	flag.Parse()

	if opts.ScenarioPath == "" && flag.NArg() > 0 {
		opts.ScenarioPath = flag.Arg(0)
	}
	if opts.ScenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: simulator [flags] -scenario <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
}

// summary is the printed outcome of one run.
type summary struct {
	RunID         string                 `json:"runId"`
	Scenario      string                 `json:"scenario"`
	Elapsed       string                 `json:"elapsed"`
	Events        int                    `json:"events"`
	EventsByKind  map[string]int         `json:"eventsByKind"`
	FinalTime     float64                `json:"finalTime"`
	SpatialErrors []model.SpatialError   `json:"spatialErrors"`
	Warnings      []model.Warning        `json:"warnings"`
	Demands       int                    `json:"demands"`
	DemandMass    float64                `json:"demandMass"`
	Measures      analysis.Measures      `json:"measures"`
	EdgeDemands   []analysis.EdgeDemand  `json:"edgeDemands"`
	PointDemands  []analysis.PointDemand `json:"pointDemands"`
}

func run(ctx context.Context, cfg config.Config, opts cliOptions, out io.Writer, log logging.Logger) error {
	f, err := os.Open(opts.ScenarioPath)
	if err != nil {
		return err
	}
	defer f.Close()

	catalog := kb.NewKnowledgeBase()
	scn, err := core.LoadScenario(catalog, f)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.ScenarioPath, err)
	}

	simCfg, err := runConfig(cfg, scn.Config, opts)
	if err != nil {
		return err
	}

	started := time.Now()
	res, err := core.NewSimulator(scn, core.WithConfig(simCfg), core.WithLogger(log)).Simulate(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)
	runID := uuid.NewString()

	agg := analysis.Aggregate(ctx, &scn.Network, res)
	moe := analysis.MeasuresOfEffectiveness(ctx, scn, res)
	sum := summarize(runID, scn.Name, elapsed, res, agg, moe)

	export(ctx, cfg, log, runID, scn.Name, started, elapsed, res)

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			return err
		}
	} else {
		printSummary(out, sum)
	}

	if opts.Play {
		play(ctx, out, scn, res, opts.DayDuration)
	}
	return nil
}

// runConfig resolves the configuration: the scenario's own, replaced by the
// config file's simulation section when override is set, then flags.
func runConfig(cfg config.Config, scenario model.Config, opts cliOptions) (model.Config, error) {
	out := scenario
	if cfg.Simulation.Override {
		c, err := cfg.Simulation.Model()
		if err != nil {
			return model.Config{}, err
		}
		out = c
	}
	if opts.Discretization != "" {
		d, err := model.ParseItemDiscretization(opts.Discretization)
		if err != nil {
			return model.Config{}, err
		}
		out.ItemDiscretization = d
	}
	if opts.Aggregation >= 0 {
		out.ItemAggregation = opts.Aggregation
	}
	if err := out.Validate(); err != nil {
		return model.Config{}, err
	}
	return out, nil
}

func summarize(runID, scenario string, elapsed time.Duration, res *core.Result, agg analysis.Aggregation, moe analysis.Measures) summary {
	s := summary{
		RunID:         runID,
		Scenario:      scenario,
		Elapsed:       elapsed.Round(time.Microsecond).String(),
		Events:        res.EventsReplayed,
		EventsByKind:  make(map[string]int, len(res.EventsByKind)),
		FinalTime:     res.FinalTime,
		SpatialErrors: res.SpatialErrors,
		Warnings:      res.Warnings,
		Demands:       len(res.Demands),
		Measures:      moe,
		EdgeDemands:   agg.EdgeDemands,
		PointDemands:  agg.PointDemands,
	}
	for kind, n := range res.EventsByKind {
		s.EventsByKind[kind.String()] = n
	}
	for _, d := range res.Demands {
		s.DemandMass += d.TotalMass()
	}
	return s
}

func printSummary(out io.Writer, s summary) {
	fmt.Fprintf(out, "Scenario %q run %s finished in %s\n", s.Scenario, s.RunID, s.Elapsed)
	fmt.Fprintf(out, "Replayed %d events to day %.2f\n", s.Events, s.FinalTime)

	kinds := make([]string, 0, len(s.EventsByKind))
	for k := range s.EventsByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-18s %d\n", k, s.EventsByKind[k])
	}

	fmt.Fprintf(out, "Demands: %d records, %.2f kg unmet\n", s.Demands, s.DemandMass)
	fmt.Fprintf(out, "Launches: %d, total launch mass %.1f kg, crew surface days %.2f\n",
		len(s.Measures.Launches), s.Measures.TotalLaunchMass, s.Measures.CrewSurfaceDays)

	if len(s.SpatialErrors) > 0 {
		fmt.Fprintf(out, "Spatial errors (%d):\n", len(s.SpatialErrors))
		for _, e := range s.SpatialErrors {
			fmt.Fprintf(out, "  %s\n", e.Error())
		}
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(out, "warning: t=%.3f %s: %s\n", w.Time, w.Event, w.Message)
	}

	if len(s.EdgeDemands) > 0 || len(s.PointDemands) > 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LEG\tFROM\tTO\tSTART\tEND\tCAPACITY KG\tDEMAND KG")
		for _, e := range s.EdgeDemands {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%.2f\t%.2f\t%.1f\t%.1f\n",
				e.Edge.Edge, e.Edge.Origin, e.Edge.Destination, e.Edge.Start, e.Edge.End,
				e.Edge.MaxCargoMass, e.TotalMass())
		}
		for _, p := range s.PointDemands {
			fmt.Fprintf(tw, "-\t-\t%d\t%.2f\t-\t-\t%.1f\n", p.Point.Node, p.Point.Time, p.TotalMass())
		}
		_ = tw.Flush()
	}
}

// play replays the recorded element locations through a timectrl.Player.
func play(ctx context.Context, out io.Writer, scn *model.Scenario, res *core.Result, dayDuration time.Duration) {
	mode := timectrl.Accelerated
	if dayDuration > 0 {
		mode = timectrl.RealTime
	}
	frames := make([]float64, len(res.States))
	for i, st := range res.States {
		frames[i] = st.Time
	}

	player := timectrl.NewPlayer(mode, dayDuration)
	player.AddListener(func(frame int, days float64) {
		st := res.States[frame]
		ids := make([]model.ElementID, 0, len(st.Locations))
		for id := range st.Locations {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Fprintf(out, "[%s] day %.2f:", timectrl.DateAt(scn.StartDate, days).Format(time.DateOnly), days)
		for _, id := range ids {
			fmt.Fprintf(out, " %d@%d", id, st.Locations[id])
		}
		fmt.Fprintln(out)
	})
	<-player.Start(ctx, frames)
}

// export writes the run to the results store and InfluxDB when they are
// enabled. Failures are logged and do not fail the run.
func export(ctx context.Context, cfg config.Config, log logging.Logger, runID, scenario string, started time.Time, elapsed time.Duration, res *core.Result) {
	zl := logging.Zerolog(log)
	if cfg.Store.Enabled {
		db, err := store.Open(store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN, Path: cfg.Store.Path}, zl)
		if err != nil {
			log.Warn(ctx, "results store unavailable", logging.Err(err))
		} else {
			if _, err := db.SaveRun(ctx, runID, scenario, started, elapsed, res); err != nil {
				log.Warn(ctx, "failed to save run", logging.String("run_id", runID), logging.Err(err))
			}
			_ = db.Close()
		}
	}
	if cfg.Influx.Enabled {
		reporter, err := observability.NewInfluxReporter(ctx, cfg.Influx.Observability(), zl)
		if err != nil {
			log.Warn(ctx, "influx reporting unavailable", logging.Err(err))
			return
		}
		defer reporter.Close()
		point := observability.NewRunSummary(runID, scenario, started.Add(elapsed), elapsed, res)
		if err := reporter.ReportRun(ctx, point); err != nil {
			log.Warn(ctx, "failed to report run", logging.String("run_id", runID), logging.Err(err))
		}
	}
}
