package observability

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/signalsfoundry/logistics-simulator/core"
)

// RunMeasurement is the InfluxDB measurement written for every run.
const RunMeasurement = "simulation_run"

// InfluxConfig selects the InfluxDB server and the fallback backup file.
type InfluxConfig struct {
	Enabled    bool
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string // gzip line protocol, used when the server is unreachable
}

// RunSummary is the per-run data reported to InfluxDB.
type RunSummary struct {
	RunID         string
	Scenario      string
	CompletedAt   time.Time
	Elapsed       time.Duration
	Events        int
	SpatialErrors int
	Warnings      int
	Demands       int
	DemandMass    float64
	FinalTime     float64
}

// NewRunSummary fills a summary from a completed result.
func NewRunSummary(runID, scenario string, completedAt time.Time, elapsed time.Duration, res *core.Result) RunSummary {
	s := RunSummary{
		RunID:       runID,
		Scenario:    scenario,
		CompletedAt: completedAt,
		Elapsed:     elapsed,
	}
	if res == nil {
		return s
	}
	s.Events = res.EventsReplayed
	s.SpatialErrors = len(res.SpatialErrors)
	s.Warnings = len(res.Warnings)
	s.Demands = len(res.Demands)
	for _, d := range res.Demands {
		s.DemandMass += d.TotalMass()
	}
	s.FinalTime = res.FinalTime
	return s
}

// InfluxReporter writes one point per simulation run, either to InfluxDB
// through the blocking write API or as line protocol to a backup writer.
type InfluxReporter struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPIBlocking
	log    zerolog.Logger

	mu     sync.Mutex
	backup io.Writer
	closer io.Closer
}

// NewInfluxReporter connects to the configured server. When the server does
// not answer a ping and a backup path is configured, points are appended to
// that file instead.
func NewInfluxReporter(ctx context.Context, cfg InfluxConfig, log zerolog.Logger) (*InfluxReporter, error) {
	if !cfg.Enabled {
		return nil, errors.New("influx reporting is disabled")
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, influxdb2.DefaultOptions().SetBatchSize(100))

	running, err := client.Ping(ctx)
	if err == nil && running {
		log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("InfluxDB client initialized")
		return &InfluxReporter{client: client, writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket), log: log}, nil
	}
	client.Close()

	if cfg.BackupPath == "" {
		if err == nil {
			err = errors.New("server not ready")
		}
		return nil, fmt.Errorf("influxdb at %s unreachable: %w", cfg.URL, err)
	}
	log.Warn().Str("backupPath", cfg.BackupPath).Msg("InfluxDB unreachable, writing to backup file")
	file, err := os.OpenFile(cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error creating backup file: %w", err)
	}
	gz := gzip.NewWriter(file)
	return &InfluxReporter{log: log, backup: gz, closer: multiCloser{gz, file}}, nil
}

// NewLineProtocolReporter writes points as line protocol to w.
func NewLineProtocolReporter(w io.Writer, log zerolog.Logger) *InfluxReporter {
	return &InfluxReporter{backup: w, log: log}
}

// RunPoint converts a summary to an InfluxDB point.
func RunPoint(s RunSummary) *influxdb2_write.Point {
	return influxdb2.NewPoint(RunMeasurement,
		map[string]string{
			"scenario": s.Scenario,
			"run_id":   s.RunID,
		},
		map[string]any{
			"elapsed_ms":     s.Elapsed.Milliseconds(),
			"events":         s.Events,
			"spatial_errors": s.SpatialErrors,
			"warnings":       s.Warnings,
			"demands":        s.Demands,
			"demand_mass":    s.DemandMass,
			"final_time":     s.FinalTime,
		},
		s.CompletedAt,
	)
}

// ReportRun writes one run summary.
func (r *InfluxReporter) ReportRun(ctx context.Context, s RunSummary) error {
	if r == nil {
		return nil
	}
	point := RunPoint(s)
	if r.writer != nil {
		if err := r.writer.WritePoint(ctx, point); err != nil {
			r.log.Error().Err(err).Str("run_id", s.RunID).Msg("Error sending run to InfluxDB")
			return err
		}
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backup == nil {
		return errors.New("influx reporter has no writer")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := io.WriteString(r.backup, line+"\n"); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup: %w", err)
	}
	return nil
}

// Close flushes the backup file and releases the client.
func (r *InfluxReporter) Close() error {
	if r == nil {
		return nil
	}
	if r.client != nil {
		r.client.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
