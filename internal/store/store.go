// Package store persists simulation runs and their result records through
// gorm. SQLite is used by default, on disk or in memory; Postgres is used
// when a DSN is configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/signalsfoundry/logistics-simulator/core"
	"github.com/signalsfoundry/logistics-simulator/model"
)

var (
	// ErrRunNotFound indicates a requested run does not exist.
	ErrRunNotFound = errors.New("run not found")
	// ErrUnknownDriver indicates an unsupported database driver.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Config selects the database.
type Config struct {
	Driver string // sqlite (default) or postgres
	DSN    string
	Path   string // sqlite file; empty for an in-memory database
}

// Manager owns the database connection.
type Manager struct {
	DB     *gorm.DB
	SqlDB  *sql.DB
	Logger zerolog.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log zerolog.Logger) (*Manager, error) {
	m := &Manager{Logger: log}

	var err error
	switch cfg.Driver {
	case "", "sqlite":
		m.DB, err = m.sqliteDB(cfg.Path)
	case "postgres":
		m.DB, err = m.postgresDB(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := m.SqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	if err := m.Migrate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) postgresDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres store requires a DSN")
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	m.Logger.Info().Msg("Connected to Postgres results store")
	return db, nil
}

func (m *Manager) sqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		// Each in-memory store gets its own named database so separate
		// managers in one process never share tables.
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	if path == "" {
		m.Logger.Info().Msg("Using in-memory SQLite results store")
	} else {
		m.Logger.Info().Str("path", path).Msg("Using SQLite results store")
	}
	return db, nil
}

// Migrate creates or updates every table.
func (m *Manager) Migrate() error {
	if err := m.DB.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection.
func (m *Manager) Close() error {
	if m == nil || m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// SaveRun writes a result and all of its records in one transaction. An
// empty runID is replaced by a fresh UUID.
func (m *Manager) SaveRun(ctx context.Context, runID, scenario string, startedAt time.Time, elapsed time.Duration, res *core.Result) (*Run, error) {
	if res == nil {
		return nil, errors.New("nil result")
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	run, err := newRun(runID, scenario, startedAt, elapsed, res)
	if err != nil {
		return nil, err
	}
	err = m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("run_id", runID).Msg("Failed to save run")
		return nil, fmt.Errorf("save run %s: %w", runID, err)
	}
	m.Logger.Debug().
		Str("run_id", runID).
		Int("states", len(run.States)).
		Int("demands", len(run.Demands)).
		Msg("Saved run")
	return run, nil
}

// GetRun loads a run with all of its records.
func (m *Manager) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := m.DB.WithContext(ctx).
		Preload("States", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Demands", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Scavenges", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Preload("Edges", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns run headers, newest first. A non-positive limit returns
// every run.
func (m *Manager) ListRuns(ctx context.Context, scenario string, limit int) ([]Run, error) {
	q := m.DB.WithContext(ctx).Order("started_at DESC")
	if scenario != "" {
		q = q.Where("scenario = ?", scenario)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// DeleteRun removes a run and its records.
func (m *Manager) DeleteRun(ctx context.Context, id string) error {
	return m.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range Models[1:] {
			if err := tx.Where("run_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&Run{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %q", ErrRunNotFound, id)
		}
		return nil
	})
}

func newRun(id, scenario string, startedAt time.Time, elapsed time.Duration, res *core.Result) (*Run, error) {
	cfg, err := json.Marshal(res.Config)
	if err != nil {
		return nil, err
	}
	byKind := make(map[string]int, len(res.EventsByKind))
	for k, n := range res.EventsByKind {
		byKind[k.String()] = n
	}
	kinds, err := json.Marshal(byKind)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:             id,
		Scenario:       scenario,
		StartedAt:      startedAt.UTC(),
		ElapsedMS:      elapsed.Milliseconds(),
		FinalTime:      res.FinalTime,
		EventsReplayed: res.EventsReplayed,
		Config:         datatypes.JSON(cfg),
		EventsByKind:   datatypes.JSON(kinds),
	}

	for i, s := range res.States {
		locs, err := json.Marshal(s.Locations)
		if err != nil {
			return nil, err
		}
		parents, err := json.Marshal(s.Parents)
		if err != nil {
			return nil, err
		}
		run.States = append(run.States, StateRow{RunID: id, Seq: i, Time: s.Time, Locations: locs, Parents: parents})
	}
	for i, d := range res.Demands {
		demands, err := json.Marshal(d.Demands)
		if err != nil {
			return nil, err
		}
		mass := d.TotalMass()
		run.DemandMass += mass
		run.Demands = append(run.Demands, DemandRow{
			RunID:    id,
			Seq:      i,
			Time:     d.Time,
			Location: int(d.Location),
			Element:  int(d.Element),
			Event:    d.Event,
			Mass:     mass,
			Demands:  demands,
		})
	}
	seq := 0
	for _, e := range res.SpatialErrors {
		run.Issues = append(run.Issues, IssueRow{
			RunID: id, Seq: seq, Severity: SeveritySpatial,
			Time: e.Time, Event: e.Event, Kind: e.Kind.String(), Message: e.Message,
		})
		seq++
	}
	for _, w := range res.Warnings {
		run.Issues = append(run.Issues, IssueRow{
			RunID: id, Seq: seq, Severity: SeverityWarning,
			Time: w.Time, Event: w.Event, Message: w.Message,
		})
		seq++
	}
	for i, s := range res.Scavenges {
		part, err := json.Marshal(s.Part)
		if err != nil {
			return nil, err
		}
		run.Scavenges = append(run.Scavenges, ScavengeRow{
			RunID:    id,
			Seq:      i,
			Time:     s.Time,
			Location: int(s.Location),
			Source:   int(s.Source),
			Consumer: int(s.Consumer),
			Amount:   s.Amount,
			Part:     part,
		})
	}
	for i, e := range res.SupplyEdges {
		carriers, err := json.Marshal(e.Carriers)
		if err != nil {
			return nil, err
		}
		run.Edges = append(run.Edges, EdgeRow{
			RunID:        id,
			Seq:          i,
			Edge:         int(e.Edge),
			Origin:       int(e.Origin),
			Destination:  int(e.Destination),
			Reversed:     e.Reversed,
			Start:        e.Start,
			End:          e.End,
			Mission:      e.Mission,
			Mass:         e.Mass,
			MaxCargoMass: e.MaxCargoMass,
			CargoMass:    e.CargoMass,
			Crew:         e.Crew,
			Carriers:     carriers,
		})
	}
	return run, nil
}

// Result rebuilds the replay result from a loaded run. Repairs and supply
// points are not persisted; supply points are derived again from the edges.
func (r *Run) Result() (*core.Result, error) {
	res := &core.Result{
		FinalTime:      r.FinalTime,
		EventsReplayed: r.EventsReplayed,
		EventsByKind:   map[model.EventKind]int{},
	}
	if len(r.Config) > 0 {
		if err := json.Unmarshal(r.Config, &res.Config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if len(r.EventsByKind) > 0 {
		var byKind map[string]int
		if err := json.Unmarshal(r.EventsByKind, &byKind); err != nil {
			return nil, fmt.Errorf("decode event counts: %w", err)
		}
		for name, n := range byKind {
			if k, ok := model.ParseEventKind(name); ok {
				res.EventsByKind[k] = n
			}
		}
	}

	for _, s := range r.States {
		state := model.SimState{Time: s.Time}
		if err := json.Unmarshal(s.Locations, &state.Locations); err != nil {
			return nil, fmt.Errorf("decode state %d: %w", s.Seq, err)
		}
		if len(s.Parents) > 0 && string(s.Parents) != "null" {
			if err := json.Unmarshal(s.Parents, &state.Parents); err != nil {
				return nil, fmt.Errorf("decode state %d parents: %w", s.Seq, err)
			}
		}
		res.States = append(res.States, state)
	}
	for _, d := range r.Demands {
		rec := model.SimDemand{
			Time:     d.Time,
			Location: model.LocationID(d.Location),
			Element:  model.ElementID(d.Element),
			Event:    d.Event,
		}
		if err := json.Unmarshal(d.Demands, &rec.Demands); err != nil {
			return nil, fmt.Errorf("decode demand %d: %w", d.Seq, err)
		}
		res.Demands = append(res.Demands, rec)
	}
	for _, is := range r.Issues {
		switch is.Severity {
		case SeveritySpatial:
			k, _ := model.ParseEventKind(is.Kind)
			res.SpatialErrors = append(res.SpatialErrors, model.SpatialError{Time: is.Time, Event: is.Event, Kind: k, Message: is.Message})
		case SeverityWarning:
			res.Warnings = append(res.Warnings, model.Warning{Time: is.Time, Event: is.Event, Message: is.Message})
		}
	}
	for _, s := range r.Scavenges {
		rec := model.SimScavenge{
			Time:     s.Time,
			Location: model.LocationID(s.Location),
			Source:   model.ElementID(s.Source),
			Consumer: model.ElementID(s.Consumer),
			Amount:   s.Amount,
		}
		if err := json.Unmarshal(s.Part, &rec.Part); err != nil {
			return nil, fmt.Errorf("decode scavenge %d: %w", s.Seq, err)
		}
		res.Scavenges = append(res.Scavenges, rec)
	}
	seen := map[model.SupplyPoint]bool{}
	for _, e := range r.Edges {
		edge := model.SupplyEdge{
			Edge:         model.LocationID(e.Edge),
			Origin:       model.LocationID(e.Origin),
			Destination:  model.LocationID(e.Destination),
			Reversed:     e.Reversed,
			Start:        e.Start,
			End:          e.End,
			Mission:      e.Mission,
			Mass:         e.Mass,
			MaxCargoMass: e.MaxCargoMass,
			CargoMass:    e.CargoMass,
			Crew:         e.Crew,
		}
		if err := json.Unmarshal(e.Carriers, &edge.Carriers); err != nil {
			return nil, fmt.Errorf("decode edge %d carriers: %w", e.Seq, err)
		}
		res.SupplyEdges = append(res.SupplyEdges, edge)
		if p := edge.Point(); !seen[p] {
			seen[p] = true
			res.SupplyPoints = append(res.SupplyPoints, p)
		}
	}
	return res, nil
}
