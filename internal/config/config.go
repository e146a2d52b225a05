// Package config loads the simulator configuration from defaults, an
// optional simulator.yaml or simulator.json file and SPACENET_* environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/observability"
	"github.com/signalsfoundry/logistics-simulator/model"
)

// EnvPrefix prefixes every environment override, e.g.
// SPACENET_SERVER_GRPCADDR.
const EnvPrefix = "SPACENET"

// FileName is the config file base name searched for in the config dir.
const FileName = "simulator"

// SimulationConfig mirrors model.Config with text-friendly types. It only
// replaces a scenario's own configuration when Override is set.
type SimulationConfig struct {
	Override               bool    `mapstructure:"override"`
	ItemDiscretization     string  `mapstructure:"itemDiscretization"`
	ItemAggregation        float64 `mapstructure:"itemAggregation"`
	ScavengeSpares         bool    `mapstructure:"scavengeSpares"`
	PackingDemandsAdded    bool    `mapstructure:"packingDemandsAdded"`
	DemandsSatisfied       bool    `mapstructure:"demandsSatisfied"`
	EnvironmentConstrained bool    `mapstructure:"environmentConstrained"`
	VolumeConstrained      bool    `mapstructure:"volumeConstrained"`
	DetailedEVA            bool    `mapstructure:"detailedEva"`
	TimePrecision          float64 `mapstructure:"timePrecision"`
	DemandPrecision        float64 `mapstructure:"demandPrecision"`
	MassPrecision          float64 `mapstructure:"massPrecision"`
	VolumePrecision        float64 `mapstructure:"volumePrecision"`
}

// ServerConfig holds the sim-server listeners and request limits.
type ServerConfig struct {
	GRPCAddr        string        `mapstructure:"grpcAddr"`
	HTTPAddr        string        `mapstructure:"httpAddr"`
	SimulateRate    float64       `mapstructure:"simulateRate"` // runs per second
	SimulateBurst   int           `mapstructure:"simulateBurst"`
	CORSOrigins     []string      `mapstructure:"corsOrigins"`
	StreamInterval  time.Duration `mapstructure:"streamInterval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// StoreConfig selects the results database. An empty DSN with a driver of
// sqlite uses Path, or memory when Path is empty.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // sqlite or postgres
	DSN     string `mapstructure:"dsn"`
	Path    string `mapstructure:"path"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"serviceName"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
}

// InfluxConfig mirrors observability.InfluxConfig.
type InfluxConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Token      string `mapstructure:"token"`
	Org        string `mapstructure:"org"`
	Bucket     string `mapstructure:"bucket"`
	BackupPath string `mapstructure:"backupPath"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Backend string `mapstructure:"backend"`
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
}

// Config is the full simulator configuration.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Influx     InfluxConfig     `mapstructure:"influx"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	def := model.DefaultConfig()
	v.SetDefault("simulation.override", false)
	v.SetDefault("simulation.itemDiscretization", def.ItemDiscretization.String())
	v.SetDefault("simulation.itemAggregation", def.ItemAggregation)
	v.SetDefault("simulation.scavengeSpares", def.ScavengeSpares)
	v.SetDefault("simulation.packingDemandsAdded", def.PackingDemandsAdded)
	v.SetDefault("simulation.demandsSatisfied", def.DemandsSatisfied)
	v.SetDefault("simulation.environmentConstrained", def.EnvironmentConstrained)
	v.SetDefault("simulation.volumeConstrained", def.VolumeConstrained)
	v.SetDefault("simulation.detailedEva", def.DetailedEVA)
	v.SetDefault("simulation.timePrecision", def.TimePrecision)
	v.SetDefault("simulation.demandPrecision", def.DemandPrecision)
	v.SetDefault("simulation.massPrecision", def.MassPrecision)
	v.SetDefault("simulation.volumePrecision", def.VolumePrecision)

	v.SetDefault("server.grpcAddr", ":50051")
	v.SetDefault("server.httpAddr", ":8080")
	v.SetDefault("server.simulateRate", 2.0)
	v.SetDefault("server.simulateBurst", 4)
	v.SetDefault("server.corsOrigins", []string{"*"})
	v.SetDefault("server.streamInterval", "100ms")
	v.SetDefault("server.shutdownTimeout", "5s")

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.path", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "logistics-simulator")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampleRatio", 1.0)

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "spacenet")
	v.SetDefault("influx.bucket", "simulation_runs")
	v.SetDefault("influx.backupPath", "")

	v.SetDefault("logging.backend", "slog")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration. The config file is optional; configDir may be
// empty to skip looking for one.
func Load(configDir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.SetConfigName(FileName)
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if _, err := cfg.Simulation.Model(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Model converts the simulation section to a validated model.Config.
func (c SimulationConfig) Model() (model.Config, error) {
	disc, err := model.ParseItemDiscretization(c.ItemDiscretization)
	if err != nil {
		return model.Config{}, fmt.Errorf("simulation: %w", err)
	}
	cfg := model.Config{
		ItemDiscretization:     disc,
		ItemAggregation:        c.ItemAggregation,
		ScavengeSpares:         c.ScavengeSpares,
		PackingDemandsAdded:    c.PackingDemandsAdded,
		DemandsSatisfied:       c.DemandsSatisfied,
		EnvironmentConstrained: c.EnvironmentConstrained,
		VolumeConstrained:      c.VolumeConstrained,
		DetailedEVA:            c.DetailedEVA,
		TimePrecision:          c.TimePrecision,
		DemandPrecision:        c.DemandPrecision,
		MassPrecision:          c.MassPrecision,
		VolumePrecision:        c.VolumePrecision,
	}
	if err := cfg.Validate(); err != nil {
		return model.Config{}, fmt.Errorf("simulation: %w", err)
	}
	return cfg, nil
}

// Observability converts the tracing section.
func (c TracingConfig) Observability() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Enabled,
		ServiceName: c.ServiceName,
		Exporter:    c.Exporter,
		Endpoint:    c.Endpoint,
		SampleRatio: c.SampleRatio,
	}
}

// Observability converts the influx section.
func (c InfluxConfig) Observability() observability.InfluxConfig {
	return observability.InfluxConfig{
		Enabled:    c.Enabled,
		URL:        c.URL,
		Token:      c.Token,
		Org:        c.Org,
		Bucket:     c.Bucket,
		BackupPath: c.BackupPath,
	}
}

// Logger builds the configured logger.
func (c LoggingConfig) Logger() logging.Logger {
	return logging.New(logging.Config{
		Backend: c.Backend,
		Level:   c.Level,
		Format:  c.Format,
	})
}
