package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/logistics-simulator/model"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "none", cfg.Simulation.ItemDiscretization)
	assert.True(t, cfg.Simulation.DetailedEVA)
	assert.Equal(t, 0.05, cfg.Simulation.TimePrecision)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.StreamInterval)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.False(t, cfg.Store.Enabled)
	assert.Equal(t, "logistics-simulator", cfg.Tracing.ServiceName)
	assert.Equal(t, "simulation_runs", cfg.Influx.Bucket)
	assert.Equal(t, "slog", cfg.Logging.Backend)

	simCfg, err := cfg.Simulation.Model()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), simCfg)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	doc := `
simulation:
  itemDiscretization: location
  itemAggregation: 0.5
  scavengeSpares: true
server:
  grpcAddr: 127.0.0.1:6000
  streamInterval: 250ms
store:
  enabled: true
  path: runs.db
logging:
  backend: zerolog
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simulator.yaml"), []byte(doc), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.Server.GRPCAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.StreamInterval)
	assert.True(t, cfg.Store.Enabled)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, "zerolog", cfg.Logging.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr, "unset keys keep defaults")

	simCfg, err := cfg.Simulation.Model()
	require.NoError(t, err)
	assert.Equal(t, model.DiscretizeByLocation, simCfg.ItemDiscretization)
	assert.Equal(t, 0.5, simCfg.ItemAggregation)
	assert.True(t, simCfg.ScavengeSpares)
}

func TestLoad_MissingConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simulator.json"),
		[]byte(`{"server": {"httpAddr": ":9000"}, "influx": {"org": "file-org"}}`), 0o644))

	t.Setenv("SPACENET_SERVER_HTTPADDR", ":9100")
	t.Setenv("SPACENET_SIMULATION_SCAVENGESPARES", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.HTTPAddr)
	assert.Equal(t, "file-org", cfg.Influx.Org)
	assert.True(t, cfg.Simulation.ScavengeSpares)
}

func TestLoad_RejectsInvalidSimulation(t *testing.T) {
	t.Run("discretization", func(t *testing.T) {
		t.Setenv("SPACENET_SIMULATION_ITEMDISCRETIZATION", "galaxy")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "galaxy")
	})
	t.Run("aggregation", func(t *testing.T) {
		t.Setenv("SPACENET_SIMULATION_ITEMAGGREGATION", "1.5")
		_, err := Load("")
		require.Error(t, err)
	})
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simulator.json"), []byte(`{invalid`), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestSectionConversions(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	tr := cfg.Tracing.Observability()
	assert.Equal(t, cfg.Tracing.ServiceName, tr.ServiceName)
	assert.Equal(t, 1.0, tr.SampleRatio)

	in := cfg.Influx.Observability()
	assert.Equal(t, "spacenet", in.Org)
	assert.False(t, in.Enabled)

	assert.NotNil(t, cfg.Logging.Logger())
}
