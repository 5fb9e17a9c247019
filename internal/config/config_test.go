package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "tenderedge.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "claude-opus-4-6", cfg.Anthropic.Model)
	assert.Equal(t, 1500, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 30, cfg.Nest.TimeoutSecs)
	assert.InDelta(t, 2.0, cfg.Nest.RatePerSecond, 0.001)
	assert.Equal(t, 50, cfg.Prediction.MinAwards)
	assert.Equal(t, 6, cfg.Schedule.IntervalHours)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)

	w := cfg.Prediction.Weights
	assert.InDelta(t, 0.25, w.Capability, 0.001)
	assert.InDelta(t, 0.20, w.History, 0.001)
	assert.InDelta(t, 0.15, w.BuyerFavor, 0.001)
	assert.InDelta(t, 0.15, w.Price, 0.001)
	assert.InDelta(t, 0.10, w.Density, 0.001)
	assert.InDelta(t, 0.10, w.Compliance, 0.001)
	assert.InDelta(t, 0.05, w.SeasonalTiming, 0.001)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/tenderedge
log:
  level: debug
  format: console
server:
  port: 9090
prediction:
  min_awards: 20
company:
  profile_path: company.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Prediction.MinAwards)
	assert.Equal(t, "company.yaml", cfg.Company.ProfilePath)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.25, cfg.Prediction.Weights.Capability, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("POSTAWARD_STORE_DRIVER", "postgres")
	t.Setenv("POSTAWARD_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("POSTAWARD_SERVER_PORT", "3000")
	t.Setenv("POSTAWARD_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite", DatabaseURL: "tenderedge.db"},
		Nest:  NestConfig{RatePerSecond: 2},
		Prediction: PredictionConfig{
			MinAwards: 50,
			Weights: WeightsConfig{
				Capability: 0.25, History: 0.20, BuyerFavor: 0.15, Price: 0.15,
				Density: 0.10, Compliance: 0.10, SeasonalTiming: 0.05,
			},
		},
		Schedule: ScheduleConfig{IntervalHours: 6},
		Server:   ServerConfig{Port: 8080},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without url", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DatabaseURL = ""
		}, "store.database_url"},
		{"negative min awards", func(c *Config) { c.Prediction.MinAwards = -1 }, "min_awards"},
		{"weights off by a lot", func(c *Config) { c.Prediction.Weights.Capability = 0.5 }, "sum to 1"},
		{"zero interval", func(c *Config) { c.Schedule.IntervalHours = 0 }, "interval_hours"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero rate", func(c *Config) { c.Nest.RatePerSecond = 0 }, "rate_per_second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validDefaults()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
