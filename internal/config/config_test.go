package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderSmartAPI, cfg.Provider.Kind)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Provider.HistoryFrom)
	assert.Equal(t, 40, cfg.Registry.BatchSize)
	assert.Equal(t, "NSE", cfg.SmartAPI.Exchange)
	assert.Equal(t, 500*time.Millisecond, cfg.Pacing.Delay)
	assert.Equal(t, 30.0, cfg.Scan.ThresholdPct)
	assert.Equal(t, 30, cfg.Scan.MinDays)
	assert.Equal(t, 45, cfg.Scan.MaxDays)
	assert.Equal(t, 45, cfg.Scan.Lookahead)
	assert.Equal(t, 0.10, cfg.Scan.Significance)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
provider:
  kind: csv
  history_from: "2015-06-01"
scan:
  threshold_pct: 25
  workers: 4
pacing:
  delay: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CYCLESCAN_CSV_DIR", "/tmp/prices")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderCSV, cfg.Provider.Kind)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Provider.HistoryFrom)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, time.Second, cfg.Pacing.Delay)
	assert.Equal(t, "/tmp/prices", cfg.CSV.Dir)
	assert.True(t, cfg.Scan.Threshold().Equal(decimal.NewFromInt(25)))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Provider: ProviderConfig{Kind: ProviderCSV},
			Registry: RegistryConfig{BatchSize: 40},
			Scan:     ScanConfig{ThresholdPct: 30, MinDays: 30, MaxDays: 45, Lookahead: 45, Workers: 1, Significance: 0.1},
			Export:   ExportConfig{MaxCycles: 10},
		}
	}
	require.NoError(t, valid().Validate())

	negative := valid()
	negative.Scan.ThresholdPct = -5
	assert.NoError(t, negative.Validate(), "负阈值是合法输入")

	cases := map[string]func(*Config){
		"unknown provider": func(c *Config) { c.Provider.Kind = "yahoo" },
		"batch size":       func(c *Config) { c.Registry.BatchSize = 0 },
		"inverted window":  func(c *Config) { c.Scan.MinDays = 50 },
		"significance":     func(c *Config) { c.Scan.Significance = 1 },
		"telegram token":   func(c *Config) { c.Alerting.Telegram.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveThreshold(t *testing.T) {
	cfg := &Config{Scan: ScanConfig{ThresholdPct: 30}}
	assert.True(t, cfg.ResolveThreshold(nil).Equal(decimal.NewFromInt(30)))

	for _, v := range []float64{12.5, 0, -3} {
		override := v
		assert.True(t, cfg.ResolveThreshold(&override).Equal(decimal.NewFromFloat(v)), "override %v", v)
	}
}
