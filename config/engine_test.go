package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEngineConfig_Defaults(t *testing.T) {
	cfg, err := LoadEngineConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, uint32(10), cfg.Search.DefaultNumWanted)
	assert.Equal(t, "or", cfg.Search.DefaultOperator)
	assert.Equal(t, 2, cfg.Jobs.Workers)
}

func TestLoadEngineConfig_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosearcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/gosearcher
server:
  port: 9200
search:
  max_num_wanted: 50
  default_operator: and
logging:
  format: json
`), 0644))

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/gosearcher", cfg.DataDir)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, uint32(50), cfg.Search.MaxNumWanted)
	assert.Equal(t, "and", cfg.Search.DefaultOperator)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep defaults
	assert.Equal(t, uint32(10), cfg.Search.DefaultNumWanted)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxBodyBytes)
}

func TestLoadEngineConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GOSEARCHER_PORT", "7000")
	t.Setenv("GOSEARCHER_DATA_DIR", "/tmp/idx")
	t.Setenv("GOSEARCHER_LOG_LEVEL", "debug")

	cfg, err := LoadEngineConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/tmp/idx", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEngineConfig_MissingFile(t *testing.T) {
	_, err := LoadEngineConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"bad port", func(c *EngineConfig) { c.Server.Port = 0 }},
		{"empty data dir", func(c *EngineConfig) { c.DataDir = " " }},
		{"zero max num wanted", func(c *EngineConfig) { c.Search.MaxNumWanted = 0 }},
		{"default above max", func(c *EngineConfig) { c.Search.DefaultNumWanted = 2000 }},
		{"bad operator", func(c *EngineConfig) { c.Search.DefaultOperator = "xor" }},
		{"bad log level", func(c *EngineConfig) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *EngineConfig) { c.Logging.Format = "xml" }},
		{"rate limit without burst", func(c *EngineConfig) { c.Server.RequestsPerSecond = 5; c.Server.Burst = 0 }},
		{"no workers", func(c *EngineConfig) { c.Jobs.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewEngineConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, NewEngineConfig().Validate())
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := NewEngineConfig()
	cfg.Server.Port = 9999
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
}
