package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the process-wide configuration of the search server.
// Values are resolved in order: defaults, YAML file, GOSEARCHER_* environment variables.
type EngineConfig struct {
	DataDir string        `yaml:"data_dir" json:"data_dir"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Jobs    JobsConfig    `yaml:"jobs" json:"jobs"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port              int     `yaml:"port" json:"port"`
	MaxBodyBytes      int64   `yaml:"max_body_bytes" json:"max_body_bytes"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"` // 0 disables rate limiting
	Burst             int     `yaml:"burst" json:"burst"`
}

// SearchConfig configures request defaults and limits for searches.
type SearchConfig struct {
	DefaultNumWanted uint32 `yaml:"default_num_wanted" json:"default_num_wanted"`
	// MaxNumWanted caps num_wanted per request. The searcher itself only rejects
	// windows that overflow the count type.
	MaxNumWanted    uint32 `yaml:"max_num_wanted" json:"max_num_wanted"`
	ParseCacheSize  int    `yaml:"parse_cache_size" json:"parse_cache_size"`   // 0 disables the parsed query cache
	DefaultOperator string `yaml:"default_operator" json:"default_operator"` // "or" or "and"
}

// LoggingConfig mirrors logging.Config so it can be read from YAML.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// JobsConfig configures the async job worker pool.
type JobsConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// NewEngineConfig returns the default configuration.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		DataDir: "./search_data",
		Server: ServerConfig{
			Port:              8080,
			MaxBodyBytes:      50 << 20,
			RequestsPerSecond: 0,
			Burst:             50,
		},
		Search: SearchConfig{
			DefaultNumWanted: 10,
			MaxNumWanted:     1000,
			ParseCacheSize:   256,
			DefaultOperator:  "or",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Jobs: JobsConfig{
			Workers: 2,
		},
	}
}

// LoadEngineConfig loads configuration from path (optional) and the environment.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	cfg := NewEngineConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// Unmarshal over the defaults so absent keys keep their default value
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *EngineConfig) applyEnvOverrides() {
	if v := os.Getenv("GOSEARCHER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("GOSEARCHER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("GOSEARCHER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GOSEARCHER_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GOSEARCHER_RATE_LIMIT"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil && rps >= 0 {
			c.Server.RequestsPerSecond = rps
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *EngineConfig) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server.requests_per_second must be non-negative, got %f", c.Server.RequestsPerSecond)
	}
	if c.Server.RequestsPerSecond > 0 && c.Server.Burst <= 0 {
		return fmt.Errorf("server.burst must be positive when rate limiting is enabled, got %d", c.Server.Burst)
	}
	if c.Search.MaxNumWanted == 0 {
		return fmt.Errorf("search.max_num_wanted must be positive")
	}
	if c.Search.DefaultNumWanted > c.Search.MaxNumWanted {
		return fmt.Errorf("search.default_num_wanted (%d) exceeds search.max_num_wanted (%d)", c.Search.DefaultNumWanted, c.Search.MaxNumWanted)
	}
	if c.Search.ParseCacheSize < 0 {
		return fmt.Errorf("search.parse_cache_size must be non-negative, got %d", c.Search.ParseCacheSize)
	}
	switch strings.ToLower(c.Search.DefaultOperator) {
	case "or", "and":
	default:
		return fmt.Errorf("search.default_operator must be 'or' or 'and', got %s", c.Search.DefaultOperator)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got %s", c.Logging.Format)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive, got %d", c.Jobs.Workers)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *EngineConfig) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
