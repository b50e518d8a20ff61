package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `json:"serverAddress" yaml:"serverAddress"`
	DatabasePath  string    `json:"databasePath" yaml:"databasePath"`
	DatabaseURL   string    `json:"databaseUrl" yaml:"databaseUrl"`
	Security      Security  `json:"security" yaml:"security"`
	Detection     Detection `json:"detection" yaml:"detection"`
	Telemetry     Telemetry `json:"telemetry" yaml:"telemetry"`
}

// Detection configuration for scheduled conflict detection
type Detection struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	IntervalMinutes  int      `json:"intervalMinutes" yaml:"intervalMinutes"`
	AutoStart        bool     `json:"autoStart" yaml:"autoStart"`
	AutoResolve      bool     `json:"autoResolve" yaml:"autoResolve"`
	TimeoutSeconds   int      `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	Concurrency      int      `json:"concurrency" yaml:"concurrency"`
	Timezone         string   `json:"timezone" yaml:"timezone"`
	PropertyIDs      []string `json:"propertyIds" yaml:"propertyIds"`
	PlaceholderRooms []string `json:"placeholderRooms" yaml:"placeholderRooms"`
	DirectPrecedence bool     `json:"directPrecedence" yaml:"directPrecedence"`
}

// Interval returns the scheduler period
func (d Detection) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes) * time.Minute
}

// Timeout returns the per-pass deadline, zero meaning none
func (d Detection) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Location resolves the property time zone used to compute "today"
func (d Detection) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

// Telemetry configuration for OpenTelemetry export
type Telemetry struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	Environment string `json:"environment" yaml:"environment"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Security configuration
type Security struct {
	APIKey         string `json:"apiKey" yaml:"apiKey"`
	APIKeyHeader   string `json:"apiKeyHeader" yaml:"apiKeyHeader"`
	OperatorHeader string `json:"operatorHeader" yaml:"operatorHeader"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "hotelpms.db",
		Security: Security{
			APIKey:         "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader:   "X-API-Key",
			OperatorHeader: "X-Operator",
		},
		Detection: Detection{
			Enabled:          true,
			IntervalMinutes:  15,
			AutoStart:        false,
			AutoResolve:      false,
			TimeoutSeconds:   60,
			Concurrency:      4,
			Timezone:         "UTC",
			PlaceholderRooms: []string{"TBD", "UNASSIGNED", "N/A", "0"},
		},
		Telemetry: Telemetry{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Environment: "development",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := decode(configPath, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// applyEnv overrides file values from environment variables
func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if header := os.Getenv("OPERATOR_HEADER"); header != "" {
		cfg.Security.OperatorHeader = header
	}

	// Detection configuration
	if enabled := os.Getenv("DETECTION_ENABLED"); enabled != "" {
		cfg.Detection.Enabled = parseBool(enabled)
	}
	if interval := os.Getenv("DETECTION_INTERVAL_MINUTES"); interval != "" {
		if minutes, err := strconv.Atoi(interval); err == nil && minutes > 0 {
			cfg.Detection.IntervalMinutes = minutes
		}
	}
	if autoStart := os.Getenv("DETECTION_AUTO_START"); autoStart != "" {
		cfg.Detection.AutoStart = parseBool(autoStart)
	}
	if autoResolve := os.Getenv("DETECTION_AUTO_RESOLVE"); autoResolve != "" {
		cfg.Detection.AutoResolve = parseBool(autoResolve)
	}
	if timeout := os.Getenv("DETECTION_TIMEOUT_SECONDS"); timeout != "" {
		if seconds, err := strconv.Atoi(timeout); err == nil && seconds >= 0 {
			cfg.Detection.TimeoutSeconds = seconds
		}
	}
	if tz := os.Getenv("DETECTION_TIMEZONE"); tz != "" {
		cfg.Detection.Timezone = tz
	}
	if ids := os.Getenv("DETECTION_PROPERTY_IDS"); ids != "" {
		cfg.Detection.PropertyIDs = splitList(ids)
	}
	if precedence := os.Getenv("DETECTION_DIRECT_PRECEDENCE"); precedence != "" {
		cfg.Detection.DirectPrecedence = parseBool(precedence)
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Telemetry.Environment = env
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Detection.IntervalMinutes <= 0 {
		return fmt.Errorf("detection.intervalMinutes must be positive, got %d", c.Detection.IntervalMinutes)
	}
	if c.Detection.Concurrency <= 0 {
		return fmt.Errorf("detection.concurrency must be positive, got %d", c.Detection.Concurrency)
	}
	if c.Detection.TimeoutSeconds < 0 {
		return fmt.Errorf("detection.timeoutSeconds must not be negative, got %d", c.Detection.TimeoutSeconds)
	}
	if _, err := c.Detection.Location(); err != nil {
		return fmt.Errorf("invalid detection.timezone %q: %w", c.Detection.Timezone, err)
	}
	if c.Security.OperatorHeader == "" {
		c.Security.OperatorHeader = "X-Operator"
	}
	if c.Security.APIKeyHeader == "" {
		c.Security.APIKeyHeader = "X-API-Key"
	}
	return nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
