package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.ServerAddress)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, "X-Operator", cfg.Security.OperatorHeader)
	assert.Equal(t, 15*time.Minute, cfg.Detection.Interval())
	assert.Equal(t, time.Minute, cfg.Detection.Timeout())
	assert.Equal(t, []string{"TBD", "UNASSIGNED", "N/A", "0"}, cfg.Detection.PlaceholderRooms)

	loc, err := cfg.Detection.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"serverAddress": ":8080",
		"databaseUrl": "postgres://localhost/pms",
		"detection": {"intervalMinutes": 5, "autoResolve": true, "propertyIds": ["p1", "p2"]}
	}`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 5*time.Minute, cfg.Detection.Interval())
	assert.True(t, cfg.Detection.AutoResolve)
	assert.Equal(t, []string{"p1", "p2"}, cfg.Detection.PropertyIDs)
	assert.Equal(t, 4, cfg.Detection.Concurrency, "unset fields keep their defaults")
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
serverAddress: ":9090"
detection:
  timezone: Asia/Bangkok
  directPrecedence: true
  placeholderRooms: ["TBA"]
telemetry:
  enabled: true
  endpoint: collector:4317
`)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.True(t, cfg.Detection.DirectPrecedence)
	assert.Equal(t, []string{"TBA"}, cfg.Detection.PlaceholderRooms)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)

	loc, err := cfg.Detection.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", loc.String())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "config.json", `{"detection": {"intervalMinutes": 5}}`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DETECTION_INTERVAL_MINUTES", "30")
	t.Setenv("DETECTION_AUTO_START", "1")
	t.Setenv("DETECTION_PROPERTY_IDS", " p1, ,p2 ")
	t.Setenv("API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Detection.Interval())
	assert.True(t, cfg.Detection.AutoStart)
	assert.Equal(t, []string{"p1", "p2"}, cfg.Detection.PropertyIDs)
	assert.Equal(t, "from-env", cfg.Security.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, "config.json", `{"serverAddress":`))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown time zone", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, "config.json", `{"detection": {"timezone": "Mars/Olympus"}}`))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timezone")
	})

	t.Run("zero concurrency", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", writeConfig(t, "config.json", `{"detection": {"concurrency": 0}}`))
		_, err := Load()
		assert.Error(t, err)
	})
}
