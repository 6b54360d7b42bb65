package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("HILBENCH_BACKEND", "")
	t.Setenv("CLICKHOUSE_HOST", "")
	t.Setenv("INFLUXDB_URL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendVirtual, cfg.Backend)
	assert.Equal(t, DefaultBridgeURL, cfg.BridgeURL)
	assert.Equal(t, DefaultBridgeTimeout, cfg.BridgeTimeout)
	assert.Equal(t, 9000, cfg.ClickhousePort)
	assert.False(t, cfg.ClickhouseEnabled())
	assert.False(t, cfg.InfluxEnabled())
	assert.Empty(t, cfg.SafeDevices)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HILBENCH_BACKEND", "Bridge")
	t.Setenv("HILBENCH_BRIDGE_TIMEOUT", "5s")
	t.Setenv("HILBENCH_SAFE_DEVICES", " hil604-lab , ,hil404-bench")
	t.Setenv("CLICKHOUSE_HOST", "clickhouse.lab")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "9440")
	t.Setenv("INFLUXDB_URL", "http://influx:8086")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendBridge, cfg.Backend)
	assert.Equal(t, 5*time.Second, cfg.BridgeTimeout)
	assert.Equal(t, []string{"hil604-lab", "hil404-bench"}, cfg.SafeDevices)
	assert.Equal(t, 9440, cfg.ClickhousePort)
	assert.True(t, cfg.ClickhouseEnabled())
	assert.True(t, cfg.InfluxEnabled())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown backend", key: "HILBENCH_BACKEND", value: "rtds"},
		{name: "bad port", key: "CLICKHOUSE_NATIVE_PORT", value: "nine"},
		{name: "bad timeout", key: "HILBENCH_BRIDGE_TIMEOUT", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
		})
	}
}

func TestAppConfig_StringMasksSecrets(t *testing.T) {
	cfg := &AppConfig{
		Backend:            BackendBridge,
		ClickhouseHost:     "ch",
		ClickhousePassword: "hunter2",
		InfluxURL:          "http://influx",
		InfluxToken:        "s3cr3t-token",
	}

	out := cfg.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cr3t-token")
	assert.Contains(t, out, "********")
}
