// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BackendKind selects the simulator implementation driven by the harness.
type BackendKind string

const (
	// BackendVirtual runs scenarios against the in-process virtual plant.
	BackendVirtual BackendKind = "virtual"
	// BackendBridge runs scenarios against a vendor-side agent over a websocket.
	BackendBridge BackendKind = "bridge"
)

var errUnknownBackend = errors.New("unknown backend")

// AppConfig holds the deployment configuration loaded from environment variables.
// What to test lives in the suite file (see scenario.Suite); this covers where to test it
// and where results go.
type AppConfig struct {
	Backend       BackendKind
	BridgeURL     string
	BridgeTimeout time.Duration
	SafeDevices   []string
	CaptureDir    string

	ClickhouseHost     string
	ClickhousePort     int
	ClickhouseDatabase string
	ClickhouseUsername string
	ClickhousePassword string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MetricsAddr string
}

// FromEnv builds the configuration from the process environment. The env file,
// if any, is loaded by main before commands run.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Backend:            BackendKind(strings.ToLower(getEnv("HILBENCH_BACKEND", string(BackendVirtual)))),
		BridgeURL:          getEnv("HILBENCH_BRIDGE_URL", DefaultBridgeURL),
		SafeDevices:        parseList(getEnv("HILBENCH_SAFE_DEVICES", "")),
		CaptureDir:         getEnv("HILBENCH_CAPTURE_DIR", ""),
		ClickhouseHost:     getEnv("CLICKHOUSE_HOST", ""),
		ClickhouseDatabase: getEnv("CLICKHOUSE_DATABASE", DefaultResultsDatabase),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		InfluxURL:          getEnv("INFLUXDB_URL", ""),
		InfluxToken:        getEnv("INFLUXDB_TOKEN", ""),
		InfluxOrg:          getEnv("INFLUXDB_ORG", ""),
		InfluxBucket:       getEnv("INFLUXDB_BUCKET", DefaultInfluxBucket),
		MetricsAddr:        getEnv("HILBENCH_METRICS_ADDR", DefaultMetricsAddr),
	}

	switch cfg.Backend {
	case BackendVirtual, BackendBridge:
	default:
		return nil, fmt.Errorf("%w: %q (expected %q or %q)", errUnknownBackend, cfg.Backend, BackendVirtual, BackendBridge)
	}

	port, err := strconv.Atoi(getEnv("CLICKHOUSE_NATIVE_PORT", "9000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}
	cfg.ClickhousePort = port

	timeout, err := time.ParseDuration(getEnv("HILBENCH_BRIDGE_TIMEOUT", DefaultBridgeTimeout.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid HILBENCH_BRIDGE_TIMEOUT: %w", err)
	}
	cfg.BridgeTimeout = timeout

	return cfg, nil
}

// ClickhouseEnabled reports whether outcomes should be stored in ClickHouse.
func (c *AppConfig) ClickhouseEnabled() bool {
	return c.ClickhouseHost != ""
}

// InfluxEnabled reports whether traces should be written to InfluxDB.
func (c *AppConfig) InfluxEnabled() bool {
	return c.InfluxURL != ""
}

func (c *AppConfig) String() string {
	passwordDisplay := "(not set)"
	if c.ClickhousePassword != "" {
		passwordDisplay = "********"
	}

	tokenDisplay := "(not set)"
	if c.InfluxToken != "" {
		tokenDisplay = "********"
	}

	clickhouseDisplay := "(disabled)"
	if c.ClickhouseEnabled() {
		clickhouseDisplay = fmt.Sprintf("%s:%d/%s", c.ClickhouseHost, c.ClickhousePort, c.ClickhouseDatabase)
	}

	influxDisplay := "(disabled)"
	if c.InfluxEnabled() {
		influxDisplay = fmt.Sprintf("%s (org=%s bucket=%s)", c.InfluxURL, c.InfluxOrg, c.InfluxBucket)
	}

	safeDisplay := "(none)"
	if len(c.SafeDevices) > 0 {
		safeDisplay = strings.Join(c.SafeDevices, ", ")
	}

	captureDisplay := c.CaptureDir
	if captureDisplay == "" {
		captureDisplay = "(from suite)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Backend:             %s
Bridge URL:          %s
Bridge Timeout:      %s
Safe Devices:        %s
Capture Dir:         %s
ClickHouse:          %s
ClickHouse Username: %s
ClickHouse Password: %s
InfluxDB:            %s
InfluxDB Token:      %s
Metrics Address:     %s`,
		c.Backend,
		c.BridgeURL,
		c.BridgeTimeout,
		safeDisplay,
		captureDisplay,
		clickhouseDisplay,
		c.ClickhouseUsername,
		passwordDisplay,
		influxDisplay,
		tokenDisplay,
		c.MetricsAddr,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseList parses a comma-separated list, dropping empty entries.
func parseList(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}

	return items
}
