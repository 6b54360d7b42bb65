package config

import "time"

const (
	// DefaultBridgeURL is the websocket endpoint of a locally running simulator agent.
	DefaultBridgeURL = "ws://localhost:8765/hil"
	// DefaultBridgeTimeout bounds a single bridge request.
	DefaultBridgeTimeout = 30 * time.Second
	// DefaultResultsDatabase is the ClickHouse database holding scenario outcomes.
	DefaultResultsDatabase = "hilbench"
	// OutcomesTable is the ClickHouse table scenario outcomes are written to.
	OutcomesTable = "scenario_outcomes"
	// DefaultInfluxBucket is the InfluxDB bucket traces are written to.
	DefaultInfluxBucket = "hilbench"
	// TraceMeasurement is the InfluxDB measurement for trace checkpoints.
	TraceMeasurement = "hil_trace"
	// OutcomeMeasurement is the InfluxDB measurement for scenario outcomes.
	OutcomeMeasurement = "hil_outcome"
	// DefaultMetricsAddr is where soak mode serves Prometheus metrics.
	DefaultMetricsAddr = ":9095"
	// DefaultSuiteFile is the suite definition looked up when --suite is not given.
	DefaultSuiteFile = "suite.yaml"
	// DefaultCaptureDir is where trace CSV files are written when the suite does not say.
	DefaultCaptureDir = "test_artifacts"
	// ExitSuccess is the process exit code when every scenario passed.
	ExitSuccess = 0
	// ExitFailure is the process exit code when any scenario failed or the run aborted.
	ExitFailure = 1
)
