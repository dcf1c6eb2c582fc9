package models

import "time"

// ---------------------------------------------------------------------------
// DynamoDB raw data models (collected by provider, consumed by the engine)
// ---------------------------------------------------------------------------

// CapacityMode is the billing/capacity mode of a DynamoDB table.
type CapacityMode string

const (
	// CapacityModeProvisioned marks tables with pre-allocated throughput.
	// Only these tables are eligible for metrics collection.
	CapacityModeProvisioned CapacityMode = "PROVISIONED"

	// CapacityModeOnDemand marks pay-per-request tables.
	CapacityModeOnDemand CapacityMode = "ON_DEMAND"

	// CapacityModeUnknown marks tables whose mode could not be determined
	// (DescribeTable failed). Unknown tables are excluded from collection;
	// the failure is never fatal to the run.
	CapacityModeUnknown CapacityMode = "UNKNOWN"
)

// MetricSample is one telemetry observation for a table. A nil utilization
// pointer means CloudWatch returned no data point for that side of the
// sample window — distinct from an observed utilization of zero.
type MetricSample struct {
	Timestamp        time.Time `json:"timestamp"`
	ReadUtilization  *float64  `json:"read_utilization"`
	WriteUtilization *float64  `json:"write_utilization"`
}

// TableUtilization summarises one table's average utilization over the scan
// window. A nil average means zero valid samples, not zero utilization.
type TableUtilization struct {
	TableName           string   `json:"table_name"`
	AvgReadUtilization  *float64 `json:"avg_read_utilization"`
	AvgWriteUtilization *float64 `json:"avg_write_utilization"`
}

// ScanResult is the pair of output maps produced by one collection run.
//
// Both maps always carry the same region key set: a region that contributed
// zero tables (or failed enumeration) still appears with empty values. A
// table appears only if it was classified CapacityModeProvisioned and its
// metrics gathering did not fail outright.
//
// The aggregation loop in the collector is the sole owner of a ScanResult
// while it is being built; no producer goroutine ever holds a reference.
type ScanResult struct {
	// AllMetrics maps region → table → ordered sample sequence. An empty
	// sequence means CloudWatch returned no data points; tables whose
	// gathering failed are omitted entirely.
	AllMetrics map[string]map[string][]MetricSample `json:"all_metrics"`

	// LowUtilization maps region → tables whose average read and write
	// utilization both fall at or below the configured threshold.
	LowUtilization map[string][]TableUtilization `json:"low_utilization"`
}

// NewScanResult returns an empty ScanResult with both maps initialised.
func NewScanResult() *ScanResult {
	return &ScanResult{
		AllMetrics:     make(map[string]map[string][]MetricSample),
		LowUtilization: make(map[string][]TableUtilization),
	}
}
