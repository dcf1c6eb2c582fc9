package models

import "time"

// ScanSummary aggregates counts across a completed scan. All fields are
// derived from the ScanResult maps.
type ScanSummary struct {
	TotalRegions         int `json:"total_regions"`
	TablesWithMetrics    int `json:"tables_with_metrics"`
	LowUtilizationTables int `json:"low_utilization_tables"`
}

// ScanReport is the top-level output of a utilization scan run.
type ScanReport struct {
	ReportID    string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Profile     string    `json:"profile"`
	AccountID   string    `json:"account_id"`
	Regions     []string  `json:"regions"`

	// PeriodStart and PeriodEnd bound the telemetry window queried from
	// CloudWatch.
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	// Threshold is the low-utilization cutoff ratio applied to average
	// read and write utilization (e.g. 0.45 == 45%).
	Threshold float64 `json:"threshold"`

	Summary ScanSummary `json:"summary"`

	// Result carries the full per-region metric and low-utilization maps.
	Result *ScanResult `json:"result"`
}
