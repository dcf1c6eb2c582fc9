// Package engine orchestrates a utilization scan: profile loading, region
// resolution, collection, and report assembly.
package engine

import (
	"context"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
)

// ReportFormat controls the CLI output format.
type ReportFormat string

const (
	ReportFormatJSON  ReportFormat = "json"
	ReportFormatTable ReportFormat = "table"
)

// ScanOptions configures a single scan run.
// It is the sole input to Engine.RunScan.
type ScanOptions struct {
	// Profile is the named AWS profile to use. Empty means the default profile.
	Profile string

	// Regions is an explicit list of AWS regions to scan.
	// When empty the engine discovers and iterates all active regions.
	Regions []string

	// ReportFormat controls how the CLI renders the returned report.
	ReportFormat ReportFormat

	// DaysBack is the telemetry lookback window in days.
	// Defaults to 7 when zero.
	DaysBack int

	// Threshold is the low-utilization cutoff ratio in [0, 1].
	// Defaults to 0.45 when zero.
	Threshold float64

	// PeriodSeconds is the CloudWatch sample granularity.
	// Defaults to 3600 when zero.
	PeriodSeconds int
}

// Engine is the central orchestration interface.
// It coordinates profile loading, region discovery, and metric collection,
// returning a fully populated ScanReport.
//
// Engine must not call the AWS SDK directly; it delegates to the provider
// and collector interfaces.
type Engine interface {
	RunScan(ctx context.Context, opts ScanOptions) (*models.ScanReport, error)
}
