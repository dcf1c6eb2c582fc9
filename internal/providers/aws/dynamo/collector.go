// Package dynamo discovers provisioned DynamoDB tables across regions and
// gathers their CloudWatch utilization telemetry.
package dynamo

import (
	"context"
	"time"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
)

// CollectOptions carries the parameters of one collection run.
type CollectOptions struct {
	// Regions is the list of regions to scan. The caller resolves it via
	// common.AWSClientProvider before invoking the collector.
	Regions []string

	// Start and End bound the telemetry window queried from CloudWatch.
	Start time.Time
	End   time.Time

	// Period is the CloudWatch sample granularity. Defaults to one hour
	// when zero.
	Period time.Duration

	// Threshold is the low-utilization cutoff ratio in [0, 1].
	Threshold float64
}

// Collector gathers utilization data for every provisioned DynamoDB table in
// the requested regions and reduces it into a ScanResult.
//
// All implementations must use the AWS SDK v2 only and must isolate
// per-region and per-table failures: a table that cannot be described, a
// region that cannot be enumerated, or a metric window that cannot be fetched
// degrades to Unknown / empty / absent respectively and never aborts the run.
// The only error CollectAll may return is context cancellation.
type Collector interface {
	CollectAll(
		ctx context.Context,
		profile *common.ProfileConfig,
		provider common.AWSClientProvider,
		opts CollectOptions,
	) (*models.ScanResult, error)
}

// Gatherer fetches the utilization sample window for one table. It is the
// external seam for metric math: the collector invokes it once per
// provisioned table, bounded by the shared table gate, and never interprets
// the samples beyond averaging them.
//
// A non-nil error means the window is absent: the table is then excluded
// from both output maps (the region entries remain). An empty slice with a
// nil error is a valid result — the table had no data points — and is
// recorded as such.
type Gatherer interface {
	Gather(ctx context.Context, table, region string, start, end time.Time) ([]models.MetricSample, error)
}

// gathererFactory builds a region-scoped Gatherer from that region's
// clients. Tests swap it to inject scripted metric windows.
type gathererFactory func(clients *tableClients, period time.Duration) Gatherer
