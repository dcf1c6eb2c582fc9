package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/dynamo"
)

const (
	defaultDaysBack      = 7
	defaultThreshold     = 0.45
	defaultPeriodSeconds = 3600
)

// DefaultEngine is the production implementation of Engine.
// It coordinates profile loading, region resolution, collection, and report
// assembly. It never calls the AWS SDK directly.
type DefaultEngine struct {
	provider  common.AWSClientProvider
	collector dynamo.Collector
}

// NewDefaultEngine constructs a DefaultEngine wired to the supplied provider
// and collector.
func NewDefaultEngine(provider common.AWSClientProvider, collector dynamo.Collector) *DefaultEngine {
	return &DefaultEngine{
		provider:  provider,
		collector: collector,
	}
}

// RunScan implements Engine. It loads the requested AWS profile, discovers
// regions if not explicitly provided, collects table utilization across all
// of them, and returns a fully populated ScanReport.
//
// Region discovery is the single fatal external call: without a region list
// there is nothing to scan. Everything downstream degrades per item instead.
func (e *DefaultEngine) RunScan(ctx context.Context, opts ScanOptions) (*models.ScanReport, error) {
	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	periodSeconds := opts.PeriodSeconds
	if periodSeconds <= 0 {
		periodSeconds = defaultPeriodSeconds
	}

	profile, err := e.provider.LoadProfile(ctx, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", opts.Profile, err)
	}

	regions, err := e.resolveRegions(ctx, profile, opts.Regions)
	if err != nil {
		return nil, fmt.Errorf("resolve regions for profile %q: %w", profile.ProfileName, err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -daysBack)

	result, err := e.collector.CollectAll(ctx, profile, e.provider, dynamo.CollectOptions{
		Regions:   regions,
		Start:     start,
		End:       end,
		Period:    time.Duration(periodSeconds) * time.Second,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("collect utilization for profile %q: %w", profile.ProfileName, err)
	}

	return buildReport(profile.ProfileName, profile.AccountID, regions, start, end, threshold, result), nil
}

// resolveRegions returns the explicit region list when provided, otherwise
// calls GetActiveRegions to discover opted-in regions for the profile.
func (e *DefaultEngine) resolveRegions(
	ctx context.Context,
	profile *common.ProfileConfig,
	explicit []string,
) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	return e.provider.GetActiveRegions(ctx, profile)
}

// buildReport assembles the final ScanReport around the collected result.
func buildReport(
	profile, accountID string,
	regions []string,
	start, end time.Time,
	threshold float64,
	result *models.ScanResult,
) *models.ScanReport {
	sorted := append([]string(nil), regions...)
	sort.Strings(sorted)

	return &models.ScanReport{
		ReportID:    fmt.Sprintf("scan-%d", time.Now().UnixNano()),
		GeneratedAt: time.Now().UTC(),
		Profile:     profile,
		AccountID:   accountID,
		Regions:     sorted,
		PeriodStart: start,
		PeriodEnd:   end,
		Threshold:   threshold,
		Summary:     computeSummary(result),
		Result:      result,
	}
}

// computeSummary derives the headline counts from the result maps.
func computeSummary(result *models.ScanResult) models.ScanSummary {
	var summary models.ScanSummary
	summary.TotalRegions = len(result.AllMetrics)
	for _, tables := range result.AllMetrics {
		summary.TablesWithMetrics += len(tables)
	}
	for _, flagged := range result.LowUtilization {
		summary.LowUtilizationTables += len(flagged)
	}
	return summary
}
