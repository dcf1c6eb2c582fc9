package dynamo

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/progress"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/throttle"
)

// defaultPeriod is the CloudWatch sample granularity used when CollectOptions
// does not set one.
const defaultPeriod = time.Hour

// DefaultCollector is the production implementation of Collector.
//
// Concurrency shape: one goroutine per region, each admitted by the region
// gate and holding its slot for the region's entire harvest+gather duration;
// inside a region, table-level work (classification, then gathering) fans
// out per table, bounded only by the shared table gate. Completed region
// results flow through a single channel into one aggregation loop, in
// completion order — the loop is the sole owner of the output maps, so they
// need no locking.
type DefaultCollector struct {
	factory   tableClientFactory
	gatherers gathererFactory

	// regions and tables are the two admission gates. They are injected,
	// never global, so tests can substitute tiny capacities to exercise
	// contention deterministically.
	regions *throttle.Gate
	tables  *throttle.Gate

	logger   *zap.Logger
	reporter progress.Reporter
}

// NewDefaultCollector returns a collector backed by the real AWS SDK.
// reporter may be nil; progress is then discarded.
func NewDefaultCollector(regionGate, tableGate *throttle.Gate, logger *zap.Logger, reporter progress.Reporter) *DefaultCollector {
	c := newCollectorWithFactories(regionGate, tableGate, logger, reporter, newDefaultTableClients, nil)
	c.gatherers = func(clients *tableClients, period time.Duration) Gatherer {
		return newCloudWatchGatherer(clients.CW, period)
	}
	return c
}

// newCollectorWithFactories wires custom client and gatherer factories.
// Tests use it to inject fakes.
func newCollectorWithFactories(
	regionGate, tableGate *throttle.Gate,
	logger *zap.Logger,
	reporter progress.Reporter,
	factory tableClientFactory,
	gatherers gathererFactory,
) *DefaultCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = progress.Nop
	}
	return &DefaultCollector{
		factory:   factory,
		gatherers: gatherers,
		regions:   regionGate,
		tables:    tableGate,
		logger:    logger,
		reporter:  reporter,
	}
}

// regionResult is one completed region pipeline: the provisioned tables and
// their metric windows, positionally aligned.
type regionResult struct {
	region  string
	tables  []string
	metrics []tableMetrics
}

// tableMetrics is one table's gathered window. absent marks a gathering
// failure: the table is then excluded from the output maps entirely, which
// is distinct from a present-but-empty sample sequence.
type tableMetrics struct {
	samples []models.MetricSample
	absent  bool
}

// CollectAll scans every region in opts.Regions and reduces the results into
// a ScanResult.
//
// Flow:
//  1. Advisory pre-count pass: count provisioned tables across all regions
//     (bounded by the region gate) so the progress reporter can size its
//     bar before collection begins. The count never influences the result.
//  2. Launch one region pipeline per region; each acquires the region gate
//     on entry and holds it until its tables' metrics are gathered.
//  3. Aggregate results from the shared channel as pipelines complete.
//
// Per-region and per-table failures degrade and are logged; the only error
// returned is context cancellation.
func (c *DefaultCollector) CollectAll(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	opts CollectOptions,
) (*models.ScanResult, error) {
	period := opts.Period
	if period <= 0 {
		period = defaultPeriod
	}

	c.reporter.RegionsDiscovered(len(opts.Regions))
	c.reporter.TablesDiscovered(c.countProvisionedTables(ctx, profile, provider, opts.Regions))

	results := make(chan regionResult)

	var wg sync.WaitGroup
	for _, region := range opts.Regions {
		wg.Add(1)
		go func(region string) {
			defer wg.Done()
			cfg := provider.ConfigForRegion(profile, region)
			rr, err := c.collectRegion(ctx, cfg, region, opts, period)
			if err != nil {
				// Gate acquisition failed: the run is being cancelled.
				return
			}
			results <- rr
		}(region)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	result := c.aggregate(results, opts.Threshold)
	c.reporter.Done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// collectRegion runs one region's pipeline: acquire the region gate, harvest
// the provisioned tables, gather every table's metrics concurrently, release
// the gate. The gate slot is held for the full harvest+gather duration —
// bounding whole in-flight regions is what bounds the burst of parallel
// table-level sub-fan-outs.
func (c *DefaultCollector) collectRegion(
	ctx context.Context,
	cfg aws.Config,
	region string,
	opts CollectOptions,
	period time.Duration,
) (regionResult, error) {
	if err := c.regions.Acquire(ctx); err != nil {
		return regionResult{}, err
	}
	defer c.regions.Release()

	clients := c.factory(cfg)
	gatherer := c.gatherers(clients, period)

	tables := c.provisionedTables(ctx, clients, region)

	metrics := make([]tableMetrics, len(tables))
	var wg sync.WaitGroup
	for i, table := range tables {
		wg.Add(1)
		go func(i int, table string) {
			defer wg.Done()
			err := c.tables.Do(ctx, func() error {
				samples, gerr := gatherer.Gather(ctx, table, region, opts.Start, opts.End)
				if gerr != nil {
					c.logger.Warn("metric gathering failed",
						zap.String("region", region),
						zap.String("table", table),
						zap.Error(gerr),
					)
					metrics[i].absent = true
					return nil
				}
				metrics[i].samples = samples
				return nil
			})
			if err != nil {
				metrics[i].absent = true
			}
		}(i, table)
	}
	wg.Wait()

	return regionResult{region: region, tables: tables, metrics: metrics}, nil
}

// aggregate is the single consumer of completed region pipelines. It owns
// the ScanResult exclusively; results arrive in completion order, not
// launch order.
func (c *DefaultCollector) aggregate(results <-chan regionResult, threshold float64) *models.ScanResult {
	result := models.NewScanResult()

	for rr := range results {
		// Both maps get an entry for every scanned region, even when zero
		// tables qualify.
		result.AllMetrics[rr.region] = make(map[string][]models.MetricSample)
		result.LowUtilization[rr.region] = []models.TableUtilization{}

		for i, table := range rr.tables {
			m := rr.metrics[i]
			if !m.absent {
				result.AllMetrics[rr.region][table] = m.samples

				avgRead := averageReadUtilization(m.samples)
				avgWrite := averageWriteUtilization(m.samples)
				if isLowUtilization(avgRead, avgWrite, threshold) {
					result.LowUtilization[rr.region] = append(result.LowUtilization[rr.region], models.TableUtilization{
						TableName:           table,
						AvgReadUtilization:  avgRead,
						AvgWriteUtilization: avgWrite,
					})
				}
			}
			c.reporter.TableCollected()
		}
	}
	return result
}

// countProvisionedTables is the advisory pre-count pass: it harvests every
// region (bounded by the region gate) and sums the provisioned tables so the
// progress bar can be sized before collection starts. Failures degrade just
// like the main pass; the result feeds the reporter only.
func (c *DefaultCollector) countProvisionedTables(
	ctx context.Context,
	profile *common.ProfileConfig,
	provider common.AWSClientProvider,
	regions []string,
) int {
	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)

	for _, region := range regions {
		wg.Add(1)
		go func(region string) {
			defer wg.Done()
			// Do fails only on context cancellation; the count is
			// advisory, so a partial total is acceptable.
			_ = c.regions.Do(ctx, func() error {
				clients := c.factory(provider.ConfigForRegion(profile, region))
				n := len(c.provisionedTables(ctx, clients, region))
				mu.Lock()
				total += n
				mu.Unlock()
				return nil
			})
		}(region)
	}
	wg.Wait()
	return total
}
