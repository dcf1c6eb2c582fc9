package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/throttle"
)

// fakeProvider satisfies common.AWSClientProvider with canned regions. The
// region name is carried through aws.Config.Region so the client factory can
// select per-region fakes.
type fakeProvider struct {
	regions []string
}

func (p *fakeProvider) LoadProfile(context.Context, string) (*common.ProfileConfig, error) {
	return &common.ProfileConfig{ProfileName: "default", AccountID: "123456789012"}, nil
}

func (p *fakeProvider) GetActiveRegions(context.Context, *common.ProfileConfig) ([]string, error) {
	return p.regions, nil
}

func (p *fakeProvider) ConfigForRegion(_ *common.ProfileConfig, region string) aws.Config {
	return aws.Config{Region: region}
}

// fakeGatherer serves scripted sample windows keyed by region/table and
// fails for tables listed in errs.
type fakeGatherer struct {
	windows map[string][]models.MetricSample
	errs    map[string]bool
}

func gathererKey(region, table string) string { return region + "/" + table }

func (g *fakeGatherer) Gather(_ context.Context, table, region string, _, _ time.Time) ([]models.MetricSample, error) {
	key := gathererKey(region, table)
	if g.errs[key] {
		return nil, errors.New("metric window unavailable")
	}
	return g.windows[key], nil
}

// scenarioDDB maps each region to its own fakeDDB.
func scenarioFactory(byRegion map[string]*fakeDDB) tableClientFactory {
	return func(cfg aws.Config) *tableClients {
		return &tableClients{DDB: byRegion[cfg.Region]}
	}
}

func TestCollectAll(t *testing.T) {
	byRegion := map[string]*fakeDDB{
		"us-east-1": {
			pages: [][]string{{"orders", "idle", "sessions", "broken-metrics"}},
			modes: map[string]ddbtypes.BillingMode{
				"orders":         ddbtypes.BillingModeProvisioned,
				"idle":           ddbtypes.BillingModeProvisioned,
				"sessions":       ddbtypes.BillingModePayPerRequest,
				"broken-metrics": ddbtypes.BillingModeProvisioned,
			},
		},
		"eu-west-1": {
			listErr: errors.New("endpoint unreachable"),
		},
		"ap-south-1": {
			pages: [][]string{{"cache"}},
			modes: map[string]ddbtypes.BillingMode{
				"cache": ddbtypes.BillingModeProvisioned,
			},
		},
	}

	gatherer := &fakeGatherer{
		windows: map[string][]models.MetricSample{
			// Read average 0.35; write average 0.5 exceeds the threshold,
			// so the table must not be flagged.
			gathererKey("us-east-1", "orders"): {
				sample(f64(0.3), f64(0.5)),
				sample(f64(0.4), nil),
			},
			// No data points at all: recorded as an empty window and
			// flagged (both averages nil).
			gathererKey("us-east-1", "idle"): {},
			gathererKey("ap-south-1", "cache"): {
				sample(f64(0.1), f64(0.2)),
			},
		},
		errs: map[string]bool{
			gathererKey("us-east-1", "broken-metrics"): true,
		},
	}

	provider := &fakeProvider{regions: []string{"us-east-1", "eu-west-1", "ap-south-1"}}
	c := newCollectorWithFactories(
		throttle.New(10), throttle.New(100),
		nil, nil,
		scenarioFactory(byRegion),
		func(*tableClients, time.Duration) Gatherer { return gatherer },
	)

	profile, _ := provider.LoadProfile(context.Background(), "")
	result, err := c.CollectAll(context.Background(), profile, provider, CollectOptions{
		Regions:   provider.regions,
		Threshold: 0.45,
	})
	if err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}

	t.Run("both maps carry every scanned region", func(t *testing.T) {
		for _, region := range provider.regions {
			if _, ok := result.AllMetrics[region]; !ok {
				t.Errorf("AllMetrics missing region %q", region)
			}
			if _, ok := result.LowUtilization[region]; !ok {
				t.Errorf("LowUtilization missing region %q", region)
			}
		}
		if len(result.AllMetrics) != 3 || len(result.LowUtilization) != 3 {
			t.Errorf("got %d/%d regions; want 3/3", len(result.AllMetrics), len(result.LowUtilization))
		}
	})

	t.Run("only provisioned tables with gathered metrics appear", func(t *testing.T) {
		us := result.AllMetrics["us-east-1"]
		if len(us) != 2 {
			t.Fatalf("us-east-1 has %d tables: %v; want orders and idle only", len(us), tableNames(us))
		}
		if _, ok := us["sessions"]; ok {
			t.Error("on-demand table made it into the metrics map")
		}
		if _, ok := us["broken-metrics"]; ok {
			t.Error("table with failed gathering made it into the metrics map")
		}
	})

	t.Run("empty window is recorded, not dropped", func(t *testing.T) {
		samples, ok := result.AllMetrics["us-east-1"]["idle"]
		if !ok {
			t.Fatal("table with zero data points missing from the metrics map")
		}
		if len(samples) != 0 {
			t.Errorf("got %d samples; want 0", len(samples))
		}
	})

	t.Run("high write average blocks the flag", func(t *testing.T) {
		for _, tu := range result.LowUtilization["us-east-1"] {
			if tu.TableName == "orders" {
				t.Error("orders flagged despite write average above threshold")
			}
		}
	})

	t.Run("zero-sample table is flagged with nil averages", func(t *testing.T) {
		flagged := result.LowUtilization["us-east-1"]
		if len(flagged) != 1 || flagged[0].TableName != "idle" {
			t.Fatalf("us-east-1 flagged = %v; want [idle]", flaggedNames(flagged))
		}
		if flagged[0].AvgReadUtilization != nil || flagged[0].AvgWriteUtilization != nil {
			t.Error("averages over zero samples must be nil, not zero")
		}
	})

	t.Run("failed region enumeration yields empty entries, siblings unaffected", func(t *testing.T) {
		if n := len(result.AllMetrics["eu-west-1"]); n != 0 {
			t.Errorf("eu-west-1 has %d tables; want 0", n)
		}
		if n := len(result.LowUtilization["eu-west-1"]); n != 0 {
			t.Errorf("eu-west-1 has %d flagged tables; want 0", n)
		}

		flagged := result.LowUtilization["ap-south-1"]
		if len(flagged) != 1 || flagged[0].TableName != "cache" {
			t.Fatalf("ap-south-1 flagged = %v; want [cache]", flaggedNames(flagged))
		}
		if flagged[0].AvgReadUtilization == nil || *flagged[0].AvgReadUtilization != 0.1 {
			t.Errorf("cache avg read = %v; want 0.1", flagged[0].AvgReadUtilization)
		}
		if flagged[0].AvgWriteUtilization == nil || *flagged[0].AvgWriteUtilization != 0.2 {
			t.Errorf("cache avg write = %v; want 0.2", flagged[0].AvgWriteUtilization)
		}
	})
}

func TestCollectAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{regions: []string{"us-east-1"}}
	c := newCollectorWithFactories(
		throttle.New(10), throttle.New(100),
		nil, nil,
		scenarioFactory(map[string]*fakeDDB{"us-east-1": {pages: [][]string{{"orders"}}}}),
		func(*tableClients, time.Duration) Gatherer { return &fakeGatherer{} },
	)

	profile, _ := provider.LoadProfile(context.Background(), "")
	result, err := c.CollectAll(ctx, profile, provider, CollectOptions{Regions: provider.regions})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CollectAll() error = %v; want context.Canceled", err)
	}
	if result != nil {
		t.Errorf("result = %v; want nil on cancellation", result)
	}
}

func tableNames(m map[string][]models.MetricSample) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

func flaggedNames(flagged []models.TableUtilization) []string {
	names := make([]string, 0, len(flagged))
	for _, tu := range flagged {
		names = append(names, tu.TableName)
	}
	return names
}

// boundedDDB tracks the high-water mark of concurrent DescribeTable calls
// against a counter shared across all regions.
type boundedDDB struct {
	fakeDDB
	inFlight *atomic.Int64
	maxSeen  *atomic.Int64
}

func (b *boundedDDB) DescribeTable(
	ctx context.Context,
	params *ddb.DescribeTableInput,
	optFns ...func(*ddb.Options),
) (*ddb.DescribeTableOutput, error) {
	track(b.inFlight, b.maxSeen)
	defer b.inFlight.Add(-1)
	return b.fakeDDB.DescribeTable(ctx, params, optFns...)
}

// boundedGatherer tracks the high-water mark of concurrent Gather calls.
type boundedGatherer struct {
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

func (g *boundedGatherer) Gather(context.Context, string, string, time.Time, time.Time) ([]models.MetricSample, error) {
	track(&g.inFlight, &g.maxSeen)
	defer g.inFlight.Add(-1)
	return nil, nil
}

// track bumps the in-flight counter, records a new high-water mark, and
// holds the slot briefly so overlaps are observable.
func track(inFlight, maxSeen *atomic.Int64) {
	n := inFlight.Add(1)
	for {
		seen := maxSeen.Load()
		if n <= seen || maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
}

func TestCollectAll_TableGateBoundsConcurrency(t *testing.T) {
	const (
		regionCount    = 4
		tablesPerScope = 12
		tableCapacity  = 3
	)

	var describeInFlight, describeMax atomic.Int64
	regions := make([]string, regionCount)
	byRegion := make(map[string]*boundedDDB, regionCount)
	for i := range regions {
		region := fmt.Sprintf("region-%d", i)
		regions[i] = region

		names := make([]string, tablesPerScope)
		modes := make(map[string]ddbtypes.BillingMode, tablesPerScope)
		for j := range names {
			names[j] = fmt.Sprintf("table-%d", j)
			modes[names[j]] = ddbtypes.BillingModeProvisioned
		}
		byRegion[region] = &boundedDDB{
			fakeDDB:  fakeDDB{pages: [][]string{names}, modes: modes},
			inFlight: &describeInFlight,
			maxSeen:  &describeMax,
		}
	}

	gatherer := &boundedGatherer{}
	c := newCollectorWithFactories(
		throttle.New(2), throttle.New(tableCapacity),
		nil, nil,
		func(cfg aws.Config) *tableClients {
			return &tableClients{DDB: byRegion[cfg.Region]}
		},
		func(*tableClients, time.Duration) Gatherer { return gatherer },
	)

	provider := &fakeProvider{regions: regions}
	profile, _ := provider.LoadProfile(context.Background(), "")
	result, err := c.CollectAll(context.Background(), profile, provider, CollectOptions{
		Regions:   regions,
		Threshold: 0.45,
	})
	if err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}

	// DescribeTable and Gather calls draw from the one shared table gate,
	// so across all regions combined neither class may exceed its capacity.
	if seen := int(describeMax.Load()); seen > tableCapacity {
		t.Errorf("observed %d concurrent DescribeTable calls; capacity is %d", seen, tableCapacity)
	}
	if seen := int(gatherer.maxSeen.Load()); seen > tableCapacity {
		t.Errorf("observed %d concurrent Gather calls; capacity is %d", seen, tableCapacity)
	}

	for _, region := range regions {
		if got := len(result.AllMetrics[region]); got != tablesPerScope {
			t.Errorf("%s collected %d tables; want %d", region, got, tablesPerScope)
		}
	}
}
