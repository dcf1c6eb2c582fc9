package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/dynamo"
)

type fakeProvider struct {
	profile    *common.ProfileConfig
	profileErr error
	regions    []string
	regionsErr error
}

func (p *fakeProvider) LoadProfile(context.Context, string) (*common.ProfileConfig, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return p.profile, nil
}

func (p *fakeProvider) GetActiveRegions(context.Context, *common.ProfileConfig) ([]string, error) {
	if p.regionsErr != nil {
		return nil, p.regionsErr
	}
	return p.regions, nil
}

func (p *fakeProvider) ConfigForRegion(_ *common.ProfileConfig, region string) aws.Config {
	return aws.Config{Region: region}
}

// fakeCollector records the options it was invoked with and returns a canned
// result.
type fakeCollector struct {
	result *models.ScanResult
	err    error
	opts   dynamo.CollectOptions
	calls  int
}

func (c *fakeCollector) CollectAll(
	_ context.Context,
	_ *common.ProfileConfig,
	_ common.AWSClientProvider,
	opts dynamo.CollectOptions,
) (*models.ScanResult, error) {
	c.calls++
	c.opts = opts
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func f64(v float64) *float64 { return &v }

func testResult() *models.ScanResult {
	result := models.NewScanResult()
	result.AllMetrics["us-east-1"] = map[string][]models.MetricSample{
		"orders": {{ReadUtilization: f64(0.3)}},
		"idle":   {},
	}
	result.AllMetrics["eu-west-1"] = map[string][]models.MetricSample{}
	result.LowUtilization["us-east-1"] = []models.TableUtilization{
		{TableName: "idle"},
	}
	result.LowUtilization["eu-west-1"] = []models.TableUtilization{}
	return result
}

func testProfile() *common.ProfileConfig {
	return &common.ProfileConfig{ProfileName: "default", AccountID: "123456789012"}
}

func TestRunScan(t *testing.T) {
	provider := &fakeProvider{
		profile: testProfile(),
		regions: []string{"us-east-1", "eu-west-1"},
	}
	collector := &fakeCollector{result: testResult()}
	e := NewDefaultEngine(provider, collector)

	report, err := e.RunScan(context.Background(), ScanOptions{})
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}

	if collector.calls != 1 {
		t.Fatalf("collector invoked %d times; want 1", collector.calls)
	}

	t.Run("defaults applied", func(t *testing.T) {
		if collector.opts.Threshold != 0.45 {
			t.Errorf("threshold = %v; want 0.45", collector.opts.Threshold)
		}
		if collector.opts.Period != time.Hour {
			t.Errorf("period = %v; want 1h", collector.opts.Period)
		}
		window := collector.opts.End.Sub(collector.opts.Start)
		if window != 7*24*time.Hour {
			t.Errorf("window = %v; want 168h", window)
		}
	})

	t.Run("discovered regions passed through", func(t *testing.T) {
		if len(collector.opts.Regions) != 2 {
			t.Errorf("collector saw %d regions; want 2", len(collector.opts.Regions))
		}
	})

	t.Run("report identity", func(t *testing.T) {
		if report.Profile != "default" || report.AccountID != "123456789012" {
			t.Errorf("report identity = %s/%s", report.Profile, report.AccountID)
		}
		if report.ReportID == "" {
			t.Error("empty report ID")
		}
		if report.Threshold != 0.45 {
			t.Errorf("report threshold = %v; want 0.45", report.Threshold)
		}
		if report.Result == nil {
			t.Fatal("report carries no result")
		}
	})

	t.Run("summary derived from result maps", func(t *testing.T) {
		if report.Summary.TotalRegions != 2 {
			t.Errorf("TotalRegions = %d; want 2", report.Summary.TotalRegions)
		}
		if report.Summary.TablesWithMetrics != 2 {
			t.Errorf("TablesWithMetrics = %d; want 2", report.Summary.TablesWithMetrics)
		}
		if report.Summary.LowUtilizationTables != 1 {
			t.Errorf("LowUtilizationTables = %d; want 1", report.Summary.LowUtilizationTables)
		}
	})
}

func TestRunScan_ExplicitRegionsSkipDiscovery(t *testing.T) {
	provider := &fakeProvider{
		profile: testProfile(),
		// Discovery would fail, but explicit regions must bypass it.
		regionsErr: errors.New("ec2 unreachable"),
	}
	collector := &fakeCollector{result: models.NewScanResult()}
	e := NewDefaultEngine(provider, collector)

	_, err := e.RunScan(context.Background(), ScanOptions{Regions: []string{"ap-south-1"}})
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}
	if len(collector.opts.Regions) != 1 || collector.opts.Regions[0] != "ap-south-1" {
		t.Errorf("collector saw regions %v; want [ap-south-1]", collector.opts.Regions)
	}
}

func TestRunScan_Overrides(t *testing.T) {
	provider := &fakeProvider{profile: testProfile(), regions: []string{"us-east-1"}}
	collector := &fakeCollector{result: models.NewScanResult()}
	e := NewDefaultEngine(provider, collector)

	_, err := e.RunScan(context.Background(), ScanOptions{
		DaysBack:      14,
		Threshold:     0.2,
		PeriodSeconds: 300,
	})
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}
	if collector.opts.Threshold != 0.2 {
		t.Errorf("threshold = %v; want 0.2", collector.opts.Threshold)
	}
	if collector.opts.Period != 5*time.Minute {
		t.Errorf("period = %v; want 5m", collector.opts.Period)
	}
	if window := collector.opts.End.Sub(collector.opts.Start); window != 14*24*time.Hour {
		t.Errorf("window = %v; want 336h", window)
	}
}

func TestRunScan_Failures(t *testing.T) {
	t.Run("profile load failure is fatal", func(t *testing.T) {
		provider := &fakeProvider{profileErr: errors.New("no credentials")}
		e := NewDefaultEngine(provider, &fakeCollector{})
		if _, err := e.RunScan(context.Background(), ScanOptions{}); err == nil {
			t.Fatal("RunScan() error = nil; want error")
		}
	})

	t.Run("region discovery failure is fatal", func(t *testing.T) {
		provider := &fakeProvider{profile: testProfile(), regionsErr: errors.New("access denied")}
		collector := &fakeCollector{}
		e := NewDefaultEngine(provider, collector)
		if _, err := e.RunScan(context.Background(), ScanOptions{}); err == nil {
			t.Fatal("RunScan() error = nil; want error")
		}
		if collector.calls != 0 {
			t.Errorf("collector invoked %d times after discovery failure; want 0", collector.calls)
		}
	})

	t.Run("collector error propagates", func(t *testing.T) {
		provider := &fakeProvider{profile: testProfile(), regions: []string{"us-east-1"}}
		e := NewDefaultEngine(provider, &fakeCollector{err: context.Canceled})
		if _, err := e.RunScan(context.Background(), ScanOptions{}); !errors.Is(err, context.Canceled) {
			t.Fatalf("RunScan() error = %v; want context.Canceled", err)
		}
	})
}
