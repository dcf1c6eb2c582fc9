package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
)

// cloudWatchGatherer is the production Gatherer. It converts raw DynamoDB
// capacity metrics into per-period utilization ratios:
//
//	utilization = (consumed units summed over the period / period seconds)
//	            / provisioned units averaged over the period
//
// computed independently for the read and write directions. A direction with
// no provisioned datapoint (or zero provisioned capacity) in a period yields
// a nil utilization for that sample — "no data", not zero.
type cloudWatchGatherer struct {
	cw     tableCWClient
	period time.Duration
}

func newCloudWatchGatherer(cw tableCWClient, period time.Duration) *cloudWatchGatherer {
	return &cloudWatchGatherer{cw: cw, period: period}
}

// Gather implements Gatherer. Any CloudWatch call failure makes the whole
// window absent: the error is returned and the caller excludes the table
// from the output maps.
func (g *cloudWatchGatherer) Gather(ctx context.Context, table, region string, start, end time.Time) ([]models.MetricSample, error) {
	consumedRead, err := g.fetchStatistic(ctx, table, "ConsumedReadCapacityUnits", cwtypes.StatisticSum, start, end)
	if err != nil {
		return nil, fmt.Errorf("gather metrics for table %s in %s: %w", table, region, err)
	}
	provisionedRead, err := g.fetchStatistic(ctx, table, "ProvisionedReadCapacityUnits", cwtypes.StatisticAverage, start, end)
	if err != nil {
		return nil, fmt.Errorf("gather metrics for table %s in %s: %w", table, region, err)
	}
	consumedWrite, err := g.fetchStatistic(ctx, table, "ConsumedWriteCapacityUnits", cwtypes.StatisticSum, start, end)
	if err != nil {
		return nil, fmt.Errorf("gather metrics for table %s in %s: %w", table, region, err)
	}
	provisionedWrite, err := g.fetchStatistic(ctx, table, "ProvisionedWriteCapacityUnits", cwtypes.StatisticAverage, start, end)
	if err != nil {
		return nil, fmt.Errorf("gather metrics for table %s in %s: %w", table, region, err)
	}

	return buildSamples(g.period, consumedRead, provisionedRead, consumedWrite, provisionedWrite), nil
}

// fetchStatistic retrieves one metric series for the table at the gatherer's
// period and returns it keyed by timestamp.
func (g *cloudWatchGatherer) fetchStatistic(
	ctx context.Context,
	table, metricName string,
	stat cwtypes.Statistic,
	start, end time.Time,
) (map[time.Time]float64, error) {
	out, err := g.cw.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String("AWS/DynamoDB"),
		MetricName: aws.String(metricName),
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String("TableName"),
				Value: aws.String(table),
			},
		},
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(int32(g.period / time.Second)),
		Statistics: []cwtypes.Statistic{stat},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", metricName, err)
	}

	series := make(map[time.Time]float64, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		if dp.Timestamp == nil {
			continue
		}
		switch stat {
		case cwtypes.StatisticSum:
			if dp.Sum != nil {
				series[dp.Timestamp.UTC()] = *dp.Sum
			}
		case cwtypes.StatisticAverage:
			if dp.Average != nil {
				series[dp.Timestamp.UTC()] = *dp.Average
			}
		}
	}
	return series, nil
}

// buildSamples merges the four metric series into timestamp-ordered samples.
//
// For each period where provisioned capacity is known and positive, the
// utilization ratio is computed; a missing consumed datapoint counts as zero
// consumption (CloudWatch omits datapoints for idle periods). Periods with
// no usable data in either direction produce no sample.
func buildSamples(
	period time.Duration,
	consumedRead, provisionedRead, consumedWrite, provisionedWrite map[time.Time]float64,
) []models.MetricSample {
	timestamps := make(map[time.Time]struct{})
	for _, series := range []map[time.Time]float64{consumedRead, provisionedRead, consumedWrite, provisionedWrite} {
		for ts := range series {
			timestamps[ts] = struct{}{}
		}
	}
	if len(timestamps) == 0 {
		return nil
	}

	seconds := period.Seconds()
	var samples []models.MetricSample
	for ts := range timestamps {
		sample := models.MetricSample{Timestamp: ts}
		sample.ReadUtilization = utilizationAt(ts, consumedRead, provisionedRead, seconds)
		sample.WriteUtilization = utilizationAt(ts, consumedWrite, provisionedWrite, seconds)
		if sample.ReadUtilization == nil && sample.WriteUtilization == nil {
			continue
		}
		samples = append(samples, sample)
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples
}

// utilizationAt computes one direction's utilization ratio for a period, or
// nil when provisioned capacity is unknown or zero.
func utilizationAt(ts time.Time, consumed, provisioned map[time.Time]float64, periodSeconds float64) *float64 {
	prov, ok := provisioned[ts]
	if !ok || prov <= 0 {
		return nil
	}
	ratio := (consumed[ts] / periodSeconds) / prov
	return &ratio
}
