package dynamo

import "github.com/pankaj-dahiya-devops/ddb-audit/internal/models"

// averageReadUtilization returns the mean of all non-nil read utilization
// values in samples, or nil when no valid values exist. The mean of an empty
// set is nil — never zero, never an error.
func averageReadUtilization(samples []models.MetricSample) *float64 {
	return average(samples, func(s models.MetricSample) *float64 { return s.ReadUtilization })
}

// averageWriteUtilization is the write-direction counterpart of
// averageReadUtilization.
func averageWriteUtilization(samples []models.MetricSample) *float64 {
	return average(samples, func(s models.MetricSample) *float64 { return s.WriteUtilization })
}

func average(samples []models.MetricSample, value func(models.MetricSample) *float64) *float64 {
	var (
		sum   float64
		count int
	)
	for _, s := range samples {
		if v := value(s); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}

// isLowUtilization reports whether a table with the given average read and
// write utilization is classified low-utilization at the given threshold.
//
// A nil average satisfies its condition vacuously, so a table with no valid
// samples in either direction is classified low-utilization. Downstream
// reports depend on that behavior; keep it exactly as is.
func isLowUtilization(read, write *float64, threshold float64) bool {
	return (read == nil || (0 <= *read && *read <= threshold)) &&
		(write == nil || (0 <= *write && *write <= threshold))
}
