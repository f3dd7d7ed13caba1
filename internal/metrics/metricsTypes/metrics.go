package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_BatchProcessed = "batchProcessed"
	Metric_Incr_EventProcessed = "eventProcessed"

	Metric_Gauge_CurrentBlockHeight = "currentBlockHeight"
	Metric_Gauge_TotalValue         = "totalValue"
	Metric_Gauge_DelegatorCount     = "delegatorCount"

	Metric_Timing_BatchProcessDuration = "batch.process.duration"
	Metric_Timing_CommitDuration       = "commit.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_BatchProcessed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_EventProcessed,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_CurrentBlockHeight,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_TotalValue,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_DelegatorCount,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_BatchProcessDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_CommitDuration,
			Labels: []string{},
		},
	},
}
