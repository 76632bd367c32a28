package models

// DailyStat is one (date, metric, value) row of anonymous usage metering.
// No PII is ever recorded: only dates, metric names, and counts.
type DailyStat struct {
	Date   string `json:"date" db:"date"`
	Metric string `json:"metric" db:"metric"`
	Value  int64  `json:"value" db:"value"`
}

// AggregateStats is the all-time anonymous usage rollup.
type AggregateStats struct {
	TotalRuns        int64              `json:"total_runs"`
	TotalAnalyses    int64              `json:"total_analyses"`
	TotalErrors      int64              `json:"total_errors"`
	ErrorRatePct     float64            `json:"error_rate_pct"`
	TargetTypeCounts map[string]int64   `json:"target_type_counts"`
	TargetTypePct    map[string]float64 `json:"target_type_pct"`
}
