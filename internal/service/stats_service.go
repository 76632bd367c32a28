package service

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
)

// StatsService records and reports anonymous usage metering. Writes are
// best-effort: a metering failure is logged and never surfaces to the caller.
type StatsService interface {
	RecordRun(ctx context.Context, entityTypes []string)
	RecordAnalysis(ctx context.Context)
	RecordError(ctx context.Context)
	Aggregate(ctx context.Context) (*models.AggregateStats, error)
	Daily(ctx context.Context, days int) ([]map[string]any, error)
}

type statsService struct {
	repo   repository.StatsRepository
	logger *slog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(repo repository.StatsRepository, logger *slog.Logger) StatsService {
	return &statsService{repo: repo, logger: logger}
}

func (s *statsService) increment(ctx context.Context, metric string) {
	if err := s.repo.IncrementStat(ctx, metric, 1); err != nil {
		s.logger.Warn("stats write failed", "metric", metric, "error", err)
	}
}

func (s *statsService) RecordRun(ctx context.Context, entityTypes []string) {
	s.increment(ctx, "run_count")
	for _, et := range entityTypes {
		s.increment(ctx, "target_"+et)
	}
}

func (s *statsService) RecordAnalysis(ctx context.Context) {
	s.increment(ctx, "analysis_count")
}

func (s *statsService) RecordError(ctx context.Context) {
	s.increment(ctx, "error_count")
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Aggregate returns the all-time rollup with derived percentages.
func (s *statsService) Aggregate(ctx context.Context) (*models.AggregateStats, error) {
	totals, err := s.repo.AggregateStats(ctx)
	if err != nil {
		return nil, err
	}

	agg := &models.AggregateStats{
		TotalRuns:        totals["run_count"],
		TotalAnalyses:    totals["analysis_count"],
		TotalErrors:      totals["error_count"],
		TargetTypeCounts: map[string]int64{},
		TargetTypePct:    map[string]float64{},
	}

	var totalTargets int64
	for metric, value := range totals {
		if t, ok := strings.CutPrefix(metric, "target_"); ok {
			agg.TargetTypeCounts[t] = value
			totalTargets += value
		}
	}
	if totalTargets > 0 {
		for t, v := range agg.TargetTypeCounts {
			agg.TargetTypePct[t] = round1(float64(v) / float64(totalTargets) * 100)
		}
	}
	if agg.TotalRuns > 0 {
		agg.ErrorRatePct = round1(float64(agg.TotalErrors) / float64(agg.TotalRuns) * 100)
	}

	return agg, nil
}

// Daily returns per-day metric maps for the last N days, newest first.
func (s *statsService) Daily(ctx context.Context, days int) ([]map[string]any, error) {
	rows, err := s.repo.DailyStats(ctx, days)
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	byDate := map[string]map[string]any{}
	for _, row := range rows {
		day, ok := byDate[row.Date]
		if !ok {
			day = map[string]any{"date": row.Date}
			byDate[row.Date] = day
			out = append(out, day)
		}
		day[row.Metric] = row.Value
	}
	return out, nil
}
