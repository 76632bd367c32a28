package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// StatsRepository implementation. One row per (date, metric); increments are
// upserts so concurrent runs never race on row creation.

func (r *SQLiteRepository) IncrementStat(ctx context.Context, metric string, amount int64) error {
	query := `
		INSERT INTO anon_stats (date, metric, value)
		VALUES (?, ?, ?)
		ON CONFLICT(date, metric) DO UPDATE SET value = value + excluded.value
	`

	_, err := r.db.ExecContext(ctx, query, time.Now().Format("2006-01-02"), metric, amount)
	return err
}

func (r *SQLiteRepository) AggregateStats(ctx context.Context) (map[string]int64, error) {
	rows := []struct {
		Metric string `db:"metric"`
		Total  int64  `db:"total"`
	}{}

	query := `SELECT metric, SUM(value) AS total FROM anon_stats GROUP BY metric`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.Metric] = row.Total
	}
	return totals, nil
}

func (r *SQLiteRepository) DailyStats(ctx context.Context, days int) ([]*models.DailyStat, error) {
	if days <= 0 {
		days = 30
	}

	var stats []*models.DailyStat
	query := `
		SELECT date, metric, value FROM anon_stats
		WHERE date >= date('now', ?)
		ORDER BY date DESC, metric ASC
	`

	err := r.db.SelectContext(ctx, &stats, query, fmt.Sprintf("-%d days", days))
	return stats, err
}
