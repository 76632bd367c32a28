package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// PatternRepository implementation. Each analysis run wholly replaces the
// project's pattern set.

func (r *SQLiteRepository) ReplacePatterns(ctx context.Context, projectID string, patterns []*models.Pattern) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete patterns: %w", err)
	}

	insert := `
		INSERT INTO patterns (id, project_id, pattern_type, description, entities_involved, confidence, llm_model, raw_llm_output, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, p := range patterns {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.ProjectID = projectID
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}

		if _, err := tx.ExecContext(ctx, insert,
			p.ID,
			p.ProjectID,
			p.PatternType,
			p.Description,
			p.EntitiesInvolved,
			p.Confidence,
			p.LLMModel,
			p.RawLLMOutput,
			p.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) ListPatterns(ctx context.Context, projectID string) ([]*models.Pattern, error) {
	var patterns []*models.Pattern
	query := `SELECT * FROM patterns WHERE project_id = ? ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &patterns, query, projectID)
	return patterns, err
}
