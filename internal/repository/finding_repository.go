package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// FindingRepository implementation. Findings for a run and the entity's final
// status always land in the same transaction so a crash never leaves a
// complete entity with half its findings.

func (r *SQLiteRepository) CompleteEntityRun(ctx context.Context, entityID, status string, findings []*models.Finding) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO findings (id, entity_id, tool_name, tool_category, raw_data, summary, severity, tags, links, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, f := range findings {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.EntityID = entityID
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now()
		}

		if _, err := tx.ExecContext(ctx, insert,
			f.ID,
			f.EntityID,
			f.ToolName,
			f.ToolCategory,
			f.RawData,
			f.Summary,
			f.Severity,
			f.Tags,
			f.Links,
			f.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE entities SET status = ? WHERE id = ?`, status, entityID); err != nil {
		return fmt.Errorf("failed to update entity status: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) ResetEntity(ctx context.Context, entityID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("failed to delete findings: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE entities SET status = ? WHERE id = ?`, models.EntityStatusPending, entityID); err != nil {
		return fmt.Errorf("failed to reset entity status: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetFinding(ctx context.Context, id string) (*models.Finding, error) {
	var f models.Finding
	query := `SELECT * FROM findings WHERE id = ?`

	err := r.db.GetContext(ctx, &f, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("finding not found: %s", id)
	}

	return &f, err
}

func (r *SQLiteRepository) ListFindingsForEntity(ctx context.Context, entityID string) ([]*models.Finding, error) {
	var findings []*models.Finding
	query := `SELECT * FROM findings WHERE entity_id = ? ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &findings, query, entityID)
	return findings, err
}

func (r *SQLiteRepository) ListFindingsForProject(ctx context.Context, projectID string) ([]*models.Finding, error) {
	var findings []*models.Finding
	query := `
		SELECT f.* FROM findings f
		JOIN entities e ON e.id = f.entity_id
		WHERE e.project_id = ?
		ORDER BY f.created_at ASC
	`

	err := r.db.SelectContext(ctx, &findings, query, projectID)
	return findings, err
}
