package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// EntityRepository implementation

func (r *SQLiteRepository) CreateEntity(ctx context.Context, e *models.Entity) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = models.EntityStatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO entities (id, project_id, entity_type, value, label, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.ProjectID,
		e.EntityType,
		e.Value,
		e.Label,
		e.Status,
		e.CreatedAt,
	)

	return err
}

func (r *SQLiteRepository) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	var e models.Entity
	query := `SELECT * FROM entities WHERE id = ?`

	err := r.db.GetContext(ctx, &e, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entity not found: %s", id)
	}

	return &e, err
}

func (r *SQLiteRepository) ListEntities(ctx context.Context, projectID string) ([]*models.Entity, error) {
	var entities []*models.Entity
	query := `SELECT * FROM entities WHERE project_id = ? ORDER BY created_at ASC`

	err := r.db.SelectContext(ctx, &entities, query, projectID)
	return entities, err
}

func (r *SQLiteRepository) DeleteEntity(ctx context.Context, id string) error {
	query := `DELETE FROM entities WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity not found: %s", id)
	}
	return nil
}

func (r *SQLiteRepository) UpdateEntityStatus(ctx context.Context, id, status string) error {
	query := `UPDATE entities SET status = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entity not found: %s", id)
	}
	return nil
}

func (r *SQLiteRepository) SearchEntities(ctx context.Context, value, entityType, excludeProjectID string) ([]*models.EntityMatch, error) {
	var matches []*models.EntityMatch
	query := `
		SELECT e.*, p.name AS project_name
		FROM entities e
		JOIN projects p ON p.id = e.project_id
		WHERE e.value = ? COLLATE NOCASE
		  AND e.entity_type = ?
		  AND e.project_id != ?
		  AND p.status != 'archived'
		ORDER BY e.created_at ASC
	`

	err := r.db.SelectContext(ctx, &matches, query, value, entityType, excludeProjectID)
	return matches, err
}
