package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements repositories using SQLite
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// UserRepository implementation

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Tier == "" {
		u.Tier = models.TierFree
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (id, email, password_hash, tier, credits, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.Tier,
		u.Credits,
		u.CreatedAt,
	)

	return err
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	query := `SELECT * FROM users WHERE id = ?`

	err := r.db.GetContext(ctx, &u, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", id)
	}

	return &u, err
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	query := `SELECT * FROM users WHERE email = ? COLLATE NOCASE`

	err := r.db.GetContext(ctx, &u, query, email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", email)
	}

	return &u, err
}

// ProjectRepository implementation

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = models.ProjectStatusActive
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
		INSERT INTO projects (id, name, description, target_summary, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.TargetSummary,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)

	return err
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	query := `SELECT * FROM projects WHERE id = ?`

	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}

	return &p, err
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*models.ProjectListItem, error) {
	var projects []*models.ProjectListItem
	query := `
		SELECT p.*,
		       (SELECT COUNT(*) FROM entities e WHERE e.project_id = p.id) AS entity_count,
		       (SELECT COUNT(*) FROM patterns pt WHERE pt.project_id = p.id) AS pattern_count
		FROM projects p
		WHERE p.status != 'archived'
		ORDER BY p.created_at DESC
	`

	err := r.db.SelectContext(ctx, &projects, query)
	return projects, err
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET name = ?, description = ?, target_summary = ?, status = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.TargetSummary,
		p.Status,
		p.UpdatedAt,
		p.ID,
	)

	return err
}

func (r *SQLiteRepository) ArchiveProject(ctx context.Context, id string) error {
	query := `UPDATE projects SET status = 'archived', updated_at = ? WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}
