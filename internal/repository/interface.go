package repository

import (
	"context"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// UserRepository defines user data access methods
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProjectRepository defines investigation data access methods
type ProjectRepository interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.ProjectListItem, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	ArchiveProject(ctx context.Context, id string) error
}

// EntityRepository defines entity data access methods. Status writes outside
// of UpdateEntityStatus/CompleteEntityRun/ResetEntity do not exist: the run
// orchestrator owns all transitions.
type EntityRepository interface {
	CreateEntity(ctx context.Context, e *models.Entity) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	ListEntities(ctx context.Context, projectID string) ([]*models.Entity, error)
	DeleteEntity(ctx context.Context, id string) error
	UpdateEntityStatus(ctx context.Context, id, status string) error
	// SearchEntities finds entities with a case-insensitive exact value match
	// and matching type, excluding the given project and any archived project.
	SearchEntities(ctx context.Context, value, entityType, excludeProjectID string) ([]*models.EntityMatch, error)
}

// FindingRepository defines finding data access methods
type FindingRepository interface {
	// CompleteEntityRun persists all findings of one run and the entity's
	// final status in a single transaction.
	CompleteEntityRun(ctx context.Context, entityID, status string, findings []*models.Finding) error
	// ResetEntity deletes all findings for the entity and resets its status to
	// pending, in a single transaction. Used for explicit re-runs.
	ResetEntity(ctx context.Context, entityID string) error
	GetFinding(ctx context.Context, id string) (*models.Finding, error)
	ListFindingsForEntity(ctx context.Context, entityID string) ([]*models.Finding, error)
	ListFindingsForProject(ctx context.Context, projectID string) ([]*models.Finding, error)
}

// PatternRepository defines analysis pattern data access methods
type PatternRepository interface {
	// ReplacePatterns deletes all existing patterns for the project and
	// inserts the new set in a single transaction.
	ReplacePatterns(ctx context.Context, projectID string, patterns []*models.Pattern) error
	ListPatterns(ctx context.Context, projectID string) ([]*models.Pattern, error)
}

// StatsRepository defines anonymous usage metering access methods
type StatsRepository interface {
	IncrementStat(ctx context.Context, metric string, amount int64) error
	AggregateStats(ctx context.Context) (map[string]int64, error)
	DailyStats(ctx context.Context, days int) ([]*models.DailyStat, error)
}

// Repository aggregates all repositories
type Repository struct {
	User    UserRepository
	Project ProjectRepository
	Entity  EntityRepository
	Finding FindingRepository
	Pattern PatternRepository
	Stats   StatsRepository
}
