package service

import (
	"context"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
)

const noSummaryPlaceholder = "No AI summary generated yet. Run POST /api/v1/projects/{id}/analyze to generate."

// ProjectService manages investigations and their aggregate views.
type ProjectService interface {
	ListProjects(ctx context.Context) ([]*models.ProjectListItem, error)
	GetProject(ctx context.Context, id string) (*models.ProjectListItem, error)
	CreateProject(ctx context.Context, p *models.Project) (*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	ArchiveProject(ctx context.Context, id string) error
	GetSummary(ctx context.Context, id string) (*models.ProjectSummary, error)
	GetReport(ctx context.Context, id string) (*models.ProjectReport, error)
	ListPatterns(ctx context.Context, id string) ([]*models.Pattern, error)
}

type projectService struct {
	repo *repository.Repository
}

// NewProjectService creates a new project service.
func NewProjectService(repo *repository.Repository) ProjectService {
	return &projectService{repo: repo}
}

func (s *projectService) ListProjects(ctx context.Context) ([]*models.ProjectListItem, error) {
	return s.repo.Project.ListProjects(ctx)
}

func (s *projectService) GetProject(ctx context.Context, id string) (*models.ProjectListItem, error) {
	p, err := s.repo.Project.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	entities, err := s.repo.Entity.ListEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	patterns, err := s.repo.Pattern.ListPatterns(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProjectListItem{
		Project:      *p,
		EntityCount:  len(entities),
		PatternCount: len(patterns),
	}, nil
}

func (s *projectService) CreateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	if err := s.repo.Project.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *projectService) UpdateProject(ctx context.Context, p *models.Project) error {
	return s.repo.Project.UpdateProject(ctx, p)
}

func (s *projectService) ArchiveProject(ctx context.Context, id string) error {
	return s.repo.Project.ArchiveProject(ctx, id)
}

func (s *projectService) ListPatterns(ctx context.Context, id string) ([]*models.Pattern, error) {
	if _, err := s.repo.Project.GetProject(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Pattern.ListPatterns(ctx, id)
}

// GetSummary builds the aggregate view of one investigation. The summary text
// comes from the latest analysis pass; without one, a placeholder tells the
// caller how to generate it.
func (s *projectService) GetSummary(ctx context.Context, id string) (*models.ProjectSummary, error) {
	p, err := s.repo.Project.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	entities, err := s.repo.Entity.ListEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	findings, err := s.repo.Finding.ListFindingsForProject(ctx, id)
	if err != nil {
		return nil, err
	}
	patterns, err := s.repo.Pattern.ListPatterns(ctx, id)
	if err != nil {
		return nil, err
	}

	summaryText := noSummaryPlaceholder
	for _, pattern := range patterns {
		if pattern.PatternType == models.PatternSummary {
			summaryText = pattern.Description
			break
		}
	}

	severityCounts := map[string]int{}
	for _, f := range findings {
		severityCounts[f.Severity]++
	}
	entityTypeCounts := map[string]int{}
	for _, e := range entities {
		entityTypeCounts[e.EntityType]++
	}

	return &models.ProjectSummary{
		ProjectID:   id,
		ProjectName: p.Name,
		Summary:     summaryText,
		Statistics: models.ProjectSummaryCounts{
			TotalEntities:       len(entities),
			TotalFindings:       len(findings),
			TotalPatterns:       len(patterns),
			SeverityBreakdown:   severityCounts,
			EntityTypeBreakdown: entityTypeCounts,
		},
	}, nil
}

// GetReport exports the full investigation: every entity with its findings
// and links inlined, plus all generated patterns.
func (s *projectService) GetReport(ctx context.Context, id string) (*models.ProjectReport, error) {
	p, err := s.repo.Project.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	entities, err := s.repo.Entity.ListEntities(ctx, id)
	if err != nil {
		return nil, err
	}
	patterns, err := s.repo.Pattern.ListPatterns(ctx, id)
	if err != nil {
		return nil, err
	}

	entityReports := make([]models.EntityReport, 0, len(entities))
	totalFindings := 0
	totalLinks := 0
	for _, entity := range entities {
		findings, err := s.repo.Finding.ListFindingsForEntity(ctx, entity.ID)
		if err != nil {
			return nil, err
		}
		totalFindings += len(findings)
		for _, f := range findings {
			totalLinks += len(f.Links)
		}
		entityReports = append(entityReports, models.EntityReport{
			Entity:   *entity,
			Findings: findings,
		})
	}

	return &models.ProjectReport{
		Project:  *p,
		Entities: entityReports,
		Patterns: patterns,
		Summary: models.ProjectReportSummary{
			TotalEntities: len(entities),
			TotalFindings: totalFindings,
			TotalPatterns: len(patterns),
			TotalLinks:    totalLinks,
		},
	}, nil
}
