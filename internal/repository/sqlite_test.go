package repository

import (
	"context"
	"testing"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if err := repo.RunMigrations(string(schema)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return repo
}

func mustCreateProject(t *testing.T, repo *SQLiteRepository, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	if err := repo.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return p
}

func mustCreateEntity(t *testing.T, repo *SQLiteRepository, projectID, entityType, value string) *models.Entity {
	t.Helper()
	e := &models.Entity{ProjectID: projectID, EntityType: entityType, Value: value}
	if err := repo.CreateEntity(context.Background(), e); err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	return e
}

func TestCreateProject_AutoGeneratesID(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()

	p := mustCreateProject(t, repo, "Test Investigation")
	if p.ID == "" {
		t.Error("Expected auto-generated ID")
	}
	if p.Status != models.ProjectStatusActive {
		t.Errorf("Expected status active, got %s", p.Status)
	}
}

func TestListProjects_ExcludesArchived(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	active := mustCreateProject(t, repo, "Active")
	archived := mustCreateProject(t, repo, "Archived")
	if err := repo.ArchiveProject(ctx, archived.ID); err != nil {
		t.Fatalf("Failed to archive project: %v", err)
	}

	projects, err := repo.ListProjects(ctx)
	if err != nil {
		t.Fatalf("Failed to list projects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("Expected 1 project, got %d", len(projects))
	}
	if projects[0].ID != active.ID {
		t.Errorf("Expected project %s, got %s", active.ID, projects[0].ID)
	}
}

func TestListProjects_Counts(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	p := mustCreateProject(t, repo, "Counted")
	mustCreateEntity(t, repo, p.ID, models.EntityTypeEmail, "a@example.com")
	mustCreateEntity(t, repo, p.ID, models.EntityTypePhone, "+15551234567")

	err := repo.ReplacePatterns(ctx, p.ID, []*models.Pattern{
		{PatternType: models.PatternSummary, Description: "test"},
	})
	if err != nil {
		t.Fatalf("Failed to replace patterns: %v", err)
	}

	projects, err := repo.ListProjects(ctx)
	if err != nil {
		t.Fatalf("Failed to list projects: %v", err)
	}
	if projects[0].EntityCount != 2 {
		t.Errorf("Expected entity count 2, got %d", projects[0].EntityCount)
	}
	if projects[0].PatternCount != 1 {
		t.Errorf("Expected pattern count 1, got %d", projects[0].PatternCount)
	}
}

func TestCreateEntity_DefaultsToPending(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()

	p := mustCreateProject(t, repo, "Test")
	e := mustCreateEntity(t, repo, p.ID, models.EntityTypeEmail, "target@example.com")
	if e.Status != models.EntityStatusPending {
		t.Errorf("Expected status pending, got %s", e.Status)
	}
}

func TestUpdateEntityStatus(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	p := mustCreateProject(t, repo, "Test")
	e := mustCreateEntity(t, repo, p.ID, models.EntityTypeEmail, "target@example.com")

	if err := repo.UpdateEntityStatus(ctx, e.ID, models.EntityStatusRunning); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	got, err := repo.GetEntity(ctx, e.ID)
	if err != nil {
		t.Fatalf("Failed to get entity: %v", err)
	}
	if got.Status != models.EntityStatusRunning {
		t.Errorf("Expected status running, got %s", got.Status)
	}
}

func TestUpdateEntityStatus_NotFound(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()

	err := repo.UpdateEntityStatus(context.Background(), "nonexistent", models.EntityStatusRunning)
	if err == nil {
		t.Error("Expected error for nonexistent entity")
	}
}

func TestCompleteEntityRun_WritesFindingsAndStatus(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	p := mustCreateProject(t, repo, "Test")
	e := mustCreateEntity(t, repo, p.ID, models.EntityTypeEmail, "target@example.com")

	findings := []*models.Finding{
		{
			ToolName:     "Holehe",
			ToolCategory: "email",
			RawData:      models.RawData{"registered": []any{"twitter"}},
			Summary:      "Registered on 1 site",
			Severity:     models.SeverityMedium,
			Tags:         models.Tags{"email", "accounts"},
		},
		{
			ToolName:     "EmailRep",
			ToolCategory: "email",
			Summary:      "Reputation neutral",
			Severity:     models.SeverityInfo,
		},
	}

	if err := repo.CompleteEntityRun(ctx, e.ID, models.EntityStatusComplete, findings); err != nil {
		t.Fatalf("Failed to complete entity run: %v", err)
	}

	got, err := repo.ListFindingsForEntity(ctx, e.ID)
	if err != nil {
		t.Fatalf("Failed to list findings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 findings, got %d", len(got))
	}
	if got[0].RawData["registered"] == nil {
		t.Error("Expected raw_data to round-trip through JSON column")
	}

	entity, err := repo.GetEntity(ctx, e.ID)
	if err != nil {
		t.Fatalf("Failed to get entity: %v", err)
	}
	if entity.Status != models.EntityStatusComplete {
		t.Errorf("Expected status complete, got %s", entity.Status)
	}
}

func TestResetEntity_ClearsFindings(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	p := mustCreateProject(t, repo, "Test")
	e := mustCreateEntity(t, repo, p.ID, models.EntityTypeEmail, "target@example.com")

	findings := []*models.Finding{{ToolName: "Holehe", ToolCategory: "email", Severity: models.SeverityInfo}}
	if err := repo.CompleteEntityRun(ctx, e.ID, models.EntityStatusComplete, findings); err != nil {
		t.Fatalf("Failed to complete entity run: %v", err)
	}

	if err := repo.ResetEntity(ctx, e.ID); err != nil {
		t.Fatalf("Failed to reset entity: %v", err)
	}

	got, err := repo.ListFindingsForEntity(ctx, e.ID)
	if err != nil {
		t.Fatalf("Failed to list findings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected 0 findings after reset, got %d", len(got))
	}

	entity, _ := repo.GetEntity(ctx, e.ID)
	if entity.Status != models.EntityStatusPending {
		t.Errorf("Expected status pending after reset, got %s", entity.Status)
	}
}

func TestSearchEntities_CaseInsensitive(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	p1 := mustCreateProject(t, repo, "Alpha")
	p2 := mustCreateProject(t, repo, "Beta")
	mustCreateEntity(t, repo, p1.ID, models.EntityTypeEmail, "Target@Example.com")
	mustCreateEntity(t, repo, p2.ID, models.EntityTypeEmail, "searcher@example.com")

	matches, err := repo.SearchEntities(ctx, "target@example.com", models.EntityTypeEmail, p2.ID)
	if err != nil {
		t.Fatalf("Failed to search entities: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].ProjectName != "Alpha" {
		t.Errorf("Expected project name Alpha, got %s", matches[0].ProjectName)
	}
}

func TestSearchEntities_ExcludesOwnAndArchivedProjects(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	own := mustCreateProject(t, repo, "Own")
	other := mustCreateProject(t, repo, "Other")
	archived := mustCreateProject(t, repo, "Old")
	mustCreateEntity(t, repo, own.ID, models.EntityTypePhone, "+15551234567")
	mustCreateEntity(t, repo, other.ID, models.EntityTypePhone, "+15551234567")
	mustCreateEntity(t, repo, archived.ID, models.EntityTypePhone, "+15551234567")
	if err := repo.ArchiveProject(ctx, archived.ID); err != nil {
		t.Fatalf("Failed to archive project: %v", err)
	}

	matches, err := repo.SearchEntities(ctx, "+15551234567", models.EntityTypePhone, own.ID)
	if err != nil {
		t.Fatalf("Failed to search entities: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].ProjectID != other.ID {
		t.Errorf("Expected match from project %s, got %s", other.ID, matches[0].ProjectID)
	}
}

func TestReplacePatterns_DiscardsPrevious(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	p := mustCreateProject(t, repo, "Test")

	first := []*models.Pattern{
		{PatternType: models.PatternRiskScore, Description: "Risk: high", Confidence: 0.75},
		{PatternType: models.PatternSummary, Description: "Old summary", Confidence: 0.6},
	}
	if err := repo.ReplacePatterns(ctx, p.ID, first); err != nil {
		t.Fatalf("Failed to replace patterns: %v", err)
	}

	second := []*models.Pattern{
		{PatternType: models.PatternSummary, Description: "New summary", Confidence: 0.6, EntitiesInvolved: models.EntityIDs{"e1", "e2"}},
	}
	if err := repo.ReplacePatterns(ctx, p.ID, second); err != nil {
		t.Fatalf("Failed to replace patterns: %v", err)
	}

	patterns, err := repo.ListPatterns(ctx, p.ID)
	if err != nil {
		t.Fatalf("Failed to list patterns: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("Expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].Description != "New summary" {
		t.Errorf("Expected new summary, got %s", patterns[0].Description)
	}
	if len(patterns[0].EntitiesInvolved) != 2 {
		t.Errorf("Expected 2 entity ids, got %d", len(patterns[0].EntitiesInvolved))
	}
}

func TestIncrementStat_Accumulates(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.IncrementStat(ctx, "run_count", 1); err != nil {
			t.Fatalf("Failed to increment stat: %v", err)
		}
	}
	if err := repo.IncrementStat(ctx, "error_count", 2); err != nil {
		t.Fatalf("Failed to increment stat: %v", err)
	}

	totals, err := repo.AggregateStats(ctx)
	if err != nil {
		t.Fatalf("Failed to aggregate stats: %v", err)
	}
	if totals["run_count"] != 3 {
		t.Errorf("Expected run_count 3, got %d", totals["run_count"])
	}
	if totals["error_count"] != 2 {
		t.Errorf("Expected error_count 2, got %d", totals["error_count"])
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	repo := setupTestRepo(t)
	defer repo.Close()
	ctx := context.Background()

	u := &models.User{Email: "analyst@example.com", PasswordHash: "x"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if u.Tier != models.TierFree {
		t.Errorf("Expected default tier free, got %s", u.Tier)
	}

	got, err := repo.GetUserByEmail(ctx, "Analyst@Example.COM")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("Expected user %s, got %s", u.ID, got.ID)
	}
}
