package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
	"github.com/valkyrieosint/valkyrie-backend/migrations"
)

func setupTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	sqlite, err := repository.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if err := sqlite.RunMigrations(string(schema)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return &repository.Repository{
		User:    sqlite,
		Project: sqlite,
		Entity:  sqlite,
		Finding: sqlite,
		Pattern: sqlite,
		Stats:   sqlite,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedInvestigation(t *testing.T, repo *repository.Repository) (*models.Project, *models.Entity) {
	t.Helper()
	ctx := context.Background()
	project := &models.Project{Name: "Case"}
	if err := repo.Project.CreateProject(ctx, project); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	entity := &models.Entity{ProjectID: project.ID, EntityType: models.EntityTypeEmail, Value: "a@example.com"}
	if err := repo.Entity.CreateEntity(ctx, entity); err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	return project, entity
}

func TestGetSummary_PlaceholderWithoutAnalysis(t *testing.T) {
	repo := setupTestRepo(t)
	project, entity := seedInvestigation(t, repo)
	ctx := context.Background()

	findings := []*models.Finding{
		{EntityID: entity.ID, ToolName: "Holehe", Severity: models.SeverityMedium},
		{EntityID: entity.ID, ToolName: "HaveIBeenPwned", Severity: models.SeverityHigh},
	}
	if err := repo.Finding.CompleteEntityRun(ctx, entity.ID, models.EntityStatusComplete, findings); err != nil {
		t.Fatalf("Failed to seed findings: %v", err)
	}

	svc := NewProjectService(repo)
	summary, err := svc.GetSummary(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.Summary != noSummaryPlaceholder {
		t.Errorf("Expected placeholder summary, got %q", summary.Summary)
	}
	if summary.Statistics.TotalFindings != 2 || summary.Statistics.TotalEntities != 1 {
		t.Errorf("Unexpected counts: %+v", summary.Statistics)
	}
	if summary.Statistics.SeverityBreakdown["medium"] != 1 || summary.Statistics.SeverityBreakdown["high"] != 1 {
		t.Errorf("Unexpected severity breakdown: %v", summary.Statistics.SeverityBreakdown)
	}
	if summary.Statistics.EntityTypeBreakdown["email"] != 1 {
		t.Errorf("Unexpected entity type breakdown: %v", summary.Statistics.EntityTypeBreakdown)
	}
}

func TestGetSummary_UsesPatternSummary(t *testing.T) {
	repo := setupTestRepo(t)
	project, _ := seedInvestigation(t, repo)
	ctx := context.Background()

	patterns := []*models.Pattern{
		{ProjectID: project.ID, PatternType: models.PatternRiskScore, Description: "low", Confidence: 0.25},
		{ProjectID: project.ID, PatternType: models.PatternSummary, Description: "The target is exposed.", Confidence: 0.6},
	}
	if err := repo.Pattern.ReplacePatterns(ctx, project.ID, patterns); err != nil {
		t.Fatalf("Failed to seed patterns: %v", err)
	}

	svc := NewProjectService(repo)
	summary, err := svc.GetSummary(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.Summary != "The target is exposed." {
		t.Errorf("Expected summary from pattern, got %q", summary.Summary)
	}
	if summary.Statistics.TotalPatterns != 2 {
		t.Errorf("Expected 2 patterns, got %d", summary.Statistics.TotalPatterns)
	}
}

func TestGetReport_Totals(t *testing.T) {
	repo := setupTestRepo(t)
	project, entity := seedInvestigation(t, repo)
	ctx := context.Background()

	links := models.Links{
		{EntityID: "x1", ProjectName: "Other", MatchReason: "Shared email"},
		{EntityID: "x2", ProjectName: "Third", MatchReason: "Shared email"},
	}
	findings := []*models.Finding{
		{EntityID: entity.ID, ToolName: "Holehe", Severity: models.SeverityMedium, Links: links},
		{EntityID: entity.ID, ToolName: "EmailRep", Severity: models.SeverityInfo, Links: links},
	}
	if err := repo.Finding.CompleteEntityRun(ctx, entity.ID, models.EntityStatusComplete, findings); err != nil {
		t.Fatalf("Failed to seed findings: %v", err)
	}

	svc := NewProjectService(repo)
	report, err := svc.GetReport(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if report.Summary.TotalFindings != 2 {
		t.Errorf("Expected 2 findings, got %d", report.Summary.TotalFindings)
	}
	// Links are attached per finding, so both findings' link sets count
	if report.Summary.TotalLinks != 4 {
		t.Errorf("Expected 4 links, got %d", report.Summary.TotalLinks)
	}
	if len(report.Entities) != 1 || len(report.Entities[0].Findings) != 2 {
		t.Fatalf("Unexpected entities in report: %+v", report.Entities)
	}
}

func TestGetProject_Counts(t *testing.T) {
	repo := setupTestRepo(t)
	project, _ := seedInvestigation(t, repo)
	ctx := context.Background()

	svc := NewProjectService(repo)
	item, err := svc.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if item.EntityCount != 1 || item.PatternCount != 0 {
		t.Errorf("Unexpected counts: entity=%d pattern=%d", item.EntityCount, item.PatternCount)
	}
}

func TestStatsService_AggregatePercentages(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	svc := NewStatsService(repo.Stats, testLogger())

	svc.RecordRun(ctx, []string{"email", "email", "phone"})
	svc.RecordRun(ctx, []string{"domain"})
	svc.RecordAnalysis(ctx)
	svc.RecordError(ctx)

	agg, err := svc.Aggregate(ctx)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if agg.TotalRuns != 2 || agg.TotalAnalyses != 1 || agg.TotalErrors != 1 {
		t.Errorf("Unexpected totals: %+v", agg)
	}
	if agg.ErrorRatePct != 50.0 {
		t.Errorf("Expected error rate 50.0, got %v", agg.ErrorRatePct)
	}
	if agg.TargetTypeCounts["email"] != 2 || agg.TargetTypeCounts["phone"] != 1 || agg.TargetTypeCounts["domain"] != 1 {
		t.Errorf("Unexpected target counts: %v", agg.TargetTypeCounts)
	}
	if agg.TargetTypePct["email"] != 50.0 || agg.TargetTypePct["phone"] != 25.0 {
		t.Errorf("Unexpected target percentages: %v", agg.TargetTypePct)
	}
}

func TestStatsService_AggregateEmpty(t *testing.T) {
	repo := setupTestRepo(t)
	svc := NewStatsService(repo.Stats, testLogger())

	agg, err := svc.Aggregate(context.Background())
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if agg.TotalRuns != 0 || agg.ErrorRatePct != 0 {
		t.Errorf("Expected zero stats, got %+v", agg)
	}
}

func TestStatsService_Daily(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	svc := NewStatsService(repo.Stats, testLogger())

	svc.RecordRun(ctx, []string{"email"})
	svc.RecordAnalysis(ctx)

	daily, err := svc.Daily(ctx, 7)
	if err != nil {
		t.Fatalf("Daily failed: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("Expected 1 day of stats, got %d", len(daily))
	}
	day := daily[0]
	if day["run_count"] != int64(1) || day["analysis_count"] != int64(1) || day["target_email"] != int64(1) {
		t.Errorf("Unexpected day payload: %v", day)
	}
	if _, ok := day["date"]; !ok {
		t.Error("Expected date key in day payload")
	}
}
