package osint

import (
	"context"
	"testing"
	"time"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
	"github.com/valkyrieosint/valkyrie-backend/internal/tools"
	"github.com/valkyrieosint/valkyrie-backend/migrations"
)

func setupTestRepo(t *testing.T) (*repository.SQLiteRepository, *repository.Repository) {
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
	return sqlite, &repository.Repository{
		User:    sqlite,
		Project: sqlite,
		Entity:  sqlite,
		Finding: sqlite,
		Pattern: sqlite,
		Stats:   sqlite,
	}
}

func createProject(t *testing.T, repo *repository.Repository, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name}
	if err := repo.Project.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}
	return p
}

func createEntity(t *testing.T, repo *repository.Repository, projectID, entityType, value string) *models.Entity {
	t.Helper()
	e := &models.Entity{ProjectID: projectID, EntityType: entityType, Value: value}
	if err := repo.Entity.CreateEntity(context.Background(), e); err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	return e
}

func TestDetectForEntity_PrimaryValueMatch(t *testing.T) {
	_, repo := setupTestRepo(t)
	detector := NewCrossRefDetector(repo.Entity, testLogger())

	pA := createProject(t, repo, "Alpha")
	pB := createProject(t, repo, "Bravo")
	createEntity(t, repo, pA.ID, models.EntityTypeEmail, "Shared@Example.com")
	subject := createEntity(t, repo, pB.ID, models.EntityTypeEmail, "shared@example.com")

	links := detector.DetectForEntity(context.Background(), subject, nil)
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}
	if links[0].ProjectName != "Alpha" {
		t.Errorf("Expected link into Alpha, got %s", links[0].ProjectName)
	}
	if links[0].MatchReason != "Shared email" {
		t.Errorf("Unexpected match reason: %s", links[0].MatchReason)
	}
}

func TestDetectForEntity_MinedEmailFromFindings(t *testing.T) {
	_, repo := setupTestRepo(t)
	detector := NewCrossRefDetector(repo.Entity, testLogger())

	pA := createProject(t, repo, "Alpha")
	pB := createProject(t, repo, "Bravo")
	createEntity(t, repo, pA.ID, models.EntityTypeEmail, "admin@target.org")
	subject := createEntity(t, repo, pB.ID, models.EntityTypeDomain, "target.org")

	batch := []*tools.Result{{
		ToolName: "WHOIS",
		RawData:  models.RawData{"emails": []any{"admin@target.org"}},
	}}

	links := detector.DetectForEntity(context.Background(), subject, batch)
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}
	if links[0].EntityType != models.EntityTypeEmail {
		t.Errorf("Expected email link, got %s", links[0].EntityType)
	}
	if links[0].MatchReason != "Email from WHOIS WHOIS data" {
		t.Errorf("Unexpected match reason: %s", links[0].MatchReason)
	}
}

func TestDetectForEntity_DedupsMatchedEntityAcrossCandidates(t *testing.T) {
	_, repo := setupTestRepo(t)
	detector := NewCrossRefDetector(repo.Entity, testLogger())

	pA := createProject(t, repo, "Alpha")
	pB := createProject(t, repo, "Bravo")
	// One entity in Alpha reachable through the same identifier surfacing in
	// two different tools' output
	createEntity(t, repo, pA.ID, models.EntityTypeEmail, "admin@target.org")
	subject := createEntity(t, repo, pB.ID, models.EntityTypeDomain, "target.org")

	batch := []*tools.Result{
		{ToolName: "WHOIS", RawData: models.RawData{"emails": []any{"admin@target.org"}}},
		{ToolName: "DomainRep", RawData: models.RawData{"emails": []any{"Admin@Target.org"}}},
	}

	links := detector.DetectForEntity(context.Background(), subject, batch)
	if len(links) != 1 {
		t.Fatalf("Expected 1 deduplicated link, got %d", len(links))
	}
	// First candidate to discover the entity wins the reason
	if links[0].MatchReason != "Email from WHOIS WHOIS data" {
		t.Errorf("Expected first-candidate reason, got %s", links[0].MatchReason)
	}
}

func TestDetectForEntity_NeverMatchesOwnProject(t *testing.T) {
	_, repo := setupTestRepo(t)
	detector := NewCrossRefDetector(repo.Entity, testLogger())

	p := createProject(t, repo, "Solo")
	createEntity(t, repo, p.ID, models.EntityTypeEmail, "twin@example.com")
	subject := createEntity(t, repo, p.ID, models.EntityTypeEmail, "twin@example.com")

	links := detector.DetectForEntity(context.Background(), subject, nil)
	if len(links) != 0 {
		t.Errorf("Expected no links within own project, got %d", len(links))
	}
}

func TestBuildCandidates_FirstReasonWins(t *testing.T) {
	entity := &models.Entity{EntityType: models.EntityTypeDomain, Value: "target.org"}
	batch := []*tools.Result{
		{ToolName: "WHOIS", RawData: models.RawData{"emails": []any{"ops@target.org"}}},
		{ToolName: "DomainRep", RawData: models.RawData{"emails": []any{"OPS@TARGET.ORG"}}},
	}

	candidates := buildCandidates(entity, batch)
	emailCount := 0
	for _, c := range candidates {
		if c.EntityType == models.EntityTypeEmail {
			emailCount++
			if c.Reason != "Email from WHOIS WHOIS data" {
				t.Errorf("Expected first reason to win, got %s", c.Reason)
			}
		}
	}
	if emailCount != 1 {
		t.Errorf("Expected 1 deduplicated email candidate, got %d", emailCount)
	}
}

func TestBuildCandidates_Heuristics(t *testing.T) {
	entity := &models.Entity{EntityType: models.EntityTypeDomain, Value: "target.org"}
	batch := []*tools.Result{
		{ToolName: "WHOIS", RawData: models.RawData{
			"org":   "Target Industries",
			"query": "198.51.100.1",
		}},
		{ToolName: "VirusTotal", RawData: models.RawData{"resource": "cdn.target.org"}},
		{ToolName: "EmailRep", RawData: models.RawData{"profiles": []any{"targetceo"}}},
	}

	candidates := buildCandidates(entity, batch)

	types := map[string]string{}
	for _, c := range candidates {
		types[c.EntityType+"|"+c.Value] = c.Reason
	}

	for _, key := range []string{
		"domain|target.org",
		"name|Target Industries",
		"ip|198.51.100.1",
		"domain|cdn.target.org",
		"username|targetceo",
	} {
		if _, ok := types[key]; !ok {
			t.Errorf("Expected candidate %s, got %v", key, types)
		}
	}
}

func TestBuildCandidates_ResourceEqualToOwnValueSkipped(t *testing.T) {
	entity := &models.Entity{EntityType: models.EntityTypeDomain, Value: "target.org"}
	batch := []*tools.Result{
		{ToolName: "VirusTotal", RawData: models.RawData{"resource": "target.org"}},
	}

	candidates := buildCandidates(entity, batch)
	if len(candidates) != 1 {
		t.Errorf("Expected only the primary candidate, got %d", len(candidates))
	}
}

func TestDetectForEntity_ArchivedProjectDropsOutAfterCacheExpiry(t *testing.T) {
	_, repo := setupTestRepo(t)
	detector := newCrossRefDetector(repo.Entity, testLogger(), 20*time.Millisecond)

	other := createProject(t, repo, "Other")
	mine := createProject(t, repo, "Mine")
	createEntity(t, repo, other.ID, models.EntityTypeEmail, "shared@example.com")
	subject := createEntity(t, repo, mine.ID, models.EntityTypeEmail, "shared@example.com")

	links := detector.DetectForEntity(context.Background(), subject, nil)
	if len(links) != 1 {
		t.Fatalf("Expected 1 link before archival, got %d", len(links))
	}

	if err := repo.Project.ArchiveProject(context.Background(), other.ID); err != nil {
		t.Fatalf("Failed to archive project: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	links = detector.DetectForEntity(context.Background(), subject, nil)
	if len(links) != 0 {
		t.Errorf("Expected no links into archived project, got %d", len(links))
	}
}

func TestDetectForEntity_NewEntitySeenAfterCacheExpiry(t *testing.T) {
	_, repo := setupTestRepo(t)
	detector := newCrossRefDetector(repo.Entity, testLogger(), 20*time.Millisecond)

	mine := createProject(t, repo, "Mine")
	subject := createEntity(t, repo, mine.ID, models.EntityTypeEmail, "late@example.com")

	if links := detector.DetectForEntity(context.Background(), subject, nil); len(links) != 0 {
		t.Fatalf("Expected no links yet, got %d", len(links))
	}

	other := createProject(t, repo, "Other")
	createEntity(t, repo, other.ID, models.EntityTypeEmail, "late@example.com")
	time.Sleep(50 * time.Millisecond)

	links := detector.DetectForEntity(context.Background(), subject, nil)
	if len(links) != 1 {
		t.Fatalf("Expected 1 link after the entity appeared, got %d", len(links))
	}
	if links[0].ProjectName != "Other" {
		t.Errorf("Expected link into Other, got %s", links[0].ProjectName)
	}
}
