package models

import "time"

// Project statuses. Deleting a project archives it; archived projects are
// excluded from listings and from cross-reference matching.
const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

// Project is an investigation: the top-level grouping of entities being
// researched together.
type Project struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	TargetSummary string    `json:"target_summary" db:"target_summary"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectListItem extends Project with entity and pattern counts for list views.
type ProjectListItem struct {
	Project
	EntityCount  int `json:"entity_count" db:"entity_count"`
	PatternCount int `json:"pattern_count" db:"pattern_count"`
}

// ProjectSummary is the aggregate view returned by GET /projects/{id}/summary.
type ProjectSummary struct {
	ProjectID   string               `json:"project_id"`
	ProjectName string               `json:"project_name"`
	Summary     string               `json:"summary"`
	Statistics  ProjectSummaryCounts `json:"statistics"`
}

// ProjectSummaryCounts holds the numeric breakdowns for ProjectSummary.
type ProjectSummaryCounts struct {
	TotalEntities       int            `json:"total_entities"`
	TotalFindings       int            `json:"total_findings"`
	TotalPatterns       int            `json:"total_patterns"`
	SeverityBreakdown   map[string]int `json:"severity_breakdown"`
	EntityTypeBreakdown map[string]int `json:"entity_type_breakdown"`
}

// ProjectReport is the full export of one investigation: the project, every
// entity with its findings and links, and all generated patterns.
type ProjectReport struct {
	Project  Project              `json:"project"`
	Entities []EntityReport       `json:"entities"`
	Patterns []*Pattern           `json:"patterns"`
	Summary  ProjectReportSummary `json:"summary"`
}

// EntityReport is one entity with its findings inlined for report export.
type EntityReport struct {
	Entity
	Findings []*Finding `json:"findings"`
}

// ProjectReportSummary carries report-level totals.
type ProjectReportSummary struct {
	TotalEntities int `json:"total_entities"`
	TotalFindings int `json:"total_findings"`
	TotalPatterns int `json:"total_patterns"`
	TotalLinks    int `json:"total_links"`
}
