package models

import (
	"database/sql/driver"
	"time"
)

// Pattern types produced by the analysis engine.
const (
	PatternRiskScore      = "risk_score"
	PatternSummary        = "summary"
	PatternRelationship   = "relationship"
	PatternAnomaly        = "anomaly"
	PatternLead           = "lead"
	PatternRecommendation = "recommendation"
)

// EntityIDs is the list of entity ids in analysis scope, stored as JSON.
type EntityIDs []string

func (e EntityIDs) Value() (driver.Value, error) { return jsonValue(e) }
func (e *EntityIDs) Scan(src any) error          { return jsonScan(src, e) }

// Pattern is a derived, investigation-scoped insight produced by the analysis
// engine. Patterns for a project are wholly replaced on every analysis run,
// never incrementally merged.
type Pattern struct {
	ID               string    `json:"id" db:"id"`
	ProjectID        string    `json:"project_id" db:"project_id"`
	PatternType      string    `json:"pattern_type" db:"pattern_type"`
	Description      string    `json:"description" db:"description"`
	EntitiesInvolved EntityIDs `json:"entities_involved" db:"entities_involved"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	LLMModel         string    `json:"llm_model" db:"llm_model"`
	RawLLMOutput     string    `json:"raw_llm_output" db:"raw_llm_output"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
