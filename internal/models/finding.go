package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Finding severities, highest priority first. "error" marks synthetic findings
// produced when a tool fails.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
	SeverityError    = "error"
)

// SeverityRank maps a severity to its priority (lower = more important).
// Unknown severities sort after everything known.
var SeverityRank = map[string]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
	SeverityError:    5,
}

// RawData is a tool's schema-less structured payload, stored as JSON.
type RawData map[string]any

// Tags is a free-form tag list, stored as JSON.
type Tags []string

// CrossRefLink annotates a finding with a matching entity discovered in a
// different, non-archived investigation. It is set once at finding creation
// and never mutated; no referential integrity is enforced beyond the lookup
// that produced it.
type CrossRefLink struct {
	EntityID    string `json:"entity_id"`
	EntityType  string `json:"entity_type"`
	EntityValue string `json:"entity_value"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	MatchReason string `json:"match_reason"`
}

// Links is the cross-reference link set attached to a finding, stored as JSON.
type Links []CrossRefLink

// Finding is one tool's structured result for one entity. Immutable once
// created except for Links, which are attached exactly once at creation.
type Finding struct {
	ID           string    `json:"id" db:"id"`
	EntityID     string    `json:"entity_id" db:"entity_id"`
	ToolName     string    `json:"tool_name" db:"tool_name"`
	ToolCategory string    `json:"tool_category" db:"tool_category"`
	RawData      RawData   `json:"raw_data" db:"raw_data"`
	Summary      string    `json:"summary" db:"summary"`
	Severity     string    `json:"severity" db:"severity"`
	Tags         Tags      `json:"tags" db:"tags"`
	Links        Links     `json:"links" db:"links"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FindingBrief is the list-view projection of a finding (no raw payload).
type FindingBrief struct {
	ID           string    `json:"id" db:"id"`
	EntityID     string    `json:"entity_id" db:"entity_id"`
	ToolName     string    `json:"tool_name" db:"tool_name"`
	ToolCategory string    `json:"tool_category" db:"tool_category"`
	Summary      string    `json:"summary" db:"summary"`
	Severity     string    `json:"severity" db:"severity"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// JSON column plumbing for sqlx. NULL scans to a nil value.

func (d RawData) Value() (driver.Value, error) { return jsonValue(d) }
func (d *RawData) Scan(src any) error          { return jsonScan(src, d) }

func (t Tags) Value() (driver.Value, error) { return jsonValue(t) }
func (t *Tags) Scan(src any) error          { return jsonScan(src, t) }

func (l Links) Value() (driver.Value, error) { return jsonValue(l) }
func (l *Links) Scan(src any) error          { return jsonScan(src, l) }

func jsonValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(src, dst any) error {
	if src == nil {
		return nil
	}
	switch s := src.(type) {
	case []byte:
		return json.Unmarshal(s, dst)
	case string:
		return json.Unmarshal([]byte(s), dst)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
}
