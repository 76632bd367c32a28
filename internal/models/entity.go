package models

import "time"

// Entity types form a closed set. An unmapped type dispatches to zero tools
// rather than failing.
const (
	EntityTypePhone    = "phone"
	EntityTypeEmail    = "email"
	EntityTypeUsername = "username"
	EntityTypeDomain   = "domain"
	EntityTypeIP       = "ip"
	EntityTypeName     = "name"
	EntityTypeSocial   = "social"
	EntityTypeFile     = "file"
)

// EntityTypes lists every valid entity type, in display order.
var EntityTypes = []string{
	EntityTypePhone,
	EntityTypeEmail,
	EntityTypeUsername,
	EntityTypeDomain,
	EntityTypeIP,
	EntityTypeName,
	EntityTypeSocial,
	EntityTypeFile,
}

// Entity run statuses. Transitions are owned exclusively by the run
// orchestrator: pending → running → {complete | failed}. A complete entity
// returns to pending only via an explicit re-run, which clears its findings
// first.
const (
	EntityStatusPending  = "pending"
	EntityStatusRunning  = "running"
	EntityStatusComplete = "complete"
	EntityStatusFailed   = "failed"
)

// Entity is a typed identifier under investigation (phone, email, username,
// domain, IP, name, social handle, file).
type Entity struct {
	ID         string    `json:"id" db:"id"`
	ProjectID  string    `json:"project_id" db:"project_id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	Value      string    `json:"value" db:"value"`
	Label      string    `json:"label" db:"label"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EntityMatch is a cross-reference query hit: an entity joined with the
// project that owns it.
type EntityMatch struct {
	Entity
	ProjectName string `json:"project_name" db:"project_name"`
}
