// Package validate provides input validation for API path and body parameters.
package validate

// Length bounds mirror the storage schema.
const (
	EntityValueMaxLen  = 500
	EntityLabelMaxLen  = 255
	ProjectNameMaxLen  = 255
	PasswordMinLen     = 6
	IDMaxLen           = 64
)

var entityTypes = map[string]bool{
	"phone": true, "email": true, "username": true, "domain": true,
	"ip": true, "name": true, "social": true, "file": true,
}

// EntityType reports whether t is one of the closed entity type set.
func EntityType(t string) bool {
	return entityTypes[t]
}

// EntityValue validates an entity value: non-empty, bounded length.
func EntityValue(v string) bool {
	return v != "" && len(v) <= EntityValueMaxLen
}

// ProjectName validates a project name: non-empty, bounded length.
func ProjectName(n string) bool {
	return n != "" && len(n) <= ProjectNameMaxLen
}

// ID validates a path id: UUID-shaped charset, bounded length. Rejects path
// traversal and injection characters without being strict about UUID format.
func ID(id string) bool {
	if id == "" || len(id) > IDMaxLen {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}
