package osint

import (
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/tools"
)

// candidate is one (type, value, reason) triple to search for across other
// investigations.
type candidate struct {
	EntityType string
	Value      string
	Reason     string
}

// buildCandidates mines the entity and its fresh finding batch for
// identifiers worth cross-referencing. Candidates are deduplicated by
// (type, lowercased value); the first reason to claim a key wins. The
// heuristics read raw payloads by field name only, independent of which
// adapter produced them.
func buildCandidates(entity *models.Entity, batch []*tools.Result) []candidate {
	var ordered []candidate
	seen := map[[2]string]bool{}

	add := func(entityType, value, reason string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		key := [2]string{entityType, strings.ToLower(value)}
		if seen[key] {
			return
		}
		seen[key] = true
		ordered = append(ordered, candidate{EntityType: entityType, Value: value, Reason: reason})
	}

	// Primary: the entity itself
	add(entity.EntityType, entity.Value, "Shared "+entity.EntityType)

	for _, result := range batch {
		raw := result.RawData
		if raw == nil {
			continue
		}
		tool := result.ToolName

		// Email-like strings in emails fields (WHOIS registrant contacts)
		for _, email := range stringsFromField(raw["emails"]) {
			if strings.Contains(email, "@") && len(email) < 255 {
				add(models.EntityTypeEmail, email, "Email from "+tool+" WHOIS data")
			}
		}

		// Organization / registrant names, length-bounded to avoid noise
		for _, key := range []string{"org", "name"} {
			if val, ok := raw[key].(string); ok && len(val) > 3 && len(val) < 120 {
				add(models.EntityTypeName, val, "Org/name from "+tool+" WHOIS data")
			}
		}

		// A queried IP differing from the entity's own value
		if val, ok := raw["query"].(string); ok && val != entity.Value {
			add(models.EntityTypeIP, val, "IP from "+tool)
		}

		// A scanned resource that looks like a domain
		if val, ok := raw["resource"].(string); ok && strings.Contains(val, ".") && val != entity.Value {
			add(models.EntityTypeDomain, val, "Domain from "+tool)
		}

		// Social handles from reputation profiles
		for _, profile := range stringsFromField(raw["profiles"]) {
			if len(profile) < 100 {
				add(models.EntityTypeUsername, profile, "Profile from "+tool+" EmailRep")
			}
		}
	}

	return ordered
}

// stringsFromField flattens a schema-less JSON field into its string values:
// a bare string, a []string, or a []any of strings all normalize to a slice.
func stringsFromField(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
