package analysis

import (
	"encoding/json"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// riskConfidence is the fixed confidence per parsed risk level.
var riskConfidence = map[string]float64{
	"low":      0.25,
	"medium":   0.5,
	"high":     0.75,
	"critical": 0.95,
}

const (
	freeTextConfidence = 0.6
	rawFallbackLen     = 800
)

// parseResponse tolerantly extracts the JSON object from a model response:
// fenced code block markers are stripped, then only the span from the first
// '{' to the last '}' is parsed. Any failure yields an empty map, never an
// error.
func parseResponse(response string) map[string]any {
	text := response
	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return map[string]any{}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return map[string]any{}
	}
	return parsed
}

// isPlaceholder reports whether a free-text value carries no content.
func isPlaceholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n/a", "null":
		return true
	}
	return false
}

// materializePatterns converts one model response into patterns. A valid
// risk_score becomes its own pattern with a mapped confidence; each non-empty
// free-text key becomes one pattern at the fixed free-text confidence. When
// parsing failed entirely but the response still looks JSON-like, a truncated
// raw-text fallback stands in for the summary. Every pattern records the full
// untruncated response and the entity scope for audit.
func materializePatterns(projectID string, entityIDs []string, response, model string) []*models.Pattern {
	parsed := parseResponse(response)
	var patterns []*models.Pattern

	scope := models.EntityIDs(entityIDs)

	if risk, ok := parsed["risk_score"].(string); ok {
		level := strings.ToLower(risk)
		if confidence, known := riskConfidence[level]; known {
			patterns = append(patterns, &models.Pattern{
				ProjectID:        projectID,
				PatternType:      models.PatternRiskScore,
				Description:      level,
				EntitiesInvolved: scope,
				Confidence:       confidence,
				LLMModel:         model,
				RawLLMOutput:     response,
			})
		}
	}

	fallbackSummary := ""
	if len(parsed) == 0 && (strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[")) {
		fallbackSummary = response
		if len(fallbackSummary) > rawFallbackLen {
			fallbackSummary = fallbackSummary[:rawFallbackLen]
		}
	}

	for _, mapping := range []struct {
		patternType string
		key         string
		fallback    string
	}{
		{models.PatternSummary, "summary", fallbackSummary},
		{models.PatternRelationship, "relationships", ""},
		{models.PatternAnomaly, "anomalies", ""},
		{models.PatternLead, "leads", ""},
		{models.PatternRecommendation, "recommendations", ""},
	} {
		description := mapping.fallback
		if val, ok := parsed[mapping.key]; ok {
			if s, isString := val.(string); isString {
				description = s
			}
		}
		description = strings.TrimSpace(description)
		if isPlaceholder(description) {
			continue
		}
		patterns = append(patterns, &models.Pattern{
			ProjectID:        projectID,
			PatternType:      mapping.patternType,
			Description:      description,
			EntitiesInvolved: scope,
			Confidence:       freeTextConfidence,
			LLMModel:         model,
			RawLLMOutput:     response,
		})
	}

	return patterns
}
