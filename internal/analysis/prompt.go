package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// Evidence bounds keep the rendered prompt inside the model's context
// window. Ordering matters more than the exact constants.
const (
	maxEntities          = 8
	maxFindingsPerEntity = 2
	maxFindingsTotal     = 15
	rawSnippetLen        = 150

	maxIntraTokensPerPair = 3
	maxIntraLines         = 20
	maxCrossRefLines      = 10
)

// freemailDomains are too common to count as a shared-infrastructure signal.
var freemailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
}

func severityRank(severity string) int {
	if rank, ok := models.SeverityRank[severity]; ok {
		return rank
	}
	return 9
}

// selectEvidence ranks all findings by severity (stable within one rank),
// takes the top maxFindingsTotal, and the first maxEntities entities in the
// order they first appear in the ranked findings.
func selectEvidence(entities []*models.Entity, findings []*models.Finding) ([]*models.Entity, []*models.Finding) {
	ranked := make([]*models.Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return severityRank(ranked[i].Severity) < severityRank(ranked[j].Severity)
	})

	top := ranked
	if len(top) > maxFindingsTotal {
		top = top[:maxFindingsTotal]
	}

	byID := make(map[string]*models.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	var selected []*models.Entity
	seen := map[string]bool{}
	for _, f := range top {
		if seen[f.EntityID] {
			continue
		}
		seen[f.EntityID] = true
		if e, ok := byID[f.EntityID]; ok {
			selected = append(selected, e)
			if len(selected) == maxEntities {
				break
			}
		}
	}

	return selected, top
}

// buildPrompt renders the full analysis prompt: ranked evidence, intra-
// investigation connection hints, and cross-investigation references. Output
// is deterministic for identical input.
func buildPrompt(entities []*models.Entity, findings []*models.Finding) string {
	selected, top := selectEvidence(entities, findings)

	var targets []string
	for _, e := range selected {
		targets = append(targets, fmt.Sprintf("%s: %s", e.EntityType, e.Value))
	}
	targetsStr := strings.Join(targets, ", ")
	if targetsStr == "" {
		targetsStr = "multiple targets"
	}
	if len(entities) > maxEntities {
		targetsStr += fmt.Sprintf(" (+ %d more entities, showing top %d by finding severity)",
			len(entities)-maxEntities, maxEntities)
	}

	var sections []string
	for _, entity := range selected {
		var lines []string
		count := 0
		for _, f := range top {
			if f.EntityID != entity.ID {
				continue
			}
			count++
			if count > maxFindingsPerEntity {
				break
			}
			snippet := "N/A"
			if f.RawData != nil {
				if b, err := json.Marshal(f.RawData); err == nil {
					snippet = string(b)
					if len(snippet) > rawSnippetLen {
						snippet = snippet[:rawSnippetLen]
					}
				}
			}
			summary := f.Summary
			if summary == "" {
				summary = "N/A"
			}
			lines = append(lines, fmt.Sprintf(
				"  - Tool: %s | Severity: %s\n    Summary: %s\n    Data: %s",
				f.ToolName, f.Severity, summary, snippet))
		}
		if len(lines) == 0 {
			continue
		}
		label := entity.Label
		if label == "" {
			label = "N/A"
		}
		sections = append(sections, fmt.Sprintf("Entity: %s = %s (label: %s)\n%s",
			entity.EntityType, entity.Value, label, strings.Join(lines, "\n")))
	}

	scopeNote := fmt.Sprintf("(%d total findings)", len(findings))
	if len(findings) > len(top) {
		scopeNote = fmt.Sprintf("(Showing top %d of %d total findings by severity)", len(top), len(findings))
	}

	intraSection := buildIntraLinks(entities, findings)
	crossRefSection := buildCrossRefSection(findings)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a senior OSINT intelligence analyst. Analyze these OSINT findings for targets [%s]. %s\n\n", targetsStr, scopeNote)
	b.WriteString("Detect patterns, risks, connections between targets, and threat indicators. " +
		"Pay close attention to shared data (same phone in multiple tools, " +
		"same email in WHOIS and breach data, shared addresses, etc.).\n\n")
	b.WriteString("Respond with ONLY a JSON object containing exactly these keys:\n" +
		"{\n" +
		"  \"risk_score\": \"low\"|\"medium\"|\"high\"|\"critical\",\n" +
		"  \"summary\": \"detailed paragraph summarizing all findings and how targets connect\",\n" +
		"  \"relationships\": \"specific connections found between targets: shared data, overlapping identifiers, common associations\",\n" +
		"  \"anomalies\": \"suspicious patterns, inconsistencies, or red flags\",\n" +
		"  \"leads\": \"recommended next investigation steps based on the connections found\",\n" +
		"  \"recommendations\": \"actionable security or investigative recommendations\"\n" +
		"}\n\n")
	b.WriteString("Be specific. Reference actual values from the data. Do not fabricate.\n\n")
	b.WriteString("=== INTELLIGENCE DATA ===\n\n")
	b.WriteString(strings.Join(sections, "\n\n"))
	b.WriteString("\n\n=== END DATA ===")
	if intraSection != "" {
		fmt.Fprintf(&b, "\n\n=== CONNECTIONS WITHIN THIS INVESTIGATION ===\n%s\n=== END CONNECTIONS ===", intraSection)
	}
	if crossRefSection != "" {
		fmt.Fprintf(&b, "\n\n=== CROSS-REFERENCES (other investigations) ===\n%s\n=== END CROSS-REFERENCES ===", crossRefSection)
	}
	b.WriteString("\n\nRespond with ONLY the JSON object. No markdown, no explanation.")
	return b.String()
}

// extractTokens mines one entity's findings into normalized correlation
// tokens: emails, org/isp names, phone area codes, geo country codes, and
// non-freemail email domains.
func extractTokens(entity *models.Entity, findings []*models.Finding) map[string]bool {
	tokens := map[string]bool{}

	for _, f := range findings {
		if f.EntityID != entity.ID || f.RawData == nil {
			continue
		}
		raw := f.RawData

		for _, key := range []string{"emails", "email"} {
			switch val := raw[key].(type) {
			case string:
				if strings.Contains(val, "@") {
					tokens[strings.ToLower(val)] = true
				}
			case []any:
				for _, item := range val {
					if s, ok := item.(string); ok && strings.Contains(s, "@") {
						tokens[strings.ToLower(s)] = true
					}
				}
			case []string:
				for _, s := range val {
					if strings.Contains(s, "@") {
						tokens[strings.ToLower(s)] = true
					}
				}
			}
		}

		for _, key := range []string{"org", "name", "registrar"} {
			if val, ok := raw[key].(string); ok && len(val) > 3 && len(val) < 80 {
				tokens["org:"+strings.ToLower(val)] = true
			}
		}
		for _, key := range []string{"isp", "asname"} {
			if val, ok := raw[key].(string); ok && len(val) > 3 && len(val) < 80 {
				tokens["isp:"+strings.ToLower(val)] = true
			}
		}

		if cc, ok := raw["country_code"].(string); ok && len(cc) == 2 {
			tokens["country:"+strings.ToLower(cc)] = true
		}
	}

	// Derivations from the entity value itself
	if entity.EntityType == models.EntityTypePhone {
		phone := strings.NewReplacer("+", "", " ", "").Replace(entity.Value)
		if len(phone) >= 10 {
			area := phone[:3]
			if strings.HasPrefix(phone, "1") {
				area = phone[1:4]
			}
			tokens["areacode:"+area] = true
		}
	}
	if entity.EntityType == models.EntityTypeEmail {
		if _, domain, found := strings.Cut(entity.Value, "@"); found {
			domain = strings.ToLower(domain)
			if !freemailDomains[domain] {
				tokens["domain:"+domain] = true
			}
		}
	}

	return tokens
}

// buildIntraLinks reports pairs of in-investigation entities that share
// correlation tokens, capped per pair and overall.
func buildIntraLinks(entities []*models.Entity, findings []*models.Finding) string {
	tokens := make([]map[string]bool, len(entities))
	for i, e := range entities {
		// The entity-derived tokens only matter when the entity has at
		// least one finding mined alongside them
		tokens[i] = extractTokens(e, findings)
	}

	var connections []string
	for i := range entities {
		for j := i + 1; j < len(entities); j++ {
			var shared []string
			for token := range tokens[i] {
				if tokens[j][token] {
					shared = append(shared, token)
				}
			}
			if len(shared) == 0 {
				continue
			}
			sort.Strings(shared)
			if len(shared) > maxIntraTokensPerPair {
				shared = shared[:maxIntraTokensPerPair]
			}
			for _, token := range shared {
				kind, label, found := strings.Cut(token, ":")
				if !found {
					kind, label = "value", token
				}
				connections = append(connections, fmt.Sprintf(
					"  - [%s: %s] <-> [%s: %s] share %s '%s'",
					entities[i].EntityType, entities[i].Value,
					entities[j].EntityType, entities[j].Value,
					kind, label))
			}
		}
	}

	if len(connections) == 0 {
		return ""
	}

	header := fmt.Sprintf("Found %d internal connection(s) between targets in this investigation:", len(connections))
	if len(connections) > maxIntraLines {
		connections = connections[:maxIntraLines]
	}
	return header + "\n" + strings.Join(connections, "\n")
}

// buildCrossRefSection summarizes the distinct cross-investigation links
// already attached to this investigation's findings.
func buildCrossRefSection(findings []*models.Finding) string {
	seen := map[string]bool{}
	var links []models.CrossRefLink
	for _, f := range findings {
		for _, link := range f.Links {
			if link.EntityID == "" || seen[link.EntityID] {
				continue
			}
			seen[link.EntityID] = true
			links = append(links, link)
		}
	}
	if len(links) == 0 {
		return ""
	}

	lines := []string{
		fmt.Sprintf("This investigation has %d cross-reference(s) to other investigations:", len(links)),
	}
	shown := links
	if len(shown) > maxCrossRefLines {
		shown = shown[:maxCrossRefLines]
	}
	for _, link := range shown {
		reason := link.MatchReason
		if reason == "" {
			reason = "value match"
		}
		lines = append(lines, fmt.Sprintf("  - %s '%s' also appears in project '%s' (%s)",
			link.EntityType, link.EntityValue, link.ProjectName, reason))
	}
	if len(links) > maxCrossRefLines {
		lines = append(lines, fmt.Sprintf("  ... and %d more cross-reference(s).", len(links)-maxCrossRefLines))
	}
	lines = append(lines,
		"Factor these cross-references into your analysis. "+
			"If the same entity appears in multiple investigations, this may indicate "+
			"a pattern, shared infrastructure, or a recurring threat actor.")
	return strings.Join(lines, "\n")
}
