package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"sort"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// HoleheTool checks email registration across platforms by shelling out to
// the holehe CLI.
type HoleheTool struct{}

func (t *HoleheTool) Name() string      { return "Holehe" }
func (t *HoleheTool) Category() string  { return "email" }
func (t *HoleheTool) PremiumOnly() bool { return false }

func (t *HoleheTool) Run(ctx context.Context, value string) (*Result, error) {
	cmd := exec.CommandContext(ctx, "holehe", value, "--only-used", "--no-color")
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("holehe scan timed out: %w", ctx.Err())
		}
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("holehe not installed: %w", err)
		}
		// Non-zero exit still produces usable stdout
	}

	var found []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[+]") {
			continue
		}
		platform := strings.TrimSpace(strings.TrimPrefix(line, "[+]"))
		// Skip footer lines like "Email used, [-] Email not used..."
		if platform == "" || strings.Contains(platform, "Email") || strings.Contains(platform, "http") {
			continue
		}
		found = append(found, platform)
	}

	severity := models.SeverityInfo
	if len(found) > 0 {
		severity = models.SeverityMedium
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData:  models.RawData{"found_on": found, "count": len(found)},
		Summary:  fmt.Sprintf("Email found on %d platforms", len(found)),
		Severity: severity,
		Tags:     models.Tags{"email", "accounts", "holehe"},
	}, nil
}

// HIBPTool checks an email against Have I Been Pwned breach data.
type HIBPTool struct {
	APIKey string
	Client *http.Client
}

func (t *HIBPTool) Name() string      { return "HaveIBeenPwned" }
func (t *HIBPTool) Category() string  { return "email" }
func (t *HIBPTool) PremiumOnly() bool { return true }

func (t *HIBPTool) Run(ctx context.Context, value string) (*Result, error) {
	if t.APIKey == "" {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"skipped": true, "reason": "hibp_api_key not configured"},
			Summary:  "HIBP skipped: API key not configured",
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"email", "skipped"},
		}, nil
	}

	u := "https://haveibeenpwned.com/api/v3/breachedaccount/" + value + "?truncateResponse=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hibp-api-key", t.APIKey)
	req.Header.Set("user-agent", "Valkyrie-OSINT")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HIBP lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"breaches": []any{}, "email": value},
			Summary:  fmt.Sprintf("No breaches found for %s", value),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"email", "hibp", "clean"},
		}, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("HIBP: invalid API key")
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("HIBP returned status %d", resp.StatusCode)
	}

	var breaches []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&breaches); err != nil {
		return nil, fmt.Errorf("HIBP returned invalid JSON: %w", err)
	}

	var names []string
	var totalRecords float64
	classes := map[string]bool{}
	for _, b := range breaches {
		names = append(names, stringField(b, "Name", "Unknown"))
		if n, ok := b["PwnCount"].(float64); ok {
			totalRecords += n
		}
		if dc, ok := b["DataClasses"].([]any); ok {
			for _, c := range dc {
				if s, ok := c.(string); ok {
					classes[s] = true
				}
			}
		}
	}
	sortedClasses := make([]string, 0, len(classes))
	for c := range classes {
		sortedClasses = append(sortedClasses, c)
	}
	sort.Strings(sortedClasses)

	severity := models.SeverityInfo
	switch {
	case len(breaches) > 5:
		severity = models.SeverityHigh
	case len(breaches) > 0:
		severity = models.SeverityMedium
	}

	shown := names
	if len(shown) > 5 {
		shown = shown[:5]
	}
	summary := fmt.Sprintf("HIBP: %s found in %d breach(es): %s", value, len(breaches), strings.Join(shown, ", "))
	if len(names) > 5 {
		summary += fmt.Sprintf(" (+%d more)", len(names)-5)
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"email":                 value,
			"breach_count":          len(breaches),
			"breach_names":          names,
			"total_records_exposed": totalRecords,
			"data_classes":          sortedClasses,
			"breaches":              breaches,
		},
		Summary:  summary,
		Severity: severity,
		Tags:     models.Tags{"email", "hibp", "breach"},
	}, nil
}

// EmailRepTool pulls reputation, breach flags, and social profiles from
// emailrep.io.
type EmailRepTool struct {
	Client *http.Client
}

func (t *EmailRepTool) Name() string      { return "EmailRep" }
func (t *EmailRepTool) Category() string  { return "email" }
func (t *EmailRepTool) PremiumOnly() bool { return true }

func (t *EmailRepTool) Run(ctx context.Context, value string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://emailrep.io/"+value, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Valkyrie-OSINT/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("emailrep lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"error": "rate limited by emailrep.io"},
			Summary:  "EmailRep: daily rate limit reached",
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"email", "reputation", "rate-limited"},
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, fmt.Errorf("emailrep returned status %d: %s", resp.StatusCode, body)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("emailrep returned invalid JSON: %w", err)
	}
	details, _ := data["details"].(map[string]any)

	reputation := stringField(data, "reputation", "unknown")
	suspicious, _ := data["suspicious"].(bool)
	references, _ := data["references"].(float64)
	blacklisted, _ := details["blacklisted"].(bool)
	maliciousActivity, _ := details["malicious_activity"].(bool)
	credentialsLeaked, _ := details["credentials_leaked"].(bool)
	dataBreach, _ := details["data_breach"].(bool)
	disposable, _ := details["disposable"].(bool)
	spam, _ := details["spam"].(bool)
	lastSeen := stringField(details, "last_seen", "never")

	var profiles []string
	if p, ok := details["profiles"].([]any); ok {
		for _, v := range p {
			if s, ok := v.(string); ok {
				profiles = append(profiles, s)
			}
		}
	}

	tags := models.Tags{"email", "reputation", "emailrep"}
	if suspicious {
		tags = append(tags, "suspicious")
	}
	if blacklisted {
		tags = append(tags, "blacklisted")
	}
	if maliciousActivity {
		tags = append(tags, "malicious-activity")
	}
	if credentialsLeaked {
		tags = append(tags, "credentials-leaked")
	}
	if dataBreach {
		tags = append(tags, "data-breach")
	}
	if disposable {
		tags = append(tags, "disposable")
	}
	if spam {
		tags = append(tags, "spam")
	}

	severity := models.SeverityInfo
	switch {
	case maliciousActivity || blacklisted:
		severity = models.SeverityHigh
	case suspicious || credentialsLeaked || dataBreach:
		severity = models.SeverityMedium
	case reputation == "low" || reputation == "none":
		severity = models.SeverityMedium
	}

	var notes []string
	if dataBreach {
		notes = append(notes, "data breach detected")
	}
	if credentialsLeaked {
		notes = append(notes, "credentials leaked")
	}
	if maliciousActivity {
		notes = append(notes, "malicious activity")
	}
	if spam {
		notes = append(notes, "spam activity")
	}

	state := "clean"
	if suspicious {
		state = "suspicious"
	}
	summary := fmt.Sprintf("EmailRep: %s reputation, %s, %d web references, last seen %s",
		reputation, state, int(references), lastSeen)
	if len(notes) > 0 {
		summary += " | Alerts: " + strings.Join(notes, ", ")
	}
	if len(profiles) > 0 {
		shown := profiles
		if len(shown) > 5 {
			shown = shown[:5]
		}
		summary += " | Profiles: " + strings.Join(shown, ", ")
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"email":              value,
			"reputation":         reputation,
			"suspicious":         suspicious,
			"references":         references,
			"blacklisted":        blacklisted,
			"malicious_activity": maliciousActivity,
			"credentials_leaked": credentialsLeaked,
			"data_breach":        dataBreach,
			"last_seen":          lastSeen,
			"profiles":           profiles,
			"disposable":         disposable,
			"spam":               spam,
		},
		Summary:  summary,
		Severity: severity,
		Tags:     tags,
	}, nil
}
