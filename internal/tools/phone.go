package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

var nonDigits = regexp.MustCompile(`[^\d]`)

// PhoneInfogaTool queries a PhoneInfoga REST instance for phone intelligence.
type PhoneInfogaTool struct {
	BaseURL string
	Client  *http.Client
}

func (t *PhoneInfogaTool) Name() string      { return "PhoneInfoga" }
func (t *PhoneInfogaTool) Category() string  { return "phone" }
func (t *PhoneInfogaTool) PremiumOnly() bool { return false }

type phoneInfogaResponse struct {
	Success bool           `json:"success"`
	Result  map[string]any `json:"result"`
}

func (t *PhoneInfogaTool) scan(ctx context.Context, number, scanner string) (map[string]any, error) {
	u := fmt.Sprintf("%s/api/numbers/%s/scan/%s", t.BaseURL, number, scanner)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("phoneinfoga %s scan: HTTP %d", scanner, resp.StatusCode)
	}

	var body phoneInfogaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if !body.Success {
		return nil, nil
	}
	return body.Result, nil
}

func (t *PhoneInfogaTool) Run(ctx context.Context, value string) (*Result, error) {
	// PhoneInfoga wants digits only
	number := nonDigits.ReplaceAllString(value, "")
	if number == "" {
		return nil, fmt.Errorf("invalid phone number: %q", value)
	}

	// Scanner failures are tolerated individually; only both failing is an
	// error for the whole adapter.
	local, localErr := t.scan(ctx, number, "local")
	google, googleErr := t.scan(ctx, number, "googlesearch")
	if len(local) == 0 && len(google) == 0 {
		if localErr != nil {
			return nil, fmt.Errorf("both scanners returned no data: %w", localErr)
		}
		if googleErr != nil {
			return nil, fmt.Errorf("both scanners returned no data: %w", googleErr)
		}
		return nil, fmt.Errorf("both scanners returned no data for %s", value)
	}

	country := stringField(local, "country", "Unknown")
	carrier := stringField(local, "carrier", "Unknown")
	lineType := stringField(local, "line_type", "Unknown")

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData:  models.RawData{"local": local, "googlesearch": google},
		Summary:  fmt.Sprintf("Phone: %s %s in %s", carrier, lineType, country),
		Severity: models.SeverityInfo,
		Tags:     models.Tags{"phone", "phoneinfoga"},
	}, nil
}

// NumVerifyTool validates phone numbers using the NumVerify API.
type NumVerifyTool struct {
	APIKey string
	Client *http.Client
}

func (t *NumVerifyTool) Name() string      { return "NumVerify" }
func (t *NumVerifyTool) Category() string  { return "phone" }
func (t *NumVerifyTool) PremiumOnly() bool { return false }

func (t *NumVerifyTool) Run(ctx context.Context, value string) (*Result, error) {
	if t.APIKey == "" {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"skipped": true, "reason": "numverify_api_key not configured"},
			Summary:  "NumVerify key not configured, skipping",
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"phone", "numverify", "skipped"},
		}, nil
	}

	q := url.Values{}
	q.Set("access_key", t.APIKey)
	q.Set("number", value)
	q.Set("format", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://apilayer.net/api/validate?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("numverify lookup failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("numverify returned HTTP %d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("numverify returned invalid JSON: %w", err)
	}

	// API-level errors (invalid key, quota exceeded) come back as 200s
	if apiErr, ok := data["error"]; ok {
		msg := fmt.Sprintf("%v", apiErr)
		if m, ok := apiErr.(map[string]any); ok {
			msg = stringField(m, "info", msg)
		}
		return nil, fmt.Errorf("numverify API error: %s", msg)
	}

	valid, _ := data["valid"].(bool)
	carrier := stringField(data, "carrier", "Unknown")
	lineType := stringField(data, "line_type", "Unknown")
	location := stringField(data, "location", "Unknown")
	countryName := stringField(data, "country_name", "Unknown")

	validStr := "No"
	severity := models.SeverityInfo
	if valid {
		validStr = "Yes"
		severity = models.SeverityLow
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData:  models.RawData(data),
		Summary: fmt.Sprintf("Valid: %s | Carrier: %s | Line Type: %s | Location: %s, %s",
			validStr, carrier, lineType, location, countryName),
		Severity: severity,
		Tags:     models.Tags{"phone", "numverify", "validation", "carrier-lookup"},
	}, nil
}

// stringField reads a string out of loosely typed JSON, treating missing and
// empty values as the fallback.
func stringField(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
