package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// namePlatforms are the public profile URL templates probed per username
// variant.
var namePlatforms = []struct {
	Name string
	URL  string
}{
	{"GitHub", "https://github.com/%s"},
	{"Twitter/X", "https://x.com/%s"},
	{"Instagram", "https://www.instagram.com/%s/"},
	{"Reddit", "https://www.reddit.com/user/%s"},
	{"TikTok", "https://www.tiktok.com/@%s"},
	{"Pinterest", "https://www.pinterest.com/%s/"},
	{"Tumblr", "https://%s.tumblr.com/"},
	{"Medium", "https://medium.com/@%s"},
}

// nameVariants generates probable username variants from a full name,
// deduplicated in order.
func nameVariants(fullName string) []string {
	cleaned := strings.ToLower(fullName)
	for _, sep := range []string{"-", "_", "."} {
		cleaned = strings.ReplaceAll(cleaned, sep, " ")
	}
	parts := strings.Fields(cleaned)

	var variants []string
	switch {
	case len(parts) >= 2:
		first, last := parts[0], parts[len(parts)-1]
		variants = []string{
			first + last,
			first + "." + last,
			first + "_" + last,
			first[:1] + last,
			last + first,
			first + last[:1],
		}
	case len(parts) == 1:
		variants = []string{parts[0]}
	}

	seen := map[string]bool{}
	out := variants[:0]
	for _, v := range variants {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// NameOSINTTool probes social platforms for profiles derived from a full
// name's likely username variants.
type NameOSINTTool struct {
	Client    *http.Client
	Platforms []struct {
		Name string
		URL  string
	} // override for tests; nil = default platform set
}

func (t *NameOSINTTool) Name() string      { return "NameOSINT" }
func (t *NameOSINTTool) Category() string  { return "name" }
func (t *NameOSINTTool) PremiumOnly() bool { return true }

func (t *NameOSINTTool) Run(ctx context.Context, value string) (*Result, error) {
	variants := nameVariants(value)
	if len(variants) == 0 {
		return &Result{
			ToolName: t.Name(),
			Category: t.Category(),
			RawData:  models.RawData{"name": value, "error": "could not generate username variants"},
			Summary:  fmt.Sprintf("NameOSINT: unable to parse name '%s'", value),
			Severity: models.SeverityInfo,
			Tags:     models.Tags{"name", "social"},
		}, nil
	}

	platforms := t.Platforms
	if platforms == nil {
		platforms = namePlatforms
	}

	// Top 3 variants only, to bound the request count
	checked := variants
	if len(checked) > 3 {
		checked = checked[:3]
	}

	var profiles []map[string]any
	platformNames := make([]string, 0, len(platforms))
	for _, p := range platforms {
		platformNames = append(platformNames, p.Name)
	}

	for _, variant := range checked {
		for _, platform := range platforms {
			u := fmt.Sprintf(platform.URL, variant)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				continue
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Valkyrie-OSINT/1.0)")
			resp, err := t.Client.Do(req)
			if err != nil {
				// Per-platform network errors are expected; move on
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				profiles = append(profiles, map[string]any{
					"platform": platform.Name,
					"username": variant,
					"url":      u,
				})
			}
		}
	}

	severity := models.SeverityInfo
	if len(profiles) > 0 {
		severity = models.SeverityMedium
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData: models.RawData{
			"name":              value,
			"username_variants": variants,
			"variants_checked":  checked,
			"platforms_checked": platformNames,
			"probable_profiles": profiles,
		},
		Summary: fmt.Sprintf("NameOSINT: %d potential profile(s) found for '%s' (variants tried: %s)",
			len(profiles), value, strings.Join(checked, ", ")),
		Severity: severity,
		Tags:     models.Tags{"name", "social", "profiles"},
	}, nil
}
