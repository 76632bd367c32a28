package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// SherlockTool searches for a username across social networks by shelling out
// to the sherlock CLI. Serves both username and social handle entities.
type SherlockTool struct{}

func (t *SherlockTool) Name() string      { return "Sherlock" }
func (t *SherlockTool) Category() string  { return "username" }
func (t *SherlockTool) PremiumOnly() bool { return false }

func (t *SherlockTool) Run(ctx context.Context, value string) (*Result, error) {
	cmd := exec.CommandContext(ctx, "sherlock", value, "--print-found", "--no-color", "--timeout", "10")
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sherlock scan timed out: %w", ctx.Err())
		}
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("sherlock not installed: %w", err)
		}
	}

	var found []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		// Format: [+] Platform: https://url
		if !strings.HasPrefix(line, "[+]") || !strings.Contains(line, ": http") {
			continue
		}
		parts := strings.SplitN(line, ": ", 2)
		url := strings.TrimSpace(parts[len(parts)-1])
		if strings.HasPrefix(url, "http") {
			found = append(found, url)
		}
	}

	severity := models.SeverityInfo
	if len(found) > 0 {
		severity = models.SeverityMedium
	}

	return &Result{
		ToolName: t.Name(),
		Category: t.Category(),
		RawData:  models.RawData{"found_on": found, "count": len(found)},
		Summary:  fmt.Sprintf("Found %d platforms for username %s", len(found), value),
		Severity: severity,
		Tags:     models.Tags{"username", "social", "sherlock"},
	}, nil
}
