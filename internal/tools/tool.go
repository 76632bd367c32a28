// Package tools implements the OSINT lookup adapters and the per-entity-type
// registry that orders them. Adapters never touch the database; they take an
// entity value and return one Result, or an error the dispatcher turns into a
// synthetic error finding.
package tools

import (
	"context"
	"net/http"
	"time"

	"github.com/valkyrieosint/valkyrie-backend/internal/config"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

// Result is one adapter's output, shaped like a finding minus identity and
// timestamps.
type Result struct {
	ToolName string
	Category string
	RawData  models.RawData
	Summary  string
	Severity string
	Tags     models.Tags
}

// Tool is an OSINT lookup adapter. Run must honor ctx cancellation; a nil
// error with a Result is the normal path, including "skipped" and "no data"
// outcomes, which are reported as info results rather than errors.
type Tool interface {
	Name() string
	Category() string
	PremiumOnly() bool
	Run(ctx context.Context, value string) (*Result, error)
}

// Registry holds one shared instance of every adapter and the ordered
// per-entity-type dispatch table. Built once at startup; read-only after.
type Registry struct {
	byType map[string][]Tool
}

// NewRegistry wires all adapters against the given configuration. Adapter
// order within a type is stable and meaningful: findings come back in this
// order.
func NewRegistry(cfg *config.Config) *Registry {
	client := &http.Client{Timeout: time.Duration(cfg.ToolTimeoutSec) * time.Second}

	phoneInfoga := &PhoneInfogaTool{BaseURL: cfg.PhoneInfogaURL, Client: client}
	numVerify := &NumVerifyTool{APIKey: cfg.NumVerifyAPIKey, Client: client}
	holehe := &HoleheTool{}
	hibp := &HIBPTool{APIKey: cfg.HIBPAPIKey, Client: client}
	emailRep := &EmailRepTool{Client: client}
	sherlock := &SherlockTool{}
	whois := &WHOISTool{}
	dnsDump := &DNSDumpsterTool{}
	virusTotal := &VirusTotalTool{APIKey: cfg.VirusTotalAPIKey, Client: client}
	ipGeo := &IPGeoTool{Client: client}
	domainRep := &DomainRepTool{Client: client}
	nameOSINT := &NameOSINTTool{Client: client}
	exifTool := &ExifToolTool{}

	return &Registry{
		byType: map[string][]Tool{
			models.EntityTypePhone:    {phoneInfoga, numVerify},
			models.EntityTypeEmail:    {holehe, hibp, emailRep, virusTotal},
			models.EntityTypeUsername: {sherlock},
			models.EntityTypeDomain:   {whois, dnsDump, virusTotal, domainRep},
			models.EntityTypeIP:       {whois, ipGeo},
			models.EntityTypeName:     {nameOSINT},
			models.EntityTypeSocial:   {sherlock},
			models.EntityTypeFile:     {exifTool},
		},
	}
}

// ForEntityType returns the ordered adapter list for the entity type. An
// unmapped type returns nil, which callers treat as "dispatch to zero tools".
func (r *Registry) ForEntityType(entityType string) []Tool {
	return r.byType[entityType]
}
