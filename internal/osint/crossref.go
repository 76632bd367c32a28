package osint

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/metrics"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
	"github.com/valkyrieosint/valkyrie-backend/internal/tools"
)

const (
	crossRefCacheSize = 512
	// Entries must expire quickly: an archived investigation stops matching
	// and newly added entities start matching within one TTL.
	crossRefCacheTTL = 10 * time.Second
)

// CrossRefDetector finds entities in other, non-archived investigations that
// share identifiers with the entity being run. Detection is best-effort: a
// failed lookup on one candidate is logged and skipped, never fatal.
type CrossRefDetector struct {
	entities repository.EntityRepository
	logger   *slog.Logger

	// Short-lived lookup memoization keyed by project|type|value.
	// Investigation-wide runs repeat candidates (shared registrars, shared
	// orgs) heavily within one run.
	cache *expirable.LRU[string, []*models.EntityMatch]
}

// NewCrossRefDetector builds a detector over the entity store.
func NewCrossRefDetector(entities repository.EntityRepository, logger *slog.Logger) *CrossRefDetector {
	return newCrossRefDetector(entities, logger, crossRefCacheTTL)
}

func newCrossRefDetector(entities repository.EntityRepository, logger *slog.Logger, ttl time.Duration) *CrossRefDetector {
	cache := expirable.NewLRU[string, []*models.EntityMatch](crossRefCacheSize, nil, ttl)
	return &CrossRefDetector{entities: entities, logger: logger, cache: cache}
}

// DetectForEntity returns the cross-reference links for one entity and its
// fresh finding batch. The batch is the not-yet-persisted dispatch output, so
// the detector can never match the entity against its own new findings. Each
// matched entity appears at most once, attributed to whichever candidate
// found it first.
func (d *CrossRefDetector) DetectForEntity(ctx context.Context, entity *models.Entity, batch []*tools.Result) models.Links {
	candidates := buildCandidates(entity, batch)

	var links models.Links
	seenEntities := map[string]bool{}
	seenProjects := map[string]bool{}

	for _, c := range candidates {
		matches, err := d.search(ctx, entity.ProjectID, c)
		if err != nil {
			d.logger.Warn("cross-ref query failed",
				"entity_type", c.EntityType, "value", c.Value, "error", err)
			continue
		}

		for _, match := range matches {
			if seenEntities[match.ID] {
				continue
			}
			seenEntities[match.ID] = true
			seenProjects[match.ProjectID] = true
			links = append(links, models.CrossRefLink{
				EntityID:    match.ID,
				EntityType:  match.EntityType,
				EntityValue: match.Value,
				ProjectID:   match.ProjectID,
				ProjectName: match.ProjectName,
				MatchReason: c.Reason,
			})
		}
	}

	if len(links) > 0 {
		metrics.CrossRefLinksTotal.Add(float64(len(links)))
		d.logger.Info("cross-references found",
			"value", entity.Value, "links", len(links), "projects", len(seenProjects))
	}

	return links
}

func (d *CrossRefDetector) search(ctx context.Context, excludeProjectID string, c candidate) ([]*models.EntityMatch, error) {
	key := excludeProjectID + "|" + c.EntityType + "|" + strings.ToLower(c.Value)
	if cached, ok := d.cache.Get(key); ok {
		return cached, nil
	}

	matches, err := d.entities.SearchEntities(ctx, c.Value, c.EntityType, excludeProjectID)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, matches)
	return matches, nil
}
