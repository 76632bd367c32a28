// Package osint implements the correlation pipeline: tool dispatch with
// failure isolation, per-entity run orchestration, and cross-investigation
// reference detection.
package osint

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/metrics"
	"github.com/valkyrieosint/valkyrie-backend/internal/tools"
)

// AdapterSource resolves the ordered adapter list for an entity type.
// Satisfied by tools.Registry.
type AdapterSource interface {
	ForEntityType(entityType string) []tools.Tool
}

// Dispatcher fans an entity value out to the adapters mapped for its type.
// Adapter failures never escape: each becomes a synthetic error finding in
// the output, in the adapter's slot, so the result order always mirrors the
// registry order.
type Dispatcher struct {
	registry    AdapterSource
	logger      *slog.Logger
	toolTimeout time.Duration
	concurrent  bool
}

// NewDispatcher builds a dispatcher. toolTimeout bounds each adapter call
// individually; concurrent runs an entity's adapters in parallel.
func NewDispatcher(registry AdapterSource, logger *slog.Logger, toolTimeout time.Duration, concurrent bool) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		logger:      logger,
		toolTimeout: toolTimeout,
		concurrent:  concurrent,
	}
}

// Dispatch runs every applicable adapter for the entity type against the
// value and returns one result per invoked adapter, in registry order. An
// unmapped entity type yields an empty batch. The only returned error is a
// context already cancelled before any adapter ran.
func (d *Dispatcher) Dispatch(ctx context.Context, entityType, value string, isPremium bool) ([]*tools.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := d.registry.ForEntityType(entityType)
	if len(all) == 0 {
		d.logger.Warn("no tools mapped for entity type", "entity_type", entityType)
		return nil, nil
	}

	// Premium filtering is silent: free users get partial coverage, not an error
	adapters := make([]tools.Tool, 0, len(all))
	for _, adapter := range all {
		if adapter.PremiumOnly() && !isPremium {
			continue
		}
		adapters = append(adapters, adapter)
	}
	if skipped := len(all) - len(adapters); skipped > 0 {
		d.logger.Info("skipping premium tools for non-premium run",
			"entity_type", entityType, "skipped", skipped)
	}

	results := make([]*tools.Result, len(adapters))

	if d.concurrent {
		var g errgroup.Group
		for i, adapter := range adapters {
			g.Go(func() error {
				results[i] = d.runOne(ctx, adapter, entityType, value)
				return nil
			})
		}
		g.Wait()
	} else {
		for i, adapter := range adapters {
			results[i] = d.runOne(ctx, adapter, entityType, value)
		}
	}

	return results, nil
}

func (d *Dispatcher) runOne(ctx context.Context, adapter tools.Tool, entityType, value string) *tools.Result {
	runCtx := ctx
	if d.toolTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.toolTimeout)
		defer cancel()
	}

	d.logger.Info("running tool", "tool", adapter.Name(), "entity_type", entityType)
	result, err := adapter.Run(runCtx, value)
	if err != nil {
		d.logger.Error("tool failed", "tool", adapter.Name(), "error", err)
		metrics.ToolRunsTotal.WithLabelValues(adapter.Name(), "error").Inc()
		return errorResult(adapter, value, err)
	}

	if result.RawData["skipped"] == true {
		metrics.ToolRunsTotal.WithLabelValues(adapter.Name(), "skipped").Inc()
	} else {
		metrics.ToolRunsTotal.WithLabelValues(adapter.Name(), "ok").Inc()
	}
	return result
}

// errorResult builds the synthetic finding that stands in for a failed
// adapter call.
func errorResult(adapter tools.Tool, value string, err error) *tools.Result {
	return &tools.Result{
		ToolName: adapter.Name(),
		Category: adapter.Category(),
		RawData:  models.RawData{"error": err.Error(), "entity_value": value},
		Summary:  "Tool " + adapter.Name() + " encountered an error: " + err.Error(),
		Severity: models.SeverityError,
		Tags:     models.Tags{"error", "tool-failure"},
	}
}
