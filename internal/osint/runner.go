package osint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/metrics"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
)

// ProgressEvent is broadcast to run watchers as entities move through the
// pipeline.
type ProgressEvent struct {
	ProjectID       string `json:"project_id"`
	EntityID        string `json:"entity_id"`
	EntityValue     string `json:"entity_value"`
	Status          string `json:"status"`
	FindingsCreated int    `json:"findings_created"`
}

// ProgressNotifier receives run progress events. Implementations must not
// block the run.
type ProgressNotifier interface {
	RunProgress(event ProgressEvent)
}

type noopNotifier struct{}

func (noopNotifier) RunProgress(ProgressEvent) {}

// EntityRunResult is the caller-visible outcome of a single-entity run.
type EntityRunResult struct {
	EntityID        string `json:"entity_id"`
	FindingsCreated int    `json:"findings_created"`
	Message         string `json:"message"`
}

// ProjectRunResult is the caller-visible outcome of an investigation-wide run.
type ProjectRunResult struct {
	ProjectID         string `json:"project_id"`
	EntitiesProcessed int    `json:"entities_processed"`
	FindingsCreated   int    `json:"findings_created"`
	SkippedComplete   int    `json:"skipped_complete"`
	PremiumIncluded   bool   `json:"premium_included"`
	Message           string `json:"message"`
}

// Runner owns the per-entity state machine: pending → running → complete,
// or pending → running → failed when dispatch itself fails before returning
// a batch. Tool-level failures still end in complete; they surface as error
// findings instead.
type Runner struct {
	repo       *repository.Repository
	dispatcher *Dispatcher
	crossRef   *CrossRefDetector
	notifier   ProgressNotifier
	logger     *slog.Logger
}

// NewRunner wires the run orchestrator. notifier may be nil.
func NewRunner(repo *repository.Repository, dispatcher *Dispatcher, crossRef *CrossRefDetector, notifier ProgressNotifier, logger *slog.Logger) *Runner {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Runner{
		repo:       repo,
		dispatcher: dispatcher,
		crossRef:   crossRef,
		notifier:   notifier,
		logger:     logger,
	}
}

// RunEntity re-runs one entity: all of its previous findings are cleared and
// its status reset before the run, so repeated runs never accumulate
// duplicates.
func (r *Runner) RunEntity(ctx context.Context, entityID string, isPremium bool) (*EntityRunResult, error) {
	entity, err := r.repo.Entity.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Finding.ResetEntity(ctx, entityID); err != nil {
		return nil, fmt.Errorf("failed to reset entity for re-run: %w", err)
	}
	entity.Status = models.EntityStatusPending

	result := r.runSingle(ctx, entity, isPremium)
	return result, nil
}

// RunProject runs every entity of the investigation that is not already
// complete. Complete entities are skipped so adding new entities to an
// existing investigation never re-processes or duplicates the old ones.
func (r *Runner) RunProject(ctx context.Context, projectID string, isPremium bool) (*ProjectRunResult, error) {
	if _, err := r.repo.Project.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	entities, err := r.repo.Entity.ListEntities(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return &ProjectRunResult{
			ProjectID:       projectID,
			PremiumIncluded: isPremium,
			Message:         "No entities found in project",
		}, nil
	}

	var pending []*models.Entity
	skipped := 0
	for _, entity := range entities {
		if entity.Status == models.EntityStatusComplete {
			skipped++
			continue
		}
		pending = append(pending, entity)
	}

	totalFindings := 0
	for _, entity := range pending {
		result := r.runSingle(ctx, entity, isPremium)
		totalFindings += result.FindingsCreated
	}

	premiumNote := "premium tools excluded"
	if isPremium {
		premiumNote = "premium tools included"
	}

	return &ProjectRunResult{
		ProjectID:         projectID,
		EntitiesProcessed: len(pending),
		FindingsCreated:   totalFindings,
		SkippedComplete:   skipped,
		PremiumIncluded:   isPremium,
		Message: fmt.Sprintf("Processed %d entities, created %d findings (%d skipped as already complete, %s)",
			len(pending), totalFindings, skipped, premiumNote),
	}, nil
}

// runSingle is the single-entity path shared by entity re-runs and project
// runs. All findings plus the final status land in one transaction.
func (r *Runner) runSingle(ctx context.Context, entity *models.Entity, isPremium bool) *EntityRunResult {
	start := time.Now()
	defer func() {
		metrics.EntityRunDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if err := r.repo.Entity.UpdateEntityStatus(ctx, entity.ID, models.EntityStatusRunning); err != nil {
		return &EntityRunResult{EntityID: entity.ID, Message: fmt.Sprintf("Failed to start run: %v", err)}
	}
	r.notifier.RunProgress(ProgressEvent{
		ProjectID: entity.ProjectID, EntityID: entity.ID,
		EntityValue: entity.Value, Status: models.EntityStatusRunning,
	})

	batch, err := r.dispatcher.Dispatch(ctx, entity.EntityType, entity.Value, isPremium)
	if err != nil {
		// Dispatch-level failure: the only path that does not reach complete
		r.logger.Error("dispatch failed", "entity_id", entity.ID, "error", err)
		if statusErr := r.repo.Entity.UpdateEntityStatus(ctx, entity.ID, models.EntityStatusFailed); statusErr != nil {
			r.logger.Error("failed to mark entity failed", "entity_id", entity.ID, "error", statusErr)
		}
		r.notifier.RunProgress(ProgressEvent{
			ProjectID: entity.ProjectID, EntityID: entity.ID,
			EntityValue: entity.Value, Status: models.EntityStatusFailed,
		})
		return &EntityRunResult{EntityID: entity.ID, Message: fmt.Sprintf("Dispatch error: %v", err)}
	}

	// The detector sees the fresh, not-yet-persisted batch, so it can never
	// match the entity against its own new findings. All findings of one run
	// share the same link set. A detector failure means zero links, never a
	// failed run.
	links := r.crossRef.DetectForEntity(ctx, entity, batch)

	findings := make([]*models.Finding, 0, len(batch))
	for _, result := range batch {
		findings = append(findings, &models.Finding{
			EntityID:     entity.ID,
			ToolName:     result.ToolName,
			ToolCategory: result.Category,
			RawData:      result.RawData,
			Summary:      result.Summary,
			Severity:     result.Severity,
			Tags:         result.Tags,
			Links:        links,
		})
	}

	if err := r.repo.Finding.CompleteEntityRun(ctx, entity.ID, models.EntityStatusComplete, findings); err != nil {
		r.logger.Error("failed to persist run", "entity_id", entity.ID, "error", err)
		if statusErr := r.repo.Entity.UpdateEntityStatus(ctx, entity.ID, models.EntityStatusFailed); statusErr != nil {
			r.logger.Error("failed to mark entity failed", "entity_id", entity.ID, "error", statusErr)
		}
		r.notifier.RunProgress(ProgressEvent{
			ProjectID: entity.ProjectID, EntityID: entity.ID,
			EntityValue: entity.Value, Status: models.EntityStatusFailed,
		})
		return &EntityRunResult{EntityID: entity.ID, Message: fmt.Sprintf("Failed to persist findings: %v", err)}
	}

	r.notifier.RunProgress(ProgressEvent{
		ProjectID: entity.ProjectID, EntityID: entity.ID,
		EntityValue: entity.Value, Status: models.EntityStatusComplete,
		FindingsCreated: len(findings),
	})

	return &EntityRunResult{
		EntityID:        entity.ID,
		FindingsCreated: len(findings),
		Message:         fmt.Sprintf("Created %d findings for entity %s", len(findings), entity.Value),
	}
}
