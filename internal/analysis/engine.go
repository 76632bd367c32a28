package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/metrics"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
)

// Result is the caller-visible outcome of one analysis run.
type Result struct {
	ProjectID       string `json:"project_id"`
	PatternsCreated int    `json:"patterns_created"`
	Message         string `json:"message"`
}

// Engine orchestrates one analysis pass: load evidence, build the prompt,
// call the inference backend, and replace the investigation's pattern set.
type Engine struct {
	repo   *repository.Repository
	llm    TextGenerator
	params GenerationParams
	logger *slog.Logger
}

// NewEngine wires the analysis engine.
func NewEngine(repo *repository.Repository, llm TextGenerator, params GenerationParams, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, llm: llm, params: params, logger: logger}
}

// AnalyzeProject analyzes one investigation. No entities or no findings is a
// descriptive no-op. A backend failure is a normal user-visible outcome, not
// an error; existing patterns are only replaced once new ones exist.
func (e *Engine) AnalyzeProject(ctx context.Context, projectID string) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.AnalysisDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if _, err := e.repo.Project.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	entities, err := e.repo.Entity.ListEntities(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return &Result{ProjectID: projectID, Message: "No entities to analyze"}, nil
	}

	findings, err := e.repo.Finding.ListFindingsForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		return &Result{ProjectID: projectID, Message: "No findings to analyze"}, nil
	}

	prompt := buildPrompt(entities, findings)
	e.logger.Info("calling inference backend",
		"project_id", projectID, "model", e.llm.Model(), "prompt_chars", len(prompt))

	response, err := e.llm.Generate(ctx, prompt, e.params)
	if err != nil {
		e.logger.Error("inference backend call failed", "project_id", projectID, "error", err)
		metrics.LLMFailuresTotal.Inc()
		return &Result{ProjectID: projectID, Message: "LLM analysis failed"}, nil
	}
	e.logger.Info("inference response received", "project_id", projectID, "chars", len(response))

	entityIDs := make([]string, 0, len(entities))
	for _, entity := range entities {
		entityIDs = append(entityIDs, entity.ID)
	}

	patterns := materializePatterns(projectID, entityIDs, response, e.llm.Model())

	if err := e.repo.Pattern.ReplacePatterns(ctx, projectID, patterns); err != nil {
		return nil, fmt.Errorf("failed to store patterns: %w", err)
	}
	metrics.PatternsCreatedTotal.Add(float64(len(patterns)))

	return &Result{
		ProjectID:       projectID,
		PatternsCreated: len(patterns),
		Message:         fmt.Sprintf("Generated %d patterns from LLM analysis", len(patterns)),
	}, nil
}
