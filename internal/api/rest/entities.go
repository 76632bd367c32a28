package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/validate"
)

// entityWithFindings is the detail view: the entity plus its finding briefs.
type entityWithFindings struct {
	models.Entity
	Findings []*models.FindingBrief `json:"findings"`
}

// AddEntity handles POST /projects/{projectId}/entities
func (h *Handler) AddEntity(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if _, err := h.repo.Project.GetProject(r.Context(), projectID); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	var req struct {
		EntityType string `json:"entity_type"`
		Value      string `json:"value"`
		Label      string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validate.EntityType(req.EntityType) {
		respondError(w, http.StatusBadRequest,
			"Invalid entity_type. Must be one of: "+strings.Join(models.EntityTypes, ", "))
		return
	}
	if !validate.EntityValue(req.Value) {
		respondError(w, http.StatusBadRequest, "value is required (max 500 characters)")
		return
	}

	entity := &models.Entity{
		ProjectID:  projectID,
		EntityType: req.EntityType,
		Value:      req.Value,
		Label:      req.Label,
	}
	if err := h.repo.Entity.CreateEntity(r.Context(), entity); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, entity)
}

// ListEntities handles GET /projects/{projectId}/entities
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if _, err := h.repo.Project.GetProject(r.Context(), projectID); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	entities, err := h.repo.Entity.ListEntities(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, entities)
}

// getProjectEntity loads an entity and verifies it belongs to the project in
// the path.
func (h *Handler) getProjectEntity(r *http.Request) (*models.Entity, error) {
	vars := mux.Vars(r)
	entity, err := h.repo.Entity.GetEntity(r.Context(), vars["entityId"])
	if err != nil {
		return nil, err
	}
	if entity.ProjectID != vars["projectId"] {
		return nil, errEntityNotInProject
	}
	return entity, nil
}

// GetEntity handles GET /projects/{projectId}/entities/{entityId}
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := h.getProjectEntity(r)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	findings, err := h.repo.Finding.ListFindingsForEntity(r.Context(), entity.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	briefs := make([]*models.FindingBrief, 0, len(findings))
	for _, f := range findings {
		briefs = append(briefs, &models.FindingBrief{
			ID:           f.ID,
			EntityID:     f.EntityID,
			ToolName:     f.ToolName,
			ToolCategory: f.ToolCategory,
			Summary:      f.Summary,
			Severity:     f.Severity,
			CreatedAt:    f.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, entityWithFindings{Entity: *entity, Findings: briefs})
}

// DeleteEntity handles DELETE /projects/{projectId}/entities/{entityId}
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := h.getProjectEntity(r)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if err := h.repo.Entity.DeleteEntity(r.Context(), entity.ID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunEntity handles POST /projects/{projectId}/entities/{entityId}/run
func (h *Handler) RunEntity(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	entity, err := h.getProjectEntity(r)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	result, err := h.runner.RunEntity(r.Context(), entity.ID, h.isPremium(user))
	if err != nil {
		h.stats.RecordError(r.Context())
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}
