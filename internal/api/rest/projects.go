package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/validate"
)

// ListProjects handles GET /projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.ListProjects(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateProject handles POST /projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		TargetSummary string `json:"target_summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validate.ProjectName(req.Name) {
		respondError(w, http.StatusBadRequest, "name is required (max 255 characters)")
		return
	}
	p := &models.Project{Name: req.Name, Description: req.Description, TargetSummary: req.TargetSummary}
	created, err := h.projects.CreateProject(r.Context(), p)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetProject handles GET /projects/{projectId}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	proj, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, proj)
}

// UpdateProject handles PUT /projects/{projectId}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	var req struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		TargetSummary *string `json:"target_summary"`
		Status        *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	proj, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	if req.Name != nil {
		if !validate.ProjectName(*req.Name) {
			respondError(w, http.StatusBadRequest, "name must be 1-255 characters")
			return
		}
		proj.Name = *req.Name
	}
	if req.Description != nil {
		proj.Description = *req.Description
	}
	if req.TargetSummary != nil {
		proj.TargetSummary = *req.TargetSummary
	}
	if req.Status != nil {
		proj.Status = *req.Status
	}
	if err := h.projects.UpdateProject(r.Context(), &proj.Project); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, proj.Project)
}

// ArchiveProject handles DELETE /projects/{projectId}. Deletion archives the
// investigation; the data stays for reports but drops out of listings and
// cross-reference matching.
func (h *Handler) ArchiveProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if err := h.projects.ArchiveProject(r.Context(), projectID); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	proj, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, proj.Project)
}

// RunProject handles POST /projects/{projectId}/run
func (h *Handler) RunProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	user := h.currentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if _, err := h.repo.Project.GetProject(r.Context(), projectID); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	entities, err := h.repo.Entity.ListEntities(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entityTypes := make([]string, 0, len(entities))
	for _, e := range entities {
		entityTypes = append(entityTypes, e.EntityType)
	}

	result, err := h.runner.RunProject(r.Context(), projectID, h.isPremium(user))
	if err != nil {
		h.stats.RecordError(r.Context())
		respondError(w, statusForError(err), err.Error())
		return
	}
	h.stats.RecordRun(r.Context(), entityTypes)
	respondJSON(w, http.StatusOK, result)
}

// AnalyzeProject handles POST /projects/{projectId}/analyze
func (h *Handler) AnalyzeProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	if h.currentUser(r) == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if _, err := h.repo.Project.GetProject(r.Context(), projectID); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	result, err := h.engine.AnalyzeProject(r.Context(), projectID)
	if err != nil {
		h.stats.RecordError(r.Context())
		respondError(w, statusForError(err), err.Error())
		return
	}
	h.stats.RecordAnalysis(r.Context())
	respondJSON(w, http.StatusOK, result)
}

// ListPatterns handles GET /projects/{projectId}/patterns
func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	patterns, err := h.projects.ListPatterns(r.Context(), projectID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, patterns)
}

// GetProjectSummary handles GET /projects/{projectId}/summary
func (h *Handler) GetProjectSummary(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	summary, err := h.projects.GetSummary(r.Context(), projectID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetProjectReport handles GET /projects/{projectId}/report
func (h *Handler) GetProjectReport(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	report, err := h.projects.GetReport(r.Context(), projectID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}
