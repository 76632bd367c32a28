package rest

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/valkyrieosint/valkyrie-backend/internal/models"
)

var errEntityNotInProject = errors.New("entity not found in project")

// ListFindings handles GET /entities/{entityId}/findings
func (h *Handler) ListFindings(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entityId"]
	findings, err := h.repo.Finding.ListFindingsForEntity(r.Context(), entityID)
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
	respondJSON(w, http.StatusOK, briefs)
}

// GetFinding handles GET /findings/{findingId}
func (h *Handler) GetFinding(w http.ResponseWriter, r *http.Request) {
	findingID := mux.Vars(r)["findingId"]
	finding, err := h.repo.Finding.GetFinding(r.Context(), findingID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, finding)
}
