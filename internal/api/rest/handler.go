package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valkyrieosint/valkyrie-backend/internal/analysis"
	"github.com/valkyrieosint/valkyrie-backend/internal/config"
	"github.com/valkyrieosint/valkyrie-backend/internal/osint"
	"github.com/valkyrieosint/valkyrie-backend/internal/repository"
	"github.com/valkyrieosint/valkyrie-backend/internal/service"
)

const apiVersion = "1.0.0"

// Handler manages HTTP request handlers
type Handler struct {
	cfg      *config.Config
	repo     *repository.Repository
	projects service.ProjectService
	stats    service.StatsService
	runner   *osint.Runner
	engine   *analysis.Engine
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg *config.Config, repo *repository.Repository, projects service.ProjectService,
	stats service.StatsService, runner *osint.Runner, engine *analysis.Engine, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		repo:     repo,
		projects: projects,
		stats:    stats,
		runner:   runner,
		engine:   engine,
		logger:   logger,
	}
}

// SetupRoutes configures API routes. runLimit wraps the expensive run and
// analyze routes with per-IP rate limiting.
func SetupRoutes(router *mux.Router, h *Handler, runLimit func(http.Handler) http.Handler) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "valkyrie-osint",
			"version": apiVersion,
		})
	}).Methods("GET")

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"name":    "Valkyrie OSINT Operating System",
			"version": apiVersion,
			"health":  "/health",
			"api":     "/api/v1",
		})
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Auth routes
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.HandleFunc("/auth/me", h.Me).Methods("GET")

	// Project routes
	api.HandleFunc("/projects", h.ListProjects).Methods("GET")
	api.HandleFunc("/projects", h.CreateProject).Methods("POST")
	api.HandleFunc("/projects/{projectId}", h.GetProject).Methods("GET")
	api.HandleFunc("/projects/{projectId}", h.UpdateProject).Methods("PUT")
	api.HandleFunc("/projects/{projectId}", h.ArchiveProject).Methods("DELETE")
	api.Handle("/projects/{projectId}/run", runLimit(http.HandlerFunc(h.RunProject))).Methods("POST")
	api.Handle("/projects/{projectId}/analyze", runLimit(http.HandlerFunc(h.AnalyzeProject))).Methods("POST")
	api.HandleFunc("/projects/{projectId}/patterns", h.ListPatterns).Methods("GET")
	api.HandleFunc("/projects/{projectId}/summary", h.GetProjectSummary).Methods("GET")
	api.HandleFunc("/projects/{projectId}/report", h.GetProjectReport).Methods("GET")

	// Entity routes
	api.HandleFunc("/projects/{projectId}/entities", h.ListEntities).Methods("GET")
	api.HandleFunc("/projects/{projectId}/entities", h.AddEntity).Methods("POST")
	api.HandleFunc("/projects/{projectId}/entities/{entityId}", h.GetEntity).Methods("GET")
	api.HandleFunc("/projects/{projectId}/entities/{entityId}", h.DeleteEntity).Methods("DELETE")
	api.HandleFunc("/projects/{projectId}/entities/{entityId}/run", h.RunEntity).Methods("POST")

	// Finding routes
	api.HandleFunc("/entities/{entityId}/findings", h.ListFindings).Methods("GET")
	api.HandleFunc("/findings/{findingId}", h.GetFinding).Methods("GET")

	// Anonymous stats routes (no auth)
	api.HandleFunc("/stats/aggregate", h.AggregateStats).Methods("GET")
	api.HandleFunc("/stats/daily", h.DailyStats).Methods("GET")
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps repository errors onto HTTP statuses. Repositories
// return plain wrapped errors, not sentinel types; not-found is conveyed in
// the message.
func statusForError(err error) int {
	if strings.Contains(err.Error(), "not found") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
