package rest

import (
	"net/http"
	"strconv"
)

// AggregateStats handles GET /stats/aggregate. No auth: the data is
// anonymous by construction.
func (h *Handler) AggregateStats(w http.ResponseWriter, r *http.Request) {
	agg, err := h.stats.Aggregate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, agg)
}

// DailyStats handles GET /stats/daily?days=N
func (h *Handler) DailyStats(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 365 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}
	daily, err := h.stats.Daily(r.Context(), days)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if daily == nil {
		daily = []map[string]any{}
	}
	respondJSON(w, http.StatusOK, daily)
}
