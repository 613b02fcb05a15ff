package handlers

import (
	"net/http"
	"strconv"

	"smtp-relay/internal/common/errors"
	"smtp-relay/internal/stats"
)

// GetStats returns per-day delivery counters for the trailing window
// (?days=N, default 7, capped at the retention window)
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, r, errors.ValidationError("days must be a positive integer"))
			return
		}
		days = parsed
	}
	if days > stats.RetentionDays {
		days = stats.RetentionDays
	}

	report, err := h.stats.Report(r.Context(), days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}
