package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetEmployee returns the full employee record, used by the sign-in screen.
func (h *Handlers) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := h.tasks.Employee(r.Context(), chi.URLParam(r, "empId"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, employee)
}

// Health reports whether the store is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Ping(r.Context()); err != nil {
		h.requestLog(r).WithError(err).Warn("health check failed")
		respondError(w, http.StatusServiceUnavailable, "Service Unavailable", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
