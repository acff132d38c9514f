package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"nodebucket/internal/tasks"
	"nodebucket/internal/validation"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Type             string                 `json:"type"`
	Status           int                    `json:"status"`
	Message          string                 `json:"message"`
	ValidationErrors []validation.Violation `json:"validationErrors,omitempty"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string, violations []validation.Violation) {
	respondJSON(w, code, errorResponse{
		Type:             "error",
		Status:           code,
		Message:          message,
		ValidationErrors: violations,
	})
}

// respondServiceError maps a service error to its status code and body.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error

	switch {
	case errors.Is(err, tasks.ErrInvalidIdentifier):
		respondError(w, http.StatusBadRequest, "Input must be a number", nil)
	case errors.Is(err, tasks.ErrNotFound):
		respondError(w, http.StatusNotFound, "Employee not found", nil)
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "Bad Request", verr.Violations)
	case errors.Is(err, tasks.ErrMutationFailed):
		respondError(w, http.StatusBadRequest, "Unable to update tasks for employee", nil)
	default:
		h.respondServerError(w, r, err)
	}
}

func (h *Handlers) respondServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.requestLog(r).WithError(err).Error("internal server error")
	respondError(w, http.StatusInternalServerError, "Internal Server Error", nil)
}

// Recoverer turns panics into a 500 error body.
func (h *Handlers) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			h.respondServerError(w, r, fmt.Errorf("panic: %v", rvr))
		}()

		next.ServeHTTP(w, r)
	})
}

// NotFound answers unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Not Found", nil)
}

// MethodNotAllowed answers known routes hit with the wrong method.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
}
