package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetTasks returns the employee's todo and done lists.
func (h *Handlers) GetTasks(w http.ResponseWriter, r *http.Request) {
	board, err := h.tasks.Tasks(r.Context(), chi.URLParam(r, "empId"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, board)
}

// CreateTask appends a new task to the employee's todo list.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	r = h.body(w, r)

	id, err := h.tasks.CreateTask(r.Context(), chi.URLParam(r, "empId"), r.Body)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ReplaceTasks stores the full board state after a drag-and-drop.
func (h *Handlers) ReplaceTasks(w http.ResponseWriter, r *http.Request) {
	r = h.body(w, r)

	if err := h.tasks.ReplaceTasks(r.Context(), chi.URLParam(r, "empId"), r.Body); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteTask removes a task from whichever list holds it.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	err := h.tasks.DeleteTask(r.Context(), chi.URLParam(r, "empId"), chi.URLParam(r, "taskId"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
