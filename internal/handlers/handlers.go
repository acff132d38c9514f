package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"nodebucket/internal/tasks"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	tasks        *tasks.Service
	log          log.FieldLogger
	maxBodyBytes int64
}

// New creates a new Handlers instance.
func New(svc *tasks.Service, logger log.FieldLogger, maxBodyBytes int64) *Handlers {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handlers{
		tasks:        svc,
		log:          logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes registers the API routes on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Use(h.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/employees/{empId}", func(r chi.Router) {
			r.Get("/", h.GetEmployee)
			r.Get("/tasks", h.GetTasks)
			r.Post("/tasks", h.CreateTask)
			r.Put("/tasks", h.ReplaceTasks)
			r.Delete("/tasks/{taskId}", h.DeleteTask)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
}

// body limits the request body to the configured size.
func (h *Handlers) body(w http.ResponseWriter, r *http.Request) *http.Request {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	return r
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) requestLog(r *http.Request) log.FieldLogger {
	return h.log.WithField("request_id", middleware.GetReqID(r.Context()))
}
