// Package tasks implements the task board operations for one employee at a
// time: read, create, bulk replace and delete.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	log "github.com/sirupsen/logrus"

	"nodebucket/internal/models"
	"nodebucket/internal/store"
	"nodebucket/internal/validation"
)

// Service runs each operation as validate, lookup, mutate. It holds no
// per-request state; concurrent updates to one employee are last-write-wins.
type Service struct {
	store   store.Store
	schemas *validation.Schemas
	log     log.FieldLogger
}

// NewService creates a Service backed by the given store and schemas.
func NewService(s store.Store, schemas *validation.Schemas, logger log.FieldLogger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		store:   s,
		schemas: schemas,
		log:     logger,
	}
}

// ParseEmployeeID parses a path identifier into an empId.
func ParseEmployeeID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	return id, nil
}

// Employee returns the full employee record.
func (s *Service) Employee(ctx context.Context, rawID string) (*models.Employee, error) {
	empID, err := ParseEmployeeID(rawID)
	if err != nil {
		return nil, err
	}

	employee, err := s.find(ctx, empID, store.AllFields)
	if err != nil {
		return nil, err
	}
	employee.Normalize()
	return employee, nil
}

// Tasks returns only the employee's task lists.
func (s *Service) Tasks(ctx context.Context, rawID string) (models.TaskBoard, error) {
	empID, err := ParseEmployeeID(rawID)
	if err != nil {
		return models.TaskBoard{}, err
	}

	employee, err := s.find(ctx, empID, store.TaskFields)
	if err != nil {
		return models.TaskBoard{}, err
	}
	return employee.Board(), nil
}

// CreateTask appends a new task to the employee's todo list and returns its id.
func (s *Service) CreateTask(ctx context.Context, rawID string, body io.Reader) (string, error) {
	empID, err := ParseEmployeeID(rawID)
	if err != nil {
		return "", err
	}

	if _, err := s.find(ctx, empID, store.TaskFields); err != nil {
		return "", err
	}

	payload, err := validation.ReadPayload(body)
	if err != nil {
		return "", err
	}
	req, err := s.schemas.CreateTask(payload)
	if err != nil {
		return "", err
	}

	task := models.Task{ID: s.store.NewTaskID(), Text: req.Text}
	if err := task.Validate(); err != nil {
		return "", fmt.Errorf("failed to build task: %w", err)
	}

	res, err := s.store.PushTask(ctx, empID, task)
	if err != nil {
		return "", s.storeFailure(empID, "push task", err)
	}
	if res.Modified == 0 {
		s.log.WithField("empId", empID).Warn("create task modified no document")
		return "", ErrMutationFailed
	}

	s.log.WithFields(log.Fields{"empId": empID, "taskId": task.ID}).Debug("task created")
	return task.ID, nil
}

// ReplaceTasks overwrites both task lists with the submitted end state.
func (s *Service) ReplaceTasks(ctx context.Context, rawID string, body io.Reader) error {
	empID, err := ParseEmployeeID(rawID)
	if err != nil {
		return err
	}

	if _, err := s.find(ctx, empID, store.TaskFields); err != nil {
		return err
	}

	payload, err := validation.ReadPayload(body)
	if err != nil {
		return err
	}
	req, err := s.schemas.ReplaceTasks(payload)
	if err != nil {
		return err
	}

	res, err := s.store.ReplaceTasks(ctx, empID, req.Todo, req.Done)
	if err != nil {
		return s.storeFailure(empID, "replace tasks", err)
	}
	// An unchanged board still matches; only a vanished employee fails here.
	if res.Matched == 0 {
		s.log.WithField("empId", empID).Warn("replace tasks matched no document")
		return ErrMutationFailed
	}

	s.log.WithFields(log.Fields{
		"empId": empID,
		"todo":  len(req.Todo),
		"done":  len(req.Done),
	}).Debug("tasks replaced")
	return nil
}

// DeleteTask removes a task from both lists. Deleting an id that is on
// neither list is reported as ErrMutationFailed.
func (s *Service) DeleteTask(ctx context.Context, rawID, taskID string) error {
	empID, err := ParseEmployeeID(rawID)
	if err != nil {
		return err
	}

	// The remaining lists are written back whole, so they must come from the
	// store rather than a possibly stale cache entry.
	employee, err := s.find(store.WithoutCache(ctx), empID, store.TaskFields)
	if err != nil {
		return err
	}

	todo, done, removed := employee.WithoutTask(taskID)
	if removed == 0 {
		s.log.WithFields(log.Fields{"empId": empID, "taskId": taskID}).Warn("delete task: task not on board")
		return ErrMutationFailed
	}

	res, err := s.store.ReplaceTasks(ctx, empID, todo, done)
	if err != nil {
		return s.storeFailure(empID, "delete task", err)
	}
	if res.Modified == 0 {
		s.log.WithFields(log.Fields{"empId": empID, "taskId": taskID}).Warn("delete task modified no document")
		return ErrMutationFailed
	}

	s.log.WithFields(log.Fields{"empId": empID, "taskId": taskID}).Debug("task deleted")
	return nil
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) find(ctx context.Context, empID int64, proj store.Projection) (*models.Employee, error) {
	employee, err := s.store.FindEmployee(ctx, empID, proj)
	if err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			s.log.WithField("empId", empID).Info("employee not found")
			return nil, ErrNotFound
		}
		return nil, s.storeFailure(empID, "find employee", err)
	}
	return employee, nil
}

func (s *Service) storeFailure(empID int64, op string, err error) error {
	s.log.WithError(err).WithFields(log.Fields{"empId": empID, "op": op}).Error("store call failed")
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
