package store

import (
	"context"
	"errors"

	"nodebucket/internal/models"
)

// ErrEmployeeNotFound is returned when no employee has the requested id.
var ErrEmployeeNotFound = errors.New("employee not found")

// Projection selects which employee fields a lookup loads.
type Projection int

const (
	// AllFields loads the whole employee document.
	AllFields Projection = iota
	// TaskFields loads only empId, todo and done.
	TaskFields
)

// UpdateResult reports the outcome of a single-document update.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Store defines the employee document operations the task service needs.
type Store interface {
	// Employee lookups
	FindEmployee(ctx context.Context, empID int64, proj Projection) (*models.Employee, error)

	// Task list mutations
	PushTask(ctx context.Context, empID int64, task models.Task) (UpdateResult, error)
	ReplaceTasks(ctx context.Context, empID int64, todo, done []models.Task) (UpdateResult, error)
	NewTaskID() string

	// Operator seeding; existing employees are left untouched.
	SeedEmployees(ctx context.Context, employees []models.Employee) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// project trims an employee down to the fields the projection asks for.
func project(e *models.Employee, proj Projection) *models.Employee {
	if proj == TaskFields {
		return &models.Employee{EmpID: e.EmpID, Todo: e.Todo, Done: e.Done}
	}
	return e
}
