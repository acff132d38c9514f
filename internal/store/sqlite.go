package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"nodebucket/internal/models"
)

// SQLiteStore implements the Store interface using SQLite. Each employee is
// one row whose task lists are kept as JSON arrays.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given database path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// NewTaskID returns a fresh random task id.
func (s *SQLiteStore) NewTaskID() string {
	return uuid.NewString()
}

// FindEmployee retrieves an employee by empId.
func (s *SQLiteStore) FindEmployee(ctx context.Context, empID int64, proj Projection) (*models.Employee, error) {
	employee := &models.Employee{}
	var todo, done string

	err := s.db.QueryRowContext(ctx, `
		SELECT emp_id, first_name, last_name, todo, done
		FROM employees WHERE emp_id = ?
	`, empID).Scan(
		&employee.EmpID,
		&employee.FirstName,
		&employee.LastName,
		&todo,
		&done,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	if err := json.Unmarshal([]byte(todo), &employee.Todo); err != nil {
		return nil, fmt.Errorf("failed to decode todo list of employee %d: %w", empID, err)
	}
	if err := json.Unmarshal([]byte(done), &employee.Done); err != nil {
		return nil, fmt.Errorf("failed to decode done list of employee %d: %w", empID, err)
	}

	return project(employee, proj), nil
}

// PushTask appends a task to the end of the employee's todo list.
func (s *SQLiteStore) PushTask(ctx context.Context, empID int64, task models.Task) (UpdateResult, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to encode task: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET todo = json_insert(todo, '$[#]', json(?)), updated_at = ?
		WHERE emp_id = ?
	`, string(data), time.Now(), empID)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to push task: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return UpdateResult{Matched: n, Modified: n}, nil
}

// ReplaceTasks overwrites both task lists of an employee. Rows whose lists
// already equal the new ones are matched but not modified.
func (s *SQLiteStore) ReplaceTasks(ctx context.Context, empID int64, todo, done []models.Task) (UpdateResult, error) {
	todoJSON, err := encodeTasks(todo)
	if err != nil {
		return UpdateResult{}, err
	}
	doneJSON, err := encodeTasks(done)
	if err != nil {
		return UpdateResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var res UpdateResult
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees WHERE emp_id = ?`, empID).Scan(&res.Matched); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to match employee: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE employees
		SET todo = json(?), done = json(?), updated_at = ?
		WHERE emp_id = ? AND (todo != json(?) OR done != json(?))
	`, todoJSON, doneJSON, time.Now(), empID, todoJSON, doneJSON)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to replace tasks: %w", err)
	}

	res.Modified, err = result.RowsAffected()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return res, nil
}

// SeedEmployees inserts employees that do not exist yet and returns how many
// were added.
func (s *SQLiteStore) SeedEmployees(ctx context.Context, employees []models.Employee) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO employees (emp_id, first_name, last_name, todo, done)
		VALUES (?, ?, ?, json(?), json(?))
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range employees {
		todoJSON, err := encodeTasks(e.Todo)
		if err != nil {
			return 0, err
		}
		doneJSON, err := encodeTasks(e.Done)
		if err != nil {
			return 0, err
		}

		result, err := stmt.ExecContext(ctx, e.EmpID, e.FirstName, e.LastName, todoJSON, doneJSON)
		if err != nil {
			return 0, fmt.Errorf("failed to seed employee %d: %w", e.EmpID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

func encodeTasks(tasks []models.Task) (string, error) {
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return "", fmt.Errorf("failed to encode tasks: %w", err)
	}
	return string(data), nil
}
