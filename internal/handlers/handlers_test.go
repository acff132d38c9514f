package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"nodebucket/internal/models"
	"nodebucket/internal/store"
	"nodebucket/internal/tasks"
	"nodebucket/internal/validation"
)

func setupTestHandlers(t *testing.T) (*Handlers, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	schemas, err := validation.Compile(validation.Options{})
	if err != nil {
		t.Fatalf("failed to compile schemas: %v", err)
	}

	logger := log.New()
	logger.SetOutput(io.Discard)

	h := New(tasks.NewService(s, schemas, logger), logger, 0)
	return h, s
}

func setupTestRouter(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	h, s := setupTestHandlers(t)
	r := chi.NewRouter()
	h.Routes(r)
	return r, s
}

func seed(t *testing.T, s *store.SQLiteStore, employees ...models.Employee) {
	t.Helper()
	if _, err := s.SeedEmployees(context.Background(), employees); err != nil {
		t.Fatalf("failed to seed employees: %v", err)
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	if resp.Type != "error" || resp.Status != rec.Code {
		t.Errorf("unexpected error envelope: %+v (status %d)", resp, rec.Code)
	}
	return resp
}

func decodeBoard(t *testing.T, rec *httptest.ResponseRecorder) models.TaskBoard {
	t.Helper()
	var board models.TaskBoard
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("failed to decode board %q: %v", rec.Body.String(), err)
	}
	return board
}

func TestGetEmployeeHandler_Success(t *testing.T) {
	h, s := setupTestHandlers(t)
	seed(t, s, models.Employee{EmpID: 1007, FirstName: "Ada", LastName: "Lovelace"})

	req := httptest.NewRequest("GET", "/api/employees/1007", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("empId", "1007")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.GetEmployee(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var got models.Employee
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode employee: %v", err)
	}
	if got.EmpID != 1007 || got.FirstName != "Ada" || got.LastName != "Lovelace" {
		t.Errorf("unexpected employee: %+v", got)
	}
}

func TestGetEmployeeHandler_InvalidID(t *testing.T) {
	h, _ := setupTestHandlers(t)

	req := httptest.NewRequest("GET", "/api/employees/abc", nil)
	rec := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("empId", "abc")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.GetEmployee(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if resp := decodeError(t, rec); resp.Message != "Input must be a number" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestGetTasksHandler_OnlyTaskFields(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{EmpID: 1007, FirstName: "Ada"})

	rec := do(t, r, "GET", "/api/employees/1007/tasks", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	want := `{"empId":1007,"todo":[],"done":[]}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestGetTasksHandler_NotFound(t *testing.T) {
	r, _ := setupTestRouter(t)

	rec := do(t, r, "GET", "/api/employees/999999/tasks", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if resp := decodeError(t, rec); resp.Message != "Employee not found" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

func TestInvalidIdentifier_AllOperations(t *testing.T) {
	r, _ := setupTestRouter(t)

	tests := []struct {
		method string
		target string
		body   string
	}{
		{"GET", "/api/employees/abc", ""},
		{"GET", "/api/employees/abc/tasks", ""},
		{"POST", "/api/employees/abc/tasks", `{"text":"x"}`},
		{"PUT", "/api/employees/abc/tasks", `{"todo":[],"done":[]}`},
		{"DELETE", "/api/employees/abc/tasks/x", ""},
		{"GET", "/api/employees/-3/tasks", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, r, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			decodeError(t, rec)
		})
	}
}

func TestCreateTaskHandler_Scenario(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{EmpID: 139})

	rec := do(t, r, "POST", "/api/employees/139/tasks", `{"text":"file expense report"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("expected generated id, got %q (%v)", rec.Body.String(), err)
	}

	board := decodeBoard(t, do(t, r, "GET", "/api/employees/139/tasks", ""))
	if len(board.Todo) != 1 || board.Todo[0] != (models.Task{ID: created.ID, Text: "file expense report"}) {
		t.Errorf("unexpected todo: %v", board.Todo)
	}
	if len(board.Done) != 0 {
		t.Errorf("expected empty done, got %v", board.Done)
	}
}

func TestCreateTaskHandler_MissingText(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{EmpID: 139})

	rec := do(t, r, "POST", "/api/employees/139/tasks", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	resp := decodeError(t, rec)
	if len(resp.ValidationErrors) == 0 || resp.ValidationErrors[0].Field != "text" {
		t.Errorf("expected violation naming text, got %+v", resp.ValidationErrors)
	}
}

func TestCreateTaskHandler_NotFoundBeatsInvalidPayload(t *testing.T) {
	r, _ := setupTestRouter(t)

	rec := do(t, r, "POST", "/api/employees/42/tasks", `{}`)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestCreateTaskHandler_BodyTooLarge(t *testing.T) {
	h, s := setupTestHandlers(t)
	h.maxBodyBytes = 16
	seed(t, s, models.Employee{EmpID: 139})
	r := chi.NewRouter()
	h.Routes(r)

	rec := do(t, r, "POST", "/api/employees/139/tasks", `{"text":"`+strings.Repeat("x", 64)+`"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	resp := decodeError(t, rec)
	if len(resp.ValidationErrors) == 0 || resp.ValidationErrors[0].Rule != "max_bytes" {
		t.Errorf("expected max_bytes violation, got %+v", resp.ValidationErrors)
	}
}

func TestReplaceTasksHandler_MoveScenario(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{EmpID: 139, Todo: []models.Task{{ID: "X", Text: "file expense report"}}})

	rec := do(t, r, "PUT", "/api/employees/139/tasks", `{"todo":[],"done":[{"id":"X","text":"file expense report"}]}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}

	board := decodeBoard(t, do(t, r, "GET", "/api/employees/139/tasks", ""))
	if len(board.Todo) != 0 {
		t.Errorf("expected empty todo, got %v", board.Todo)
	}
	if len(board.Done) != 1 || board.Done[0].ID != "X" {
		t.Errorf("expected X in done, got %v", board.Done)
	}
}

func TestReplaceTasksHandler_RoundTrip(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{
		EmpID: 139,
		Todo:  []models.Task{{ID: "b", Text: "B"}, {ID: "a", Text: "A"}},
		Done:  []models.Task{{ID: "c", Text: "C"}},
	})

	before := do(t, r, "GET", "/api/employees/139/tasks", "").Body.String()

	var board models.TaskBoard
	if err := json.Unmarshal([]byte(before), &board); err != nil {
		t.Fatalf("failed to decode board: %v", err)
	}
	payload, _ := json.Marshal(map[string]interface{}{"todo": board.Todo, "done": board.Done})

	rec := do(t, r, "PUT", "/api/employees/139/tasks", string(payload))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}

	if after := do(t, r, "GET", "/api/employees/139/tasks", "").Body.String(); after != before {
		t.Errorf("expected unchanged board %s, got %s", before, after)
	}
}

func TestReplaceTasksHandler_RejectsUndeclaredFields(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{EmpID: 139})

	rec := do(t, r, "PUT", "/api/employees/139/tasks", `{"todo":[{"_id":"a","text":"A"}],"done":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if resp := decodeError(t, rec); len(resp.ValidationErrors) == 0 {
		t.Error("expected validation errors")
	}
}

func TestDeleteTaskHandler_Twice(t *testing.T) {
	r, s := setupTestRouter(t)
	seed(t, s, models.Employee{
		EmpID: 139,
		Todo:  []models.Task{{ID: "a", Text: "A"}, {ID: "X", Text: "file expense report"}, {ID: "b", Text: "B"}},
	})

	first := do(t, r, "DELETE", "/api/employees/139/tasks/X", "")
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, first.Code, first.Body.String())
	}

	second := do(t, r, "DELETE", "/api/employees/139/tasks/X", "")
	if second.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, second.Code)
	}
	decodeError(t, second)

	board := decodeBoard(t, do(t, r, "GET", "/api/employees/139/tasks", ""))
	want := []models.Task{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}
	if len(board.Todo) != 2 || board.Todo[0] != want[0] || board.Todo[1] != want[1] {
		t.Errorf("expected %v, got %v", want, board.Todo)
	}
}

func TestDeleteTaskHandler_NotFound(t *testing.T) {
	r, _ := setupTestRouter(t)

	rec := do(t, r, "DELETE", "/api/employees/139/tasks/X", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	r, _ := setupTestRouter(t)

	if rec := do(t, r, "GET", "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	} else {
		decodeError(t, rec)
	}

	if rec := do(t, r, "PATCH", "/api/employees/139/tasks", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	} else {
		decodeError(t, rec)
	}
}

func TestHealthHandler(t *testing.T) {
	r, _ := setupTestRouter(t)

	rec := do(t, r, "GET", "/api/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRecoverer(t *testing.T) {
	h, _ := setupTestHandlers(t)

	handler := h.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if resp := decodeError(t, rec); resp.Message != "Internal Server Error" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
}

type unavailableStore struct {
	*store.SQLiteStore
}

func (unavailableStore) FindEmployee(context.Context, int64, store.Projection) (*models.Employee, error) {
	return nil, errors.New("connection refused")
}

func (unavailableStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestStoreFailure_InternalServerError(t *testing.T) {
	_, s := setupTestHandlers(t)
	schemas, err := validation.Compile(validation.Options{})
	if err != nil {
		t.Fatalf("failed to compile schemas: %v", err)
	}
	logger := log.New()
	logger.SetOutput(io.Discard)

	h := New(tasks.NewService(unavailableStore{SQLiteStore: s}, schemas, logger), logger, 0)
	r := chi.NewRouter()
	h.Routes(r)

	requests := []struct {
		method, target, body string
	}{
		{"GET", "/api/employees/139", ""},
		{"GET", "/api/employees/139/tasks", ""},
		{"POST", "/api/employees/139/tasks", `{"text":"file expense report"}`},
		{"PUT", "/api/employees/139/tasks", `{"todo":[],"done":[]}`},
		{"DELETE", "/api/employees/139/tasks/x", ""},
	}
	for _, req := range requests {
		rec := do(t, r, req.method, req.target, req.body)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s %s: expected status %d, got %d", req.method, req.target, http.StatusInternalServerError, rec.Code)
			continue
		}
		resp := decodeError(t, rec)
		if resp.Message != "Internal Server Error" {
			t.Errorf("%s %s: unexpected message: %q", req.method, req.target, resp.Message)
		}
		if strings.Contains(rec.Body.String(), "connection refused") {
			t.Errorf("%s %s: store error leaked into response: %s", req.method, req.target, rec.Body.String())
		}
	}

	if rec := do(t, r, "GET", "/api/health", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected health status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}
