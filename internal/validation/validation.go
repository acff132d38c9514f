// Package validation checks request payloads against fixed JSON schemas and
// turns valid payloads into typed requests.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"nodebucket/internal/models"
)

const rootField = "(root)"

// Violation describes one rule a payload broke.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is returned when a payload fails validation.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return "invalid payload: " + strings.Join(msgs, "; ")
}

// Options controls schema compilation.
type Options struct {
	// StrictCreate rejects create-task payloads carrying fields other than text.
	StrictCreate bool
}

// Schemas holds the compiled request schemas. It is built once at startup and
// only read afterwards.
type Schemas struct {
	createTask   *gojsonschema.Schema
	replaceTasks *gojsonschema.Schema
}

// CreateTaskRequest is a create-task payload that passed validation.
type CreateTaskRequest struct {
	Text string
}

// ReplaceTasksRequest is a bulk replace payload that passed validation.
type ReplaceTasksRequest struct {
	Todo []models.Task
	Done []models.Task
}

// Compile builds the request schemas.
func Compile(opts Options) (*Schemas, error) {
	create, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(createTaskSchema(!opts.StrictCreate)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile create task schema: %w", err)
	}

	replace, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(replaceTasksSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile replace tasks schema: %w", err)
	}

	return &Schemas{createTask: create, replaceTasks: replace}, nil
}

// Validate checks payload against schema and returns every violation found.
// The error is only set when validation itself could not run.
func Validate(schema *gojsonschema.Schema, payload []byte) ([]Violation, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return []Violation{{Field: rootField, Rule: "required", Message: "request body is required"}}, nil
	}
	if !json.Valid(payload) {
		return []Violation{{Field: rootField, Rule: "invalid_json", Message: "request body is not valid JSON"}}, nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to validate payload: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, Violation{
			Field:   violationField(re),
			Rule:    re.Type(),
			Message: re.Description(),
		})
	}
	return violations, nil
}

// violationField names the offending property for errors that gojsonschema
// reports against the enclosing object.
func violationField(re gojsonschema.ResultError) string {
	field := re.Field()
	switch re.Type() {
	case "required", "additional_property_not_allowed":
		prop, ok := re.Details()["property"].(string)
		if !ok || prop == "" || field == prop || strings.HasSuffix(field, "."+prop) {
			return field
		}
		if field == rootField {
			return prop
		}
		return field + "." + prop
	}
	return field
}

// ReadPayload reads a request body. Bodies cut off by http.MaxBytesReader are
// reported as a violation rather than a read failure.
func ReadPayload(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &Error{Violations: []Violation{{
				Field:   rootField,
				Rule:    "max_bytes",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}}}
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return payload, nil
}

// CreateTask validates a create-task payload.
func (s *Schemas) CreateTask(payload []byte) (CreateTaskRequest, error) {
	violations, err := Validate(s.createTask, payload)
	if err != nil {
		return CreateTaskRequest{}, err
	}
	if len(violations) > 0 {
		return CreateTaskRequest{}, &Error{Violations: violations}
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return CreateTaskRequest{}, fmt.Errorf("failed to decode create task payload: %w", err)
	}
	return CreateTaskRequest{Text: body.Text}, nil
}

// ReplaceTasks validates a bulk replace payload, including id uniqueness
// across both lists.
func (s *Schemas) ReplaceTasks(payload []byte) (ReplaceTasksRequest, error) {
	violations, err := Validate(s.replaceTasks, payload)
	if err != nil {
		return ReplaceTasksRequest{}, err
	}
	if len(violations) > 0 {
		return ReplaceTasksRequest{}, &Error{Violations: violations}
	}

	var body struct {
		Todo []models.Task `json:"todo"`
		Done []models.Task `json:"done"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ReplaceTasksRequest{}, fmt.Errorf("failed to decode replace tasks payload: %w", err)
	}

	if dups := models.DuplicateTaskIDs(body.Todo, body.Done); len(dups) > 0 {
		for _, id := range dups {
			violations = append(violations, Violation{
				Field:   "id",
				Rule:    "unique",
				Message: fmt.Sprintf("task id %q appears more than once", id),
			})
		}
		return ReplaceTasksRequest{}, &Error{Violations: violations}
	}

	if body.Todo == nil {
		body.Todo = []models.Task{}
	}
	if body.Done == nil {
		body.Done = []models.Task{}
	}
	return ReplaceTasksRequest{Todo: body.Todo, Done: body.Done}, nil
}
