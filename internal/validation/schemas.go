package validation

import "fmt"

const taskTextSchema = `{"type": "string", "minLength": 1, "pattern": "\\S"}`

func createTaskSchema(allowExtra bool) string {
	return fmt.Sprintf(`{
		"type": "object",
		"properties": {
			"text": %s
		},
		"required": ["text"],
		"additionalProperties": %t
	}`, taskTextSchema, allowExtra)
}

var replaceTasksSchema = fmt.Sprintf(`{
	"definitions": {
		"task": {
			"type": "object",
			"properties": {
				"id": {"type": "string", "minLength": 1},
				"text": %s
			},
			"required": ["id", "text"],
			"additionalProperties": false
		}
	},
	"type": "object",
	"properties": {
		"todo": {"type": "array", "items": {"$ref": "#/definitions/task"}},
		"done": {"type": "array", "items": {"$ref": "#/definitions/task"}}
	},
	"required": ["todo", "done"],
	"additionalProperties": false
}`, taskTextSchema)
