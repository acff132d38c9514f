package models

import (
	"errors"
	"strings"
)

// Task is a single unit of work on an employee's board.
type Task struct {
	ID   string `json:"id" bson:"_id"`
	Text string `json:"text" bson:"text"`
}

// Validate checks that the task has valid field values.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("id is required")
	}

	if strings.TrimSpace(t.Text) == "" {
		return errors.New("text is required")
	}

	return nil
}

// FilterTasks returns the tasks whose id differs from id, keeping their
// relative order, and the number of tasks that were dropped.
func FilterTasks(tasks []Task, id string) ([]Task, int) {
	kept := make([]Task, 0, len(tasks))
	removed := 0
	for _, t := range tasks {
		if t.ID == id {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	return kept, removed
}

// DuplicateTaskIDs reports ids that appear more than once across the given
// lists, in first-seen order of their second occurrence.
func DuplicateTaskIDs(lists ...[]Task) []string {
	seen := make(map[string]int)
	var dups []string
	for _, list := range lists {
		for _, t := range list {
			seen[t.ID]++
			if seen[t.ID] == 2 {
				dups = append(dups, t.ID)
			}
		}
	}
	return dups
}
