package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"nodebucket/internal/models"
)

type seedFile struct {
	Employees []seedEmployee `yaml:"employees"`
}

type seedEmployee struct {
	EmpID     int64      `yaml:"empId"`
	FirstName string     `yaml:"firstName"`
	LastName  string     `yaml:"lastName"`
	Todo      []seedTask `yaml:"todo"`
	Done      []seedTask `yaml:"done"`
}

type seedTask struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// LoadSeedFile reads operator-provided employees from a YAML file.
func LoadSeedFile(path string) ([]models.Employee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	employees := make([]models.Employee, 0, len(f.Employees))
	seen := make(map[int64]struct{}, len(f.Employees))
	for i, se := range f.Employees {
		if se.EmpID <= 0 {
			return nil, fmt.Errorf("seed employee #%d: empId must be a positive integer", i+1)
		}
		if _, dup := seen[se.EmpID]; dup {
			return nil, fmt.Errorf("seed employee #%d: duplicate empId %d", i+1, se.EmpID)
		}
		seen[se.EmpID] = struct{}{}

		e := models.Employee{
			EmpID:     se.EmpID,
			FirstName: se.FirstName,
			LastName:  se.LastName,
			Todo:      toTasks(se.Todo),
			Done:      toTasks(se.Done),
		}
		for _, t := range append(append([]models.Task{}, e.Todo...), e.Done...) {
			if err := t.Validate(); err != nil {
				return nil, fmt.Errorf("seed employee %d: %w", se.EmpID, err)
			}
		}
		if dups := models.DuplicateTaskIDs(e.Todo, e.Done); len(dups) > 0 {
			return nil, fmt.Errorf("seed employee %d: duplicate task id %q", se.EmpID, dups[0])
		}
		e.Normalize()
		employees = append(employees, e)
	}

	return employees, nil
}

func toTasks(in []seedTask) []models.Task {
	tasks := make([]models.Task, 0, len(in))
	for _, t := range in {
		tasks = append(tasks, models.Task{ID: t.ID, Text: t.Text})
	}
	return tasks
}
