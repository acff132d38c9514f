package models

// Employee is the per-employee document holding identity and both task lists.
type Employee struct {
	EmpID     int64  `json:"empId" bson:"empId"`
	FirstName string `json:"firstName,omitempty" bson:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty" bson:"lastName,omitempty"`
	Todo      []Task `json:"todo" bson:"todo"`
	Done      []Task `json:"done" bson:"done"`
}

// TaskBoard is the task-only view of an employee returned to the board.
type TaskBoard struct {
	EmpID int64  `json:"empId"`
	Todo  []Task `json:"todo"`
	Done  []Task `json:"done"`
}

// Normalize replaces missing task lists with empty ones so they encode as [].
func (e *Employee) Normalize() {
	if e.Todo == nil {
		e.Todo = []Task{}
	}
	if e.Done == nil {
		e.Done = []Task{}
	}
}

// Board returns the employee's task lists without any other attributes.
func (e *Employee) Board() TaskBoard {
	e.Normalize()
	return TaskBoard{
		EmpID: e.EmpID,
		Todo:  e.Todo,
		Done:  e.Done,
	}
}

// WithoutTask returns copies of both lists with the given task removed and
// how many entries matched.
func (e *Employee) WithoutTask(taskID string) (todo, done []Task, removed int) {
	todo, n := FilterTasks(e.Todo, taskID)
	done, m := FilterTasks(e.Done, taskID)
	return todo, done, n + m
}
