// Package domain defines the core domain models for the planner bot.
package domain

// Workflow identifies which multi-step data-entry flow a session is in.
type Workflow string

const (
	WorkflowNone          Workflow = ""
	WorkflowCreateProject Workflow = "create_project"
	WorkflowCreateTask    Workflow = "create_task"
	WorkflowEditProject   Workflow = "edit_project"
	WorkflowEditTask      Workflow = "edit_task"
)

// TaskStatus represents the status of a task.
type TaskStatus string

const (
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusActive || s == TaskStatusCompleted
}

// TaskField names a single editable task field.
type TaskField string

const (
	TaskFieldTitle       TaskField = "title"
	TaskFieldDescription TaskField = "description"
	TaskFieldDeadline    TaskField = "deadline"
	TaskFieldComment     TaskField = "comment"
)

// TaskFields lists the editable task fields in menu order.
var TaskFields = []TaskField{TaskFieldTitle, TaskFieldDescription, TaskFieldDeadline, TaskFieldComment}

// Valid reports whether f is an editable task field.
func (f TaskField) Valid() bool {
	switch f {
	case TaskFieldTitle, TaskFieldDescription, TaskFieldDeadline, TaskFieldComment:
		return true
	}
	return false
}

// Outcome is the terminal or non-terminal signal returned for one inbound event.
type Outcome string

const (
	OutcomePrompt    Outcome = "prompt"
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
	// OutcomeMenu is a stateless screen outside any workflow.
	OutcomeMenu Outcome = "menu"
)
