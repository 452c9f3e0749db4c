package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// State is a position inside one of the workflows. The set of
// implementations is closed; every variant carries exactly the answers
// collected before it was reached.
type State interface {
	domain.State
	sealed()
}

// ProjectName asks for the name of a new project.
type ProjectName struct{}

// ProjectDescription asks for the optional description of a new project.
type ProjectDescription struct {
	ProjectName string `json:"name"`
}

// TaskProject asks which project a new task belongs to.
type TaskProject struct{}

// TaskTitle asks for the title of a new task.
type TaskTitle struct {
	ProjectID int64 `json:"project_id"`
}

type TaskDescription struct {
	ProjectID int64  `json:"project_id"`
	Title     string `json:"title"`
}

type TaskDeadline struct {
	ProjectID   int64   `json:"project_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

type TaskComment struct {
	ProjectID   int64     `json:"project_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Deadline    time.Time `json:"deadline"`
}

// EditProjectName asks for the replacement name of an existing project.
type EditProjectName struct {
	ProjectID int64  `json:"project_id"`
	Current   string `json:"current"`
}

// EditProjectDescription asks for the replacement description; the commit
// overwrites both name and description.
type EditProjectDescription struct {
	ProjectID   int64  `json:"project_id"`
	ProjectName string `json:"name"`
}

// EditTaskField asks which task field to change.
type EditTaskField struct {
	TaskID int64  `json:"task_id"`
	Title  string `json:"title"`
}

// EditTaskValue asks for the new value of one task field.
type EditTaskValue struct {
	TaskID int64            `json:"task_id"`
	Field  domain.TaskField `json:"field"`
}

func (ProjectName) Workflow() domain.Workflow            { return domain.WorkflowCreateProject }
func (ProjectDescription) Workflow() domain.Workflow     { return domain.WorkflowCreateProject }
func (TaskProject) Workflow() domain.Workflow            { return domain.WorkflowCreateTask }
func (TaskTitle) Workflow() domain.Workflow              { return domain.WorkflowCreateTask }
func (TaskDescription) Workflow() domain.Workflow        { return domain.WorkflowCreateTask }
func (TaskDeadline) Workflow() domain.Workflow           { return domain.WorkflowCreateTask }
func (TaskComment) Workflow() domain.Workflow            { return domain.WorkflowCreateTask }
func (EditProjectName) Workflow() domain.Workflow        { return domain.WorkflowEditProject }
func (EditProjectDescription) Workflow() domain.Workflow { return domain.WorkflowEditProject }
func (EditTaskField) Workflow() domain.Workflow          { return domain.WorkflowEditTask }
func (EditTaskValue) Workflow() domain.Workflow          { return domain.WorkflowEditTask }

func (ProjectName) Name() string            { return "name" }
func (ProjectDescription) Name() string     { return "description" }
func (TaskProject) Name() string            { return "select_project" }
func (TaskTitle) Name() string              { return "title" }
func (TaskDescription) Name() string        { return "description" }
func (TaskDeadline) Name() string           { return "deadline" }
func (TaskComment) Name() string            { return "comment" }
func (EditProjectName) Name() string        { return "name" }
func (EditProjectDescription) Name() string { return "description" }
func (EditTaskField) Name() string          { return "select_field" }
func (EditTaskValue) Name() string          { return "value" }

func (ProjectName) sealed()            {}
func (ProjectDescription) sealed()     {}
func (TaskProject) sealed()            {}
func (TaskTitle) sealed()              {}
func (TaskDescription) sealed()        {}
func (TaskDeadline) sealed()           {}
func (TaskComment) sealed()            {}
func (EditProjectName) sealed()        {}
func (EditProjectDescription) sealed() {}
func (EditTaskField) sealed()          {}
func (EditTaskValue) sealed()          {}

// sessionAt wraps a state into an active session.
func sessionAt(userID string, s State) domain.Session {
	return domain.Session{UserID: userID, Workflow: s.Workflow(), State: s}
}

type stateKey struct {
	workflow domain.Workflow
	name     string
}

var decoders = map[stateKey]func([]byte) (State, error){}

func register[T State]() {
	var zero T
	decoders[stateKey{zero.Workflow(), zero.Name()}] = func(fields []byte) (State, error) {
		var s T
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}

func init() {
	register[ProjectName]()
	register[ProjectDescription]()
	register[TaskProject]()
	register[TaskTitle]()
	register[TaskDescription]()
	register[TaskDeadline]()
	register[TaskComment]()
	register[EditProjectName]()
	register[EditProjectDescription]()
	register[EditTaskField]()
	register[EditTaskValue]()
}

// Codec serializes workflow states for persistent session storage.
type Codec struct{}

// Encode returns the state's name and its accumulated fields as JSON.
func (Codec) Encode(state domain.State) (string, []byte, error) {
	s, ok := state.(State)
	if !ok {
		return "", nil, fmt.Errorf("unsupported state type %T", state)
	}
	fields, err := json.Marshal(s)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal state %s: %w", s.Name(), err)
	}
	return s.Name(), fields, nil
}

// Decode rebuilds a state from its persisted form.
func (Codec) Decode(workflow domain.Workflow, name string, fields []byte) (domain.State, error) {
	decode, ok := decoders[stateKey{workflow, name}]
	if !ok {
		return nil, fmt.Errorf("unknown state %s/%s", workflow, name)
	}
	s, err := decode(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state %s/%s: %w", workflow, name, err)
	}
	return s, nil
}
