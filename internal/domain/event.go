package domain

// EventKind classifies an inbound event handed to the workflow engine.
type EventKind string

const (
	EventText        EventKind = "text"
	EventStart       EventKind = "start"
	EventPickProject EventKind = "pick_project"
	EventPickField   EventKind = "pick_field"
	EventCancel      EventKind = "cancel"
)

// Event is one inbound structured selection or free-text message.
type Event struct {
	Kind      EventKind
	Workflow  Workflow
	ProjectID int64
	TaskID    int64
	Field     TaskField
	Text      string
}

// TextEvent wraps raw free text.
func TextEvent(text string) Event {
	return Event{Kind: EventText, Text: text}
}

// CancelEvent aborts whatever workflow is active.
func CancelEvent() Event {
	return Event{Kind: EventCancel}
}

// StartEvent starts a workflow that needs no reference id.
func StartEvent(w Workflow) Event {
	return Event{Kind: EventStart, Workflow: w}
}

// StartProjectEvent starts a workflow bound to a project (edit project, add task to project).
func StartProjectEvent(w Workflow, projectID int64) Event {
	return Event{Kind: EventStart, Workflow: w, ProjectID: projectID}
}

// StartEditTaskEvent starts editing a task; field may be empty to ask which field.
func StartEditTaskEvent(taskID int64, field TaskField) Event {
	return Event{Kind: EventStart, Workflow: WorkflowEditTask, TaskID: taskID, Field: field}
}

// PickProjectEvent selects a project from a choice list.
func PickProjectEvent(projectID int64) Event {
	return Event{Kind: EventPickProject, ProjectID: projectID}
}

// PickFieldEvent selects a task field from a choice list.
func PickFieldEvent(field TaskField) Event {
	return Event{Kind: EventPickField, Field: field}
}

// Choice is one selectable option rendered next to a reply.
type Choice struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Reply is what the caller renders back to the user.
type Reply struct {
	Outcome Outcome  `json:"outcome"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
}
