package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind identifies a button press sent by the chat transport.
type ActionKind string

const (
	ActionMainMenu             ActionKind = "back_to_main"
	ActionHelp                 ActionKind = "help"
	ActionCancel               ActionKind = "cancel"
	ActionNewProject           ActionKind = "new_project"
	ActionNewTask              ActionKind = "new_task"
	ActionAddTaskToProject     ActionKind = "add_task_to_"
	ActionPickProject          ActionKind = "new_task_project_"
	ActionEditProject          ActionKind = "edit_project_"
	ActionEditTask             ActionKind = "edit_task_"
	ActionEditField            ActionKind = "edit_field_"
	ActionEditDeadline         ActionKind = "edit_deadline_"
	ActionEditComment          ActionKind = "edit_comment_"
	ActionListProjects         ActionKind = "list_projects"
	ActionShowProjectTasks     ActionKind = "project_tasks_"
	ActionShowProject          ActionKind = "project_"
	ActionShowTask             ActionKind = "task_"
	ActionCompleteTask         ActionKind = "complete_task_"
	ActionReopenTask           ActionKind = "reopen_task_"
	ActionConfirmDeleteProject ActionKind = "confirm_delete_project_"
	ActionConfirmDeleteTask    ActionKind = "confirm_delete_task_"
	ActionDeleteProject        ActionKind = "delete_project_"
	ActionDeleteTask           ActionKind = "delete_task_"
	ActionShowReminders        ActionKind = "show_reminders"
)

type actionArg int

const (
	argNone actionArg = iota
	argID
	argField
)

// actionTable is matched in order; a prefix that is itself a prefix of a
// later entry must come after it.
var actionTable = []struct {
	kind ActionKind
	arg  actionArg
}{
	{ActionMainMenu, argNone},
	{ActionHelp, argNone},
	{ActionCancel, argNone},
	{ActionNewProject, argNone},
	{ActionNewTask, argNone},
	{ActionListProjects, argNone},
	{ActionShowReminders, argNone},
	{ActionAddTaskToProject, argID},
	{ActionPickProject, argID},
	{ActionEditProject, argID},
	{ActionEditTask, argID},
	{ActionEditField, argField},
	{ActionEditDeadline, argID},
	{ActionEditComment, argID},
	{ActionShowProjectTasks, argID},
	{ActionShowProject, argID},
	{ActionShowTask, argID},
	{ActionCompleteTask, argID},
	{ActionReopenTask, argID},
	{ActionConfirmDeleteProject, argID},
	{ActionConfirmDeleteTask, argID},
	{ActionDeleteProject, argID},
	{ActionDeleteTask, argID},
}

// Action is a parsed button press.
type Action struct {
	Kind  ActionKind
	ID    int64
	Field TaskField
}

// ParseAction decodes callback data such as "edit_project_12".
func ParseAction(raw string) (Action, error) {
	raw = strings.TrimSpace(raw)
	if raw == "start" {
		return Action{Kind: ActionMainMenu}, nil
	}
	for _, entry := range actionTable {
		prefix := string(entry.kind)
		switch entry.arg {
		case argNone:
			if raw == prefix {
				return Action{Kind: entry.kind}, nil
			}
		case argID:
			if !strings.HasPrefix(raw, prefix) {
				continue
			}
			id, err := strconv.ParseInt(raw[len(prefix):], 10, 64)
			if err != nil || id <= 0 {
				return Action{}, fmt.Errorf("%w: bad id in action %q", ErrInvalidInput, raw)
			}
			return Action{Kind: entry.kind, ID: id}, nil
		case argField:
			if !strings.HasPrefix(raw, prefix) {
				continue
			}
			field := TaskField(raw[len(prefix):])
			if !field.Valid() {
				return Action{}, fmt.Errorf("%w: bad field in action %q", ErrInvalidInput, raw)
			}
			return Action{Kind: entry.kind, Field: field}, nil
		}
	}
	return Action{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
}

// String encodes the action back into callback data.
func (a Action) String() string {
	switch {
	case a.Field != "":
		return string(a.Kind) + string(a.Field)
	case a.ID != 0:
		return string(a.Kind) + strconv.FormatInt(a.ID, 10)
	default:
		return string(a.Kind)
	}
}

// ActionFor builds callback data for an id-carrying action.
func ActionFor(kind ActionKind, id int64) string {
	return Action{Kind: kind, ID: id}.String()
}
