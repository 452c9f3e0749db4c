// Package workflow implements the per-user multi-step data entry flows:
// create project, create task, edit project and edit task.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
	"github.com/ivandudin29/tg-notes-bot/internal/session"
)

// Repository is the part of the persistent store the engine reads and commits to.
type Repository interface {
	CreateProject(ctx context.Context, ownerID, name string, description *string) (int64, error)
	ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error)
	GetProject(ctx context.Context, projectID int64, ownerID string) (*domain.Project, error)
	UpdateProject(ctx context.Context, projectID int64, ownerID, name string, description *string) (bool, error)
	CreateTask(ctx context.Context, projectID int64, title string, description *string, deadline time.Time, comment *string) (int64, error)
	GetTask(ctx context.Context, taskID int64, ownerID string) (*domain.Task, error)
	UpdateTaskTitle(ctx context.Context, taskID int64, ownerID, title string) (bool, error)
	UpdateTaskDescription(ctx context.Context, taskID int64, ownerID string, description *string) (bool, error)
	UpdateTaskDeadline(ctx context.Context, taskID int64, ownerID string, deadline time.Time) (bool, error)
	UpdateTaskComment(ctx context.Context, taskID int64, ownerID string, comment *string) (bool, error)
}

// Engine drives workflow sessions. It is safe for concurrent use; events of
// one user are serialized through the session store's lock.
type Engine struct {
	repo     Repository
	sessions session.Store
	text     *render.Localizer
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for deadline validation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocalizer sets the language and time zone of prompts and deadlines.
func WithLocalizer(l *render.Localizer) Option {
	return func(e *Engine) { e.text = l }
}

// New creates a workflow engine.
func New(repo Repository, sessions session.Store, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		sessions: sessions,
		text:     render.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active reports whether the user is inside a workflow.
func (e *Engine) Active(ctx context.Context, userID string) (bool, error) {
	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return sess.Active(), nil
}

// Handle applies one inbound event to the user's session and returns what to
// show the user.
func (e *Engine) Handle(ctx context.Context, userID string, ev domain.Event) (domain.Reply, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess, err := e.sessions.Get(ctx, userID)
	if err != nil {
		log.Printf("ERROR: failed to load session for user %s: %v", userID, err)
		return e.failed("error.generic"), err
	}

	next, reply := e.step(ctx, userID, sess, ev)

	if err := e.sessions.Set(ctx, userID, next); err != nil {
		if reply.Outcome == domain.OutcomeCompleted {
			// the session was released before the commit
			log.Printf("WARN: failed to clear session for user %s after commit: %v", userID, err)
			return reply, nil
		}
		log.Printf("ERROR: failed to store session for user %s: %v", userID, err)
		return e.failed("error.generic"), err
	}
	return reply, nil
}

// release clears the stored session before a commit write.
func (e *Engine) release(ctx context.Context, userID string) error {
	if err := e.sessions.Clear(ctx, userID); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	return nil
}

// step computes the next session and reply. The only side effects are store
// reads and, on the last state of a workflow, releasing the stored session
// followed by a single store write.
func (e *Engine) step(ctx context.Context, userID string, sess domain.Session, ev domain.Event) (domain.Session, domain.Reply) {
	switch ev.Kind {
	case domain.EventCancel:
		return domain.EmptySession(userID), domain.Reply{
			Outcome: domain.OutcomeCancelled,
			Text:    e.text.Text("workflow.cancelled"),
		}
	case domain.EventStart:
		if sess.Active() {
			log.Printf("WARN: user %s started %s, discarding %s at %s", userID, ev.Workflow, sess.Workflow, sess.State.Name())
		}
		return e.start(ctx, userID, ev)
	}

	state, ok := sess.State.(State)
	if !sess.Active() || !ok {
		return domain.EmptySession(userID), e.failed("error.unknown_command")
	}

	switch s := state.(type) {
	case ProjectName:
		return e.onProjectName(ctx, userID, s, ev)
	case ProjectDescription:
		return e.onProjectDescription(ctx, userID, s, ev)
	case TaskProject:
		return e.onTaskProject(ctx, userID, s, ev)
	case TaskTitle:
		return e.onTaskTitle(ctx, userID, s, ev)
	case TaskDescription:
		return e.onTaskDescription(ctx, userID, s, ev)
	case TaskDeadline:
		return e.onTaskDeadline(ctx, userID, s, ev)
	case TaskComment:
		return e.onTaskComment(ctx, userID, s, ev)
	case EditProjectName:
		return e.onEditProjectName(ctx, userID, s, ev)
	case EditProjectDescription:
		return e.onEditProjectDescription(ctx, userID, s, ev)
	case EditTaskField:
		return e.onEditTaskField(ctx, userID, s, ev)
	case EditTaskValue:
		return e.onEditTaskValue(ctx, userID, s, ev)
	}
	return domain.EmptySession(userID), e.failed("error.unknown_command")
}

func (e *Engine) start(ctx context.Context, userID string, ev domain.Event) (domain.Session, domain.Reply) {
	empty := domain.EmptySession(userID)

	switch ev.Workflow {
	case domain.WorkflowCreateProject:
		return e.advance(ctx, userID, ProjectName{})

	case domain.WorkflowCreateTask:
		if ev.ProjectID != 0 {
			project, err := e.repo.GetProject(ctx, ev.ProjectID, userID)
			if err != nil {
				return empty, e.storeFailed(userID, "get project", err)
			}
			if project == nil {
				return empty, e.failed("error.project_not_found")
			}
			return e.advance(ctx, userID, TaskTitle{ProjectID: project.ID})
		}
		projects, err := e.repo.ListProjects(ctx, userID)
		if err != nil {
			return empty, e.storeFailed(userID, "list projects", err)
		}
		if len(projects) == 0 {
			return empty, e.failed("task.no_projects")
		}
		return sessionAt(userID, TaskProject{}), e.projectPrompt(projects)

	case domain.WorkflowEditProject:
		project, err := e.repo.GetProject(ctx, ev.ProjectID, userID)
		if err != nil {
			return empty, e.storeFailed(userID, "get project", err)
		}
		if project == nil {
			return empty, e.failed("error.project_not_found")
		}
		return e.advance(ctx, userID, EditProjectName{ProjectID: project.ID, Current: project.Name})

	case domain.WorkflowEditTask:
		task, err := e.repo.GetTask(ctx, ev.TaskID, userID)
		if err != nil {
			return empty, e.storeFailed(userID, "get task", err)
		}
		if task == nil {
			return empty, e.failed("error.task_not_found")
		}
		if ev.Field.Valid() {
			return e.advance(ctx, userID, EditTaskValue{TaskID: task.ID, Field: ev.Field})
		}
		return e.advance(ctx, userID, EditTaskField{TaskID: task.ID, Title: task.Title})
	}

	return empty, e.failed("error.unknown_command")
}

func (e *Engine) onProjectName(ctx context.Context, userID string, s ProjectName, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	name, err := requireText(ev.Text)
	if err != nil {
		return e.retry(ctx, userID, s, err)
	}
	return e.advance(ctx, userID, ProjectDescription{ProjectName: name})
}

func (e *Engine) onProjectDescription(ctx context.Context, userID string, s ProjectDescription, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	if err := e.release(ctx, userID); err != nil {
		return sessionAt(userID, s), e.storeFailed(userID, "create project", err)
	}
	if _, err := e.repo.CreateProject(ctx, userID, s.ProjectName, optionalText(ev.Text)); err != nil {
		return domain.EmptySession(userID), e.storeFailed(userID, "create project", err)
	}
	return domain.EmptySession(userID), e.completed("project.created", s.ProjectName)
}

func (e *Engine) onTaskProject(ctx context.Context, userID string, s TaskProject, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventPickProject {
		return e.retry(ctx, userID, s, invalid("workflow.choose_option"))
	}
	project, err := e.repo.GetProject(ctx, ev.ProjectID, userID)
	if err != nil {
		return domain.EmptySession(userID), e.storeFailed(userID, "get project", err)
	}
	if project == nil {
		return e.retry(ctx, userID, s, invalid("error.project_not_found"))
	}
	return e.advance(ctx, userID, TaskTitle{ProjectID: project.ID})
}

func (e *Engine) onTaskTitle(ctx context.Context, userID string, s TaskTitle, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	title, err := requireText(ev.Text)
	if err != nil {
		return e.retry(ctx, userID, s, err)
	}
	return e.advance(ctx, userID, TaskDescription{ProjectID: s.ProjectID, Title: title})
}

func (e *Engine) onTaskDescription(ctx context.Context, userID string, s TaskDescription, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	return e.advance(ctx, userID, TaskDeadline{
		ProjectID:   s.ProjectID,
		Title:       s.Title,
		Description: optionalText(ev.Text),
	})
}

func (e *Engine) onTaskDeadline(ctx context.Context, userID string, s TaskDeadline, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	deadline, err := ParseDeadline(ev.Text, e.text.Location(), e.now())
	if err != nil {
		return e.retry(ctx, userID, s, err)
	}
	return e.advance(ctx, userID, TaskComment{
		ProjectID:   s.ProjectID,
		Title:       s.Title,
		Description: s.Description,
		Deadline:    deadline,
	})
}

func (e *Engine) onTaskComment(ctx context.Context, userID string, s TaskComment, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	empty := domain.EmptySession(userID)

	// The project may have been deleted or the reference replayed since it was picked.
	project, err := e.repo.GetProject(ctx, s.ProjectID, userID)
	if err != nil {
		return empty, e.storeFailed(userID, "get project", err)
	}
	if project == nil {
		log.Printf("WARN: project %d vanished before task commit for user %s", s.ProjectID, userID)
		return empty, e.failed("error.project_not_found")
	}

	if err := e.release(ctx, userID); err != nil {
		return sessionAt(userID, s), e.storeFailed(userID, "create task", err)
	}
	if _, err := e.repo.CreateTask(ctx, project.ID, s.Title, s.Description, s.Deadline, optionalText(ev.Text)); err != nil {
		return empty, e.storeFailed(userID, "create task", err)
	}
	return empty, e.completed("task.created", s.Title, e.text.Deadline(s.Deadline))
}

func (e *Engine) onEditProjectName(ctx context.Context, userID string, s EditProjectName, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	name, err := requireText(ev.Text)
	if err != nil {
		return e.retry(ctx, userID, s, err)
	}
	return e.advance(ctx, userID, EditProjectDescription{ProjectID: s.ProjectID, ProjectName: name})
}

func (e *Engine) onEditProjectDescription(ctx context.Context, userID string, s EditProjectDescription, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}
	empty := domain.EmptySession(userID)
	if err := e.release(ctx, userID); err != nil {
		return sessionAt(userID, s), e.storeFailed(userID, "update project", err)
	}
	ok, err := e.repo.UpdateProject(ctx, s.ProjectID, userID, s.ProjectName, optionalText(ev.Text))
	if err != nil {
		return empty, e.storeFailed(userID, "update project", err)
	}
	if !ok {
		return empty, e.failed("error.project_not_found")
	}
	return empty, e.completed("edit_project.updated", s.ProjectName)
}

func (e *Engine) onEditTaskField(ctx context.Context, userID string, s EditTaskField, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventPickField || !ev.Field.Valid() {
		return e.retry(ctx, userID, s, invalid("workflow.choose_option"))
	}
	return e.advance(ctx, userID, EditTaskValue{TaskID: s.TaskID, Field: ev.Field})
}

func (e *Engine) onEditTaskValue(ctx context.Context, userID string, s EditTaskValue, ev domain.Event) (domain.Session, domain.Reply) {
	if ev.Kind != domain.EventText {
		return e.retry(ctx, userID, s, invalid("workflow.expect_text"))
	}

	var commit func() (bool, error)
	switch s.Field {
	case domain.TaskFieldTitle:
		title, err := requireText(ev.Text)
		if err != nil {
			return e.retry(ctx, userID, s, err)
		}
		commit = func() (bool, error) { return e.repo.UpdateTaskTitle(ctx, s.TaskID, userID, title) }
	case domain.TaskFieldDescription:
		description := optionalText(ev.Text)
		commit = func() (bool, error) { return e.repo.UpdateTaskDescription(ctx, s.TaskID, userID, description) }
	case domain.TaskFieldDeadline:
		deadline, err := ParseDeadline(ev.Text, e.text.Location(), e.now())
		if err != nil {
			return e.retry(ctx, userID, s, err)
		}
		commit = func() (bool, error) { return e.repo.UpdateTaskDeadline(ctx, s.TaskID, userID, deadline) }
	case domain.TaskFieldComment:
		comment := optionalText(ev.Text)
		commit = func() (bool, error) { return e.repo.UpdateTaskComment(ctx, s.TaskID, userID, comment) }
	default:
		return domain.EmptySession(userID), e.failed("error.unknown_command")
	}

	empty := domain.EmptySession(userID)
	if err := e.release(ctx, userID); err != nil {
		return sessionAt(userID, s), e.storeFailed(userID, "update task "+string(s.Field), err)
	}
	ok, err := commit()
	if err != nil {
		return empty, e.storeFailed(userID, "update task "+string(s.Field), err)
	}
	if !ok {
		return empty, e.failed("error.task_not_found")
	}
	return empty, e.completed("edit_task.updated")
}

// advance moves the session to next and prompts for it.
func (e *Engine) advance(ctx context.Context, userID string, next State) (domain.Session, domain.Reply) {
	reply, err := e.prompt(ctx, userID, next)
	if err != nil {
		return domain.EmptySession(userID), e.storeFailed(userID, "render prompt", err)
	}
	return sessionAt(userID, next), reply
}

// retry keeps the session in s and repeats its prompt with the validation message.
func (e *Engine) retry(ctx context.Context, userID string, s State, cause error) (domain.Session, domain.Reply) {
	reply, err := e.prompt(ctx, userID, s)
	if err != nil {
		return domain.EmptySession(userID), e.storeFailed(userID, "render prompt", err)
	}
	var verr *ValidationError
	if errors.As(cause, &verr) {
		reply.Text = e.text.Text(verr.Key) + "\n" + reply.Text
	}
	return sessionAt(userID, s), reply
}

// prompt renders the question asked in state s.
func (e *Engine) prompt(ctx context.Context, userID string, s State) (domain.Reply, error) {
	example := e.text.Deadline(e.now().Add(24 * time.Hour))

	switch st := s.(type) {
	case ProjectName:
		return e.ask("project.ask_name"), nil
	case ProjectDescription:
		return e.ask("project.ask_description"), nil
	case TaskProject:
		projects, err := e.repo.ListProjects(ctx, userID)
		if err != nil {
			return domain.Reply{}, err
		}
		return e.projectPrompt(projects), nil
	case TaskTitle:
		return e.ask("task.ask_title"), nil
	case TaskDescription:
		return e.ask("task.ask_description"), nil
	case TaskDeadline:
		return e.ask("task.ask_deadline", example), nil
	case TaskComment:
		return e.ask("task.ask_comment"), nil
	case EditProjectName:
		return e.ask("edit_project.ask_name", st.Current), nil
	case EditProjectDescription:
		return e.ask("edit_project.ask_description"), nil
	case EditTaskField:
		reply := e.ask("edit_task.ask_field", st.Title)
		fields := make([]domain.Choice, 0, len(domain.TaskFields)+1)
		for _, f := range domain.TaskFields {
			fields = append(fields, domain.Choice{
				Label:  e.text.Field(f),
				Action: domain.Action{Kind: domain.ActionEditField, Field: f}.String(),
			})
		}
		reply.Choices = append(fields, reply.Choices...)
		return reply, nil
	case EditTaskValue:
		if st.Field == domain.TaskFieldDeadline {
			return e.ask("edit_task.ask_deadline", example), nil
		}
		return e.ask("edit_task.ask_" + string(st.Field)), nil
	}
	return domain.Reply{}, fmt.Errorf("no prompt for state %T", s)
}

func (e *Engine) projectPrompt(projects []domain.Project) domain.Reply {
	reply := e.ask("task.ask_project")
	choices := make([]domain.Choice, 0, len(projects)+1)
	for _, p := range projects {
		choices = append(choices, domain.Choice{
			Label:  p.Name,
			Action: domain.ActionFor(domain.ActionPickProject, p.ID),
		})
	}
	reply.Choices = append(choices, reply.Choices...)
	return reply
}

func (e *Engine) ask(key string, args ...any) domain.Reply {
	return domain.Reply{
		Outcome: domain.OutcomePrompt,
		Text:    e.text.Text(key, args...),
		Choices: []domain.Choice{{Label: e.text.Text("button.cancel"), Action: string(domain.ActionCancel)}},
	}
}

func (e *Engine) completed(key string, args ...any) domain.Reply {
	return domain.Reply{Outcome: domain.OutcomeCompleted, Text: e.text.Text(key, args...)}
}

func (e *Engine) failed(key string) domain.Reply {
	return domain.Reply{Outcome: domain.OutcomeFailed, Text: e.text.Text(key)}
}

func (e *Engine) storeFailed(userID, op string, err error) domain.Reply {
	log.Printf("ERROR: workflow %s failed for user %s: %v", op, userID, err)
	return e.failed("error.generic")
}
