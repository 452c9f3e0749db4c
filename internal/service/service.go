// Package service routes inbound chat updates to the workflow engine and the
// stateless menus.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
	store "github.com/ivandudin29/tg-notes-bot/internal/repository"
	"github.com/ivandudin29/tg-notes-bot/internal/workflow"
)

// Engine is the workflow engine as seen by the router.
type Engine interface {
	Active(ctx context.Context, userID string) (bool, error)
	Handle(ctx context.Context, userID string, ev domain.Event) (domain.Reply, error)
}

// Update is one inbound message from a chat transport: either free text or
// the action string of a pressed button.
type Update struct {
	UserID string `json:"user_id"`
	Text   string `json:"text,omitempty"`
	Action string `json:"action,omitempty"`
}

// Service is the inbound router.
type Service struct {
	store  store.Store
	engine Engine
	text   *render.Localizer
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for hours-left calculations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocalizer sets the language and time zone of menus.
func WithLocalizer(l *render.Localizer) Option {
	return func(s *Service) { s.text = l }
}

// New creates a service.
func New(st store.Store, engine Engine, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: engine,
		text:   render.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Engine = (*workflow.Engine)(nil)

// HandleUpdate answers one update. The returned error is non-nil only for a
// malformed update; internal failures are logged and answered with a generic
// failure reply.
func (s *Service) HandleUpdate(ctx context.Context, u Update) (domain.Reply, error) {
	u.UserID = strings.TrimSpace(u.UserID)
	if u.UserID == "" {
		return domain.Reply{}, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if u.Action != "" {
		return s.handleAction(ctx, u.UserID, u.Action), nil
	}
	return s.handleText(ctx, u.UserID, u.Text), nil
}

func (s *Service) handleText(ctx context.Context, userID, text string) domain.Reply {
	switch strings.TrimSpace(text) {
	case "/start":
		return s.mainMenu()
	case "/help":
		return s.help()
	case "/cancel":
		return s.toEngine(ctx, userID, domain.CancelEvent())
	}

	active, err := s.engine.Active(ctx, userID)
	if err != nil {
		return s.storeFailed(userID, "load session", err)
	}
	if !active {
		return s.mainMenu()
	}
	return s.toEngine(ctx, userID, domain.TextEvent(text))
}

func (s *Service) handleAction(ctx context.Context, userID, raw string) domain.Reply {
	action, err := domain.ParseAction(raw)
	if err != nil {
		log.Printf("WARN: user %s sent bad action: %v", userID, err)
		return s.withMainMenu(s.failed("error.unknown_command"))
	}

	switch action.Kind {
	case domain.ActionMainMenu:
		return s.mainMenu()
	case domain.ActionHelp:
		return s.help()

	// workflow events
	case domain.ActionCancel:
		return s.toEngine(ctx, userID, domain.CancelEvent())
	case domain.ActionNewProject:
		return s.toEngine(ctx, userID, domain.StartEvent(domain.WorkflowCreateProject))
	case domain.ActionNewTask:
		return s.toEngine(ctx, userID, domain.StartEvent(domain.WorkflowCreateTask))
	case domain.ActionAddTaskToProject:
		return s.toEngine(ctx, userID, domain.StartProjectEvent(domain.WorkflowCreateTask, action.ID))
	case domain.ActionPickProject:
		return s.toEngine(ctx, userID, domain.PickProjectEvent(action.ID))
	case domain.ActionEditProject:
		return s.toEngine(ctx, userID, domain.StartProjectEvent(domain.WorkflowEditProject, action.ID))
	case domain.ActionEditTask:
		return s.toEngine(ctx, userID, domain.StartEditTaskEvent(action.ID, ""))
	case domain.ActionEditField:
		return s.toEngine(ctx, userID, domain.PickFieldEvent(action.Field))
	case domain.ActionEditDeadline:
		return s.toEngine(ctx, userID, domain.StartEditTaskEvent(action.ID, domain.TaskFieldDeadline))
	case domain.ActionEditComment:
		return s.toEngine(ctx, userID, domain.StartEditTaskEvent(action.ID, domain.TaskFieldComment))

	// stateless menus
	case domain.ActionListProjects:
		return s.listProjects(ctx, userID)
	case domain.ActionShowProject:
		return s.showProject(ctx, userID, action.ID)
	case domain.ActionShowProjectTasks:
		return s.showProjectTasks(ctx, userID, action.ID)
	case domain.ActionShowTask:
		return s.showTask(ctx, userID, action.ID)
	case domain.ActionCompleteTask:
		return s.setTaskStatus(ctx, userID, action.ID, domain.TaskStatusCompleted)
	case domain.ActionReopenTask:
		return s.setTaskStatus(ctx, userID, action.ID, domain.TaskStatusActive)
	case domain.ActionDeleteProject:
		return s.confirmDeleteProject(ctx, userID, action.ID)
	case domain.ActionConfirmDeleteProject:
		return s.deleteProject(ctx, userID, action.ID)
	case domain.ActionDeleteTask:
		return s.confirmDeleteTask(ctx, userID, action.ID)
	case domain.ActionConfirmDeleteTask:
		return s.deleteTask(ctx, userID, action.ID)
	case domain.ActionShowReminders:
		return s.showReminders(ctx, userID)
	}
	return s.withMainMenu(s.failed("error.unknown_command"))
}

// toEngine hands an event to the workflow engine. Terminal outcomes get the
// main menu attached so the user always has somewhere to go next.
func (s *Service) toEngine(ctx context.Context, userID string, ev domain.Event) domain.Reply {
	// The engine logs its own failures and always returns a renderable reply.
	reply, _ := s.engine.Handle(ctx, userID, ev)
	if reply.Outcome != domain.OutcomePrompt {
		reply = s.withMainMenu(reply)
	}
	return reply
}

func (s *Service) failed(key string, args ...any) domain.Reply {
	return domain.Reply{Outcome: domain.OutcomeFailed, Text: s.text.Text(key, args...)}
}

func (s *Service) storeFailed(userID, op string, err error) domain.Reply {
	log.Printf("ERROR: %s failed for user %s: %v", op, userID, err)
	return s.withMainMenu(s.failed("error.generic"))
}

func (s *Service) withMainMenu(r domain.Reply) domain.Reply {
	r.Choices = append(r.Choices, s.button("button.main_menu", string(domain.ActionMainMenu)))
	return r
}

func (s *Service) button(key, action string) domain.Choice {
	return domain.Choice{Label: s.text.Text(key), Action: action}
}
