package service

import (
	"context"
	"strings"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

func (s *Service) menu(key string, args ...any) domain.Reply {
	return domain.Reply{Outcome: domain.OutcomeMenu, Text: s.text.Text(key, args...)}
}

func (s *Service) mainMenu() domain.Reply {
	r := s.menu("menu.main")
	r.Choices = []domain.Choice{
		s.button("button.list_projects", string(domain.ActionListProjects)),
		s.button("button.new_project", string(domain.ActionNewProject)),
		s.button("button.new_task", string(domain.ActionNewTask)),
		s.button("button.show_reminders", string(domain.ActionShowReminders)),
		s.button("button.help", string(domain.ActionHelp)),
	}
	return r
}

func (s *Service) help() domain.Reply {
	r := s.menu("menu.help")
	r.Choices = []domain.Choice{
		s.button("button.new_project", string(domain.ActionNewProject)),
		s.button("button.list_projects", string(domain.ActionListProjects)),
		s.button("button.main_menu", string(domain.ActionMainMenu)),
	}
	return r
}

func (s *Service) listProjects(ctx context.Context, userID string) domain.Reply {
	projects, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return s.storeFailed(userID, "list projects", err)
	}
	if len(projects) == 0 {
		r := s.menu("projects.empty")
		r.Choices = []domain.Choice{s.button("button.new_project", string(domain.ActionNewProject))}
		return s.withMainMenu(r)
	}

	r := s.menu("projects.list")
	for _, p := range projects {
		r.Choices = append(r.Choices, domain.Choice{
			Label:  p.Name,
			Action: domain.ActionFor(domain.ActionShowProject, p.ID),
		})
	}
	r.Choices = append(r.Choices, s.button("button.new_project", string(domain.ActionNewProject)))
	return s.withMainMenu(r)
}

func (s *Service) showProject(ctx context.Context, userID string, projectID int64) domain.Reply {
	project, err := s.store.GetProject(ctx, projectID, userID)
	if err != nil {
		return s.storeFailed(userID, "get project", err)
	}
	if project == nil {
		return s.projectNotFound()
	}
	tasks, err := s.store.ListProjectTasks(ctx, projectID, userID)
	if err != nil {
		return s.storeFailed(userID, "list tasks", err)
	}

	stats := domain.StatsOf(tasks)
	r := s.menu("project.card", project.Name, s.text.Optional(project.Description),
		stats.Active, stats.Completed, stats.Total)
	r.Choices = []domain.Choice{
		s.button("button.tasks", domain.ActionFor(domain.ActionShowProjectTasks, projectID)),
		s.button("button.add_task", domain.ActionFor(domain.ActionAddTaskToProject, projectID)),
		s.button("button.edit", domain.ActionFor(domain.ActionEditProject, projectID)),
		s.button("button.delete", domain.ActionFor(domain.ActionDeleteProject, projectID)),
		s.button("button.back", string(domain.ActionListProjects)),
	}
	return r
}

func (s *Service) showProjectTasks(ctx context.Context, userID string, projectID int64) domain.Reply {
	project, err := s.store.GetProject(ctx, projectID, userID)
	if err != nil {
		return s.storeFailed(userID, "get project", err)
	}
	if project == nil {
		return s.projectNotFound()
	}
	tasks, err := s.store.ListProjectTasks(ctx, projectID, userID)
	if err != nil {
		return s.storeFailed(userID, "list tasks", err)
	}

	var r domain.Reply
	if len(tasks) == 0 {
		r = s.menu("tasks.empty", project.Name)
	} else {
		r = s.menu("tasks.list", project.Name)
	}
	for _, t := range tasks {
		r.Choices = append(r.Choices, domain.Choice{
			Label:  s.taskLabel(t),
			Action: domain.ActionFor(domain.ActionShowTask, t.ID),
		})
	}
	r.Choices = append(r.Choices,
		s.button("button.add_task", domain.ActionFor(domain.ActionAddTaskToProject, projectID)),
		s.button("button.back", domain.ActionFor(domain.ActionShowProject, projectID)),
	)
	return r
}

func (s *Service) taskLabel(t domain.Task) string {
	var b strings.Builder
	b.WriteString(t.Title)
	b.WriteString(" (")
	b.WriteString(s.text.Deadline(t.Deadline))
	if t.Status == domain.TaskStatusCompleted {
		b.WriteString(", ")
		b.WriteString(s.text.Status(t.Status))
	}
	b.WriteString(")")
	return b.String()
}

func (s *Service) showTask(ctx context.Context, userID string, taskID int64) domain.Reply {
	task, err := s.store.GetTask(ctx, taskID, userID)
	if err != nil {
		return s.storeFailed(userID, "get task", err)
	}
	if task == nil {
		return s.taskNotFound()
	}
	return s.taskCard(task)
}

func (s *Service) taskCard(task *domain.Task) domain.Reply {
	r := s.menu("task.card", task.Title, s.text.Status(task.Status), s.text.Deadline(task.Deadline),
		s.text.Optional(task.Description), s.text.Optional(task.Comment))

	toggle := s.button("button.complete", domain.ActionFor(domain.ActionCompleteTask, task.ID))
	if task.Status == domain.TaskStatusCompleted {
		toggle = s.button("button.reopen", domain.ActionFor(domain.ActionReopenTask, task.ID))
	}
	r.Choices = []domain.Choice{
		toggle,
		s.button("button.edit", domain.ActionFor(domain.ActionEditTask, task.ID)),
		s.button("button.edit_deadline", domain.ActionFor(domain.ActionEditDeadline, task.ID)),
		s.button("button.edit_comment", domain.ActionFor(domain.ActionEditComment, task.ID)),
		s.button("button.delete", domain.ActionFor(domain.ActionDeleteTask, task.ID)),
		s.button("button.back", domain.ActionFor(domain.ActionShowProjectTasks, task.ProjectID)),
	}
	return r
}

func (s *Service) setTaskStatus(ctx context.Context, userID string, taskID int64, status domain.TaskStatus) domain.Reply {
	ok, err := s.store.UpdateTaskStatus(ctx, taskID, userID, status)
	if err != nil {
		return s.storeFailed(userID, "update task status", err)
	}
	if !ok {
		return s.taskNotFound()
	}
	task, err := s.store.GetTask(ctx, taskID, userID)
	if err != nil {
		return s.storeFailed(userID, "get task", err)
	}
	if task == nil {
		return s.taskNotFound()
	}

	key := "task.marked_active"
	if status == domain.TaskStatusCompleted {
		key = "task.marked_completed"
	}
	r := s.taskCard(task)
	r.Outcome = domain.OutcomeCompleted
	r.Text = s.text.Text(key, task.Title) + "\n\n" + r.Text
	return r
}

func (s *Service) confirmDeleteProject(ctx context.Context, userID string, projectID int64) domain.Reply {
	project, err := s.store.GetProject(ctx, projectID, userID)
	if err != nil {
		return s.storeFailed(userID, "get project", err)
	}
	if project == nil {
		return s.projectNotFound()
	}
	r := s.menu("project.confirm_delete", project.Name)
	r.Choices = []domain.Choice{
		s.button("button.confirm_delete", domain.ActionFor(domain.ActionConfirmDeleteProject, projectID)),
		s.button("button.back", domain.ActionFor(domain.ActionShowProject, projectID)),
	}
	return r
}

func (s *Service) deleteProject(ctx context.Context, userID string, projectID int64) domain.Reply {
	ok, err := s.store.DeleteProject(ctx, projectID, userID)
	if err != nil {
		return s.storeFailed(userID, "delete project", err)
	}
	if !ok {
		return s.projectNotFound()
	}
	r := domain.Reply{Outcome: domain.OutcomeCompleted, Text: s.text.Text("project.deleted")}
	r.Choices = []domain.Choice{s.button("button.list_projects", string(domain.ActionListProjects))}
	return s.withMainMenu(r)
}

func (s *Service) confirmDeleteTask(ctx context.Context, userID string, taskID int64) domain.Reply {
	task, err := s.store.GetTask(ctx, taskID, userID)
	if err != nil {
		return s.storeFailed(userID, "get task", err)
	}
	if task == nil {
		return s.taskNotFound()
	}
	r := s.menu("task.confirm_delete", task.Title)
	r.Choices = []domain.Choice{
		s.button("button.confirm_delete", domain.ActionFor(domain.ActionConfirmDeleteTask, taskID)),
		s.button("button.back", domain.ActionFor(domain.ActionShowTask, taskID)),
	}
	return r
}

func (s *Service) deleteTask(ctx context.Context, userID string, taskID int64) domain.Reply {
	task, err := s.store.GetTask(ctx, taskID, userID)
	if err != nil {
		return s.storeFailed(userID, "get task", err)
	}
	if task == nil {
		return s.taskNotFound()
	}
	ok, err := s.store.DeleteTask(ctx, taskID, userID)
	if err != nil {
		return s.storeFailed(userID, "delete task", err)
	}
	if !ok {
		return s.taskNotFound()
	}
	r := domain.Reply{Outcome: domain.OutcomeCompleted, Text: s.text.Text("task.deleted")}
	r.Choices = []domain.Choice{s.button("button.tasks", domain.ActionFor(domain.ActionShowProjectTasks, task.ProjectID))}
	return s.withMainMenu(r)
}

func (s *Service) showReminders(ctx context.Context, userID string) domain.Reply {
	now := s.now()
	tasks, err := s.store.ListOwnerUpcomingTasks(ctx, userID, now)
	if err != nil {
		return s.storeFailed(userID, "list upcoming tasks", err)
	}
	if len(tasks) == 0 {
		return s.withMainMenu(s.menu("reminders.empty"))
	}

	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, s.text.Text("reminders.list"))
	for _, t := range tasks {
		hoursLeft := int(t.Deadline.Sub(now).Hours())
		lines = append(lines, s.text.Text("reminders.item", t.Title, t.ProjectName, s.text.Deadline(t.Deadline), hoursLeft))
	}
	r := domain.Reply{Outcome: domain.OutcomeMenu, Text: strings.Join(lines, "\n")}
	for _, t := range tasks {
		r.Choices = append(r.Choices, domain.Choice{
			Label:  t.Title,
			Action: domain.ActionFor(domain.ActionShowTask, t.ID),
		})
	}
	return s.withMainMenu(r)
}

func (s *Service) projectNotFound() domain.Reply {
	r := s.failed("error.project_not_found")
	r.Choices = []domain.Choice{s.button("button.list_projects", string(domain.ActionListProjects))}
	return s.withMainMenu(r)
}

func (s *Service) taskNotFound() domain.Reply {
	return s.withMainMenu(s.failed("error.task_not_found"))
}
