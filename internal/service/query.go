package service

import (
	"context"
	"fmt"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// ListProjects returns the owner's projects, newest first.
func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	projects, err := s.store.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// ListProjectTasks returns the tasks of an owned project ordered by deadline.
func (s *Service) ListProjectTasks(ctx context.Context, projectID int64, ownerID string) ([]domain.Task, error) {
	project, err := s.store.GetProject(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project %d: %w", projectID, domain.ErrNotFound)
	}
	tasks, err := s.store.ListProjectTasks(ctx, projectID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}
