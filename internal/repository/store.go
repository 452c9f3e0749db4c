// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// Store defines the interface for data persistence.
//
// Every project and task operation that takes an ownerID enforces ownership
// inside the query itself: a row owned by someone else behaves exactly like a
// missing row (nil result or false).
type Store interface {
	// Project operations
	CreateProject(ctx context.Context, ownerID, name string, description *string) (int64, error)
	ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error)
	GetProject(ctx context.Context, projectID int64, ownerID string) (*domain.Project, error)
	UpdateProject(ctx context.Context, projectID int64, ownerID, name string, description *string) (bool, error)
	DeleteProject(ctx context.Context, projectID int64, ownerID string) (bool, error)

	// Task operations
	CreateTask(ctx context.Context, projectID int64, title string, description *string, deadline time.Time, comment *string) (int64, error)
	ListProjectTasks(ctx context.Context, projectID int64, ownerID string) ([]domain.Task, error)
	GetTask(ctx context.Context, taskID int64, ownerID string) (*domain.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID int64, ownerID string, status domain.TaskStatus) (bool, error)
	UpdateTaskTitle(ctx context.Context, taskID int64, ownerID, title string) (bool, error)
	UpdateTaskDescription(ctx context.Context, taskID int64, ownerID string, description *string) (bool, error)
	UpdateTaskDeadline(ctx context.Context, taskID int64, ownerID string, deadline time.Time) (bool, error)
	UpdateTaskComment(ctx context.Context, taskID int64, ownerID string, comment *string) (bool, error)
	DeleteTask(ctx context.Context, taskID int64, ownerID string) (bool, error)

	// Reminder queries
	ListUpcomingTasks(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Reminder, error)
	ListOwnerUpcomingTasks(ctx context.Context, ownerID string, now time.Time) ([]domain.UpcomingTask, error)

	// Session operations
	GetSession(ctx context.Context, userID string) (*domain.SessionRecord, error)
	SaveSession(ctx context.Context, record *domain.SessionRecord) error
	DeleteSession(ctx context.Context, userID string) error

	// Lifecycle
	Close() error
}
