package domain

import "time"

// Project groups tasks for one owner.
type Project struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task is a deadline-bound unit of work inside a project.
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Deadline    time.Time  `json:"deadline"`
	Status      TaskStatus `json:"status"`
	Comment     *string    `json:"comment,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Reminder is one due task read by a dispatcher scan.
type Reminder struct {
	TaskID   int64     `json:"task_id"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	OwnerID  string    `json:"owner_id"`
}

// UpcomingTask is an active future task together with its project name.
type UpcomingTask struct {
	Task
	ProjectName string `json:"project_name"`
}

// ProjectStats summarizes task counts for a project card.
type ProjectStats struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// StatsOf counts tasks by status.
func StatsOf(tasks []Task) ProjectStats {
	var s ProjectStats
	for _, t := range tasks {
		switch t.Status {
		case TaskStatusActive:
			s.Active++
		case TaskStatusCompleted:
			s.Completed++
		}
	}
	s.Total = len(tasks)
	return s
}

// StringPtr returns nil for an empty string, otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
