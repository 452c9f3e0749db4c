package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")

	db, err := sql.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL CHECK (name <> ''),
			description TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			title TEXT NOT NULL CHECK (title <> ''),
			description TEXT,
			deadline INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			comment TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_deadline ON tasks(status, deadline)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			workflow TEXT NOT NULL,
			state TEXT NOT NULL,
			fields TEXT,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProject creates a new project and returns its id.
func (s *SQLiteStore) CreateProject(ctx context.Context, ownerID, name string, description *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (owner_id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		ownerID, name, nullString(description), time.Now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListProjects lists the owner's projects, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, description, created_at FROM projects
		 WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// GetProject retrieves a project owned by ownerID.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID int64, ownerID string) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, description, created_at FROM projects WHERE id = ? AND owner_id = ?`,
		projectID, ownerID)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject overwrites name and description of an owned project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, projectID int64, ownerID, name string, description *string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ? WHERE id = ? AND owner_id = ?`,
		name, nullString(description), projectID, ownerID)
	return affectedOne(res, err)
}

// withForeignKeys turns on foreign keys for every pooled connection, which
// deleting a project relies on to cascade to its tasks.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// DeleteProject deletes an owned project and, through the foreign key, its tasks.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID int64, ownerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ? AND owner_id = ?`, projectID, ownerID)
	return affectedOne(res, err)
}

// CreateTask creates a new active task in a project.
func (s *SQLiteStore) CreateTask(ctx context.Context, projectID int64, title string, description *string, deadline time.Time, comment *string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (project_id, title, description, deadline, status, comment, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		projectID, title, nullString(description), deadline.Unix(), domain.TaskStatusActive, nullString(comment), time.Now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const taskColumns = `t.id, t.project_id, t.title, t.description, t.deadline, t.status, t.comment, t.created_at`

// ListProjectTasks lists the tasks of an owned project ordered by deadline.
func (s *SQLiteStore) ListProjectTasks(ctx context.Context, projectID int64, ownerID string) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t
		 JOIN projects p ON t.project_id = p.id
		 WHERE t.project_id = ? AND p.owner_id = ?
		 ORDER BY t.deadline ASC, t.id ASC`, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a task whose project is owned by ownerID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID int64, ownerID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t
		 JOIN projects p ON t.project_id = p.id
		 WHERE t.id = ? AND p.owner_id = ?`, taskID, ownerID)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTaskStatus sets the status of an owned task.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, taskID int64, ownerID string, status domain.TaskStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	return s.updateOwnedTask(ctx, "status = ?", status, taskID, ownerID)
}

// UpdateTaskTitle sets the title of an owned task.
func (s *SQLiteStore) UpdateTaskTitle(ctx context.Context, taskID int64, ownerID, title string) (bool, error) {
	return s.updateOwnedTask(ctx, "title = ?", title, taskID, ownerID)
}

// UpdateTaskDescription sets or clears the description of an owned task.
func (s *SQLiteStore) UpdateTaskDescription(ctx context.Context, taskID int64, ownerID string, description *string) (bool, error) {
	return s.updateOwnedTask(ctx, "description = ?", nullString(description), taskID, ownerID)
}

// UpdateTaskDeadline sets the deadline of an owned task.
func (s *SQLiteStore) UpdateTaskDeadline(ctx context.Context, taskID int64, ownerID string, deadline time.Time) (bool, error) {
	return s.updateOwnedTask(ctx, "deadline = ?", deadline.Unix(), taskID, ownerID)
}

// UpdateTaskComment sets or clears the comment of an owned task.
func (s *SQLiteStore) UpdateTaskComment(ctx context.Context, taskID int64, ownerID string, comment *string) (bool, error) {
	return s.updateOwnedTask(ctx, "comment = ?", nullString(comment), taskID, ownerID)
}

func (s *SQLiteStore) updateOwnedTask(ctx context.Context, set string, value interface{}, taskID int64, ownerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+set+` WHERE id = ? AND project_id IN (
			SELECT id FROM projects WHERE owner_id = ?
		)`, value, taskID, ownerID)
	return affectedOne(res, err)
}

// DeleteTask deletes an owned task.
func (s *SQLiteStore) DeleteTask(ctx context.Context, taskID int64, ownerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND project_id IN (
			SELECT id FROM projects WHERE owner_id = ?
		)`, taskID, ownerID)
	return affectedOne(res, err)
}

// ListUpcomingTasks returns active tasks of all owners whose deadline falls in (now, now+horizon].
func (s *SQLiteStore) ListUpcomingTasks(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.deadline, p.owner_id FROM tasks t
		 JOIN projects p ON t.project_id = p.id
		 WHERE t.status = ? AND t.deadline > ? AND t.deadline <= ?
		 ORDER BY t.deadline ASC, t.id ASC`,
		domain.TaskStatusActive, now.Unix(), now.Add(horizon).Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		var r domain.Reminder
		var deadline int64
		if err := rows.Scan(&r.TaskID, &r.Title, &deadline, &r.OwnerID); err != nil {
			return nil, err
		}
		r.Deadline = time.Unix(deadline, 0)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// ListOwnerUpcomingTasks returns the owner's active tasks with a deadline after now.
func (s *SQLiteStore) ListOwnerUpcomingTasks(ctx context.Context, ownerID string, now time.Time) ([]domain.UpcomingTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+`, p.name FROM tasks t
		 JOIN projects p ON t.project_id = p.id
		 WHERE p.owner_id = ? AND t.status = ? AND t.deadline > ?
		 ORDER BY p.created_at DESC, t.deadline ASC`,
		ownerID, domain.TaskStatusActive, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.UpcomingTask
	for rows.Next() {
		var u domain.UpcomingTask
		var description, comment sql.NullString
		var deadline, createdAt int64
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.Title, &description, &deadline, &u.Status, &comment, &createdAt, &u.ProjectName); err != nil {
			return nil, err
		}
		u.Description = stringPtr(description)
		u.Comment = stringPtr(comment)
		u.Deadline = time.Unix(deadline, 0)
		u.CreatedAt = time.Unix(0, createdAt)
		tasks = append(tasks, u)
	}
	return tasks, rows.Err()
}

// GetSession retrieves a persisted session.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var fields sql.NullString
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, workflow, state, fields, updated_at FROM sessions WHERE user_id = ?`,
		userID).Scan(&rec.UserID, &rec.Workflow, &rec.State, &fields, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fields.Valid {
		rec.Fields = []byte(fields.String)
	}
	rec.UpdatedAt = time.Unix(0, updatedAt)
	return &rec, nil
}

// SaveSession inserts or replaces the session of record.UserID.
func (s *SQLiteStore) SaveSession(ctx context.Context, record *domain.SessionRecord) error {
	var fields sql.NullString
	if len(record.Fields) > 0 {
		fields = sql.NullString{String: string(record.Fields), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, workflow, state, fields, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			workflow = excluded.workflow,
			state = excluded.state,
			fields = excluded.fields,
			updated_at = excluded.updated_at`,
		record.UserID, record.Workflow, record.State, fields, record.UpdatedAt.UnixNano())
	return err
}

// DeleteSession removes a persisted session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	var description sql.NullString
	var createdAt int64
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &description, &createdAt); err != nil {
		return nil, err
	}
	p.Description = stringPtr(description)
	p.CreatedAt = time.Unix(0, createdAt)
	return &p, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var description, comment sql.NullString
	var deadline, createdAt int64
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &deadline, &t.Status, &comment, &createdAt); err != nil {
		return nil, err
	}
	t.Description = stringPtr(description)
	t.Comment = stringPtr(comment)
	t.Deadline = time.Unix(deadline, 0)
	t.CreatedAt = time.Unix(0, createdAt)
	return &t, nil
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
