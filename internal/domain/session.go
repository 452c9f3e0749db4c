package domain

import (
	"encoding/json"
	"time"
)

// State is one position inside a workflow's state graph. Concrete variants
// live in the workflow package and carry the answers collected so far.
type State interface {
	Workflow() Workflow
	Name() string
}

// Session is a user's current position and accumulated answers within a workflow.
type Session struct {
	UserID    string
	Workflow  Workflow
	State     State
	UpdatedAt time.Time
}

// Active reports whether the session is inside a workflow.
func (s Session) Active() bool {
	return s.Workflow != WorkflowNone && s.State != nil
}

// EmptySession returns the session of a user with no active workflow.
func EmptySession(userID string) Session {
	return Session{UserID: userID}
}

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	UserID    string          `json:"user_id"`
	Workflow  Workflow        `json:"workflow"`
	State     string          `json:"state"`
	Fields    json.RawMessage `json:"fields,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}
