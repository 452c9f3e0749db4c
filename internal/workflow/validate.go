package workflow

import (
	"strings"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
)

// noneMarker is the literal answer that leaves an optional field empty.
const noneMarker = "-"

// ValidationError is returned for input the current state cannot accept.
// Key names the catalog message explaining the problem.
type ValidationError struct {
	Key string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Key
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidInput
}

func invalid(key string) error {
	return &ValidationError{Key: key}
}

// requireText trims s and rejects an empty result.
func requireText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid("error.empty")
	}
	return s, nil
}

// optionalText maps the none marker and blank input to nil.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == noneMarker {
		return nil
	}
	return domain.StringPtr(s)
}

// ParseDeadline parses DD.MM.YY HH:MM in loc and requires the result to be
// strictly after now.
func ParseDeadline(s string, loc *time.Location, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation(render.DeadlineLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, invalid("error.deadline_format")
	}
	if !t.After(now) {
		return time.Time{}, invalid("error.deadline_past")
	}
	return t, nil
}
