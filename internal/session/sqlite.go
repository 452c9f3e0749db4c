package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// Codec converts typed workflow states to and from their persisted form.
type Codec interface {
	Encode(state domain.State) (name string, fields []byte, err error)
	Decode(workflow domain.Workflow, name string, fields []byte) (domain.State, error)
}

// Repository is the subset of the persistent store used for sessions.
type Repository interface {
	GetSession(ctx context.Context, userID string) (*domain.SessionRecord, error)
	SaveSession(ctx context.Context, record *domain.SessionRecord) error
	DeleteSession(ctx context.Context, userID string) error
}

// SQLStore persists sessions through the repository so an in-progress
// workflow survives a restart.
type SQLStore struct {
	repo  Repository
	codec Codec
	locks *keyedMutex
	ttl   time.Duration
	now   func() time.Time
}

// NewSQLStore creates a repository-backed session store.
func NewSQLStore(repo Repository, codec Codec, ttl time.Duration) *SQLStore {
	return &SQLStore{
		repo:  repo,
		codec: codec,
		locks: newKeyedMutex(),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get loads the user's session. A record that can no longer be decoded is
// dropped and reported as an empty session.
func (s *SQLStore) Get(ctx context.Context, userID string) (domain.Session, error) {
	rec, err := s.repo.GetSession(ctx, userID)
	if err != nil {
		return domain.EmptySession(userID), fmt.Errorf("failed to load session: %w", err)
	}
	if rec == nil || expired(rec.UpdatedAt, s.ttl, s.now()) {
		return domain.EmptySession(userID), nil
	}

	state, err := s.codec.Decode(rec.Workflow, rec.State, rec.Fields)
	if err != nil {
		log.Printf("WARN: dropping undecodable session for user %s: %v", userID, err)
		if err := s.repo.DeleteSession(ctx, userID); err != nil {
			log.Printf("WARN: failed to delete session for user %s: %v", userID, err)
		}
		return domain.EmptySession(userID), nil
	}

	return domain.Session{
		UserID:    userID,
		Workflow:  rec.Workflow,
		State:     state,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Set replaces the user's session.
func (s *SQLStore) Set(ctx context.Context, userID string, sess domain.Session) error {
	if !sess.Active() {
		return s.Clear(ctx, userID)
	}
	name, fields, err := s.codec.Encode(sess.State)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	rec := &domain.SessionRecord{
		UserID:    userID,
		Workflow:  sess.Workflow,
		State:     name,
		Fields:    fields,
		UpdatedAt: s.now(),
	}
	if err := s.repo.SaveSession(ctx, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear deletes the user's session.
func (s *SQLStore) Clear(ctx context.Context, userID string) error {
	if err := s.repo.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Lock serializes callers working on the same user's session.
func (s *SQLStore) Lock(userID string) func() {
	return s.locks.Lock(userID)
}
