// Package session keeps per-user workflow scratch state between inbound messages.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
)

// Store holds one session per user.
//
// Get never returns a nil-user session: a user without state gets an empty
// session. Set is last-write-wins. Lock serializes work on a single user's
// session; different users never contend.
type Store interface {
	Get(ctx context.Context, userID string) (domain.Session, error)
	Set(ctx context.Context, userID string, sess domain.Session) error
	Clear(ctx context.Context, userID string) error
	Lock(userID string) (unlock func())
}

// keyedMutex serializes holders of the same key in the order they called
// Lock. A key's entry is dropped when nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyQueue
}

// keyQueue is a held key and the callers waiting for it, oldest first.
type keyQueue struct {
	waiters []chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyQueue)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	q, held := k.locks[key]
	if !held {
		k.locks[key] = &keyQueue{}
		k.mu.Unlock()
	} else {
		turn := make(chan struct{})
		q.waiters = append(q.waiters, turn)
		k.mu.Unlock()
		<-turn
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.handOff(key) })
	}
}

// handOff passes key to the oldest waiter, or frees it.
func (k *keyedMutex) handOff(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	q := k.locks[key]
	if len(q.waiters) == 0 {
		delete(k.locks, key)
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	close(next)
}

// expired reports whether a session last touched at updatedAt is past ttl.
func expired(updatedAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && !updatedAt.IsZero() && now.Sub(updatedAt) > ttl
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	locks *keyedMutex
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemoryStore creates an in-memory session store. A zero ttl keeps sessions
// until they are completed or cancelled.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		locks:    newKeyedMutex(),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]domain.Session),
	}
}

// Get returns the user's session or an empty one.
func (s *MemoryStore) Get(_ context.Context, userID string) (domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok || expired(sess.UpdatedAt, s.ttl, s.now()) {
		return domain.EmptySession(userID), nil
	}
	return sess, nil
}

// Set replaces the user's session.
func (s *MemoryStore) Set(ctx context.Context, userID string, sess domain.Session) error {
	if !sess.Active() {
		return s.Clear(ctx, userID)
	}
	sess.UserID = userID
	sess.UpdatedAt = s.now()
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	return nil
}

// Clear resets the user's session to empty.
func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// Lock serializes callers working on the same user's session.
func (s *MemoryStore) Lock(userID string) func() {
	return s.locks.Lock(userID)
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
