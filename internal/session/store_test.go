package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/tests/helpers"
)

type namedState struct {
	Label string `json:"label"`
}

func (namedState) Workflow() domain.Workflow { return domain.WorkflowCreateProject }
func (namedState) Name() string              { return "named" }

type jsonCodec struct{}

func (jsonCodec) Encode(state domain.State) (string, []byte, error) {
	b, err := json.Marshal(state)
	return state.Name(), b, err
}

func (jsonCodec) Decode(w domain.Workflow, name string, fields []byte) (domain.State, error) {
	if w != domain.WorkflowCreateProject || name != "named" {
		return nil, fmt.Errorf("unknown state %s/%s", w, name)
	}
	var s namedState
	if err := json.Unmarshal(fields, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func activeSession(label string) domain.Session {
	return domain.Session{Workflow: domain.WorkflowCreateProject, State: namedState{Label: label}}
}

func TestMemoryStoreGetSetClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, s.Set(ctx, "u1", activeSession("a")))
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Active())
	assert.Equal(t, namedState{Label: "a"}, got.State)

	other, err := s.Get(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, other.Active())

	require.NoError(t, s.Set(ctx, "u1", domain.EmptySession("u1")))
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Set(ctx, "u1", activeSession("b")))
	require.NoError(t, s.Clear(ctx, "u1"))
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	clock := helpers.NewClock(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC))
	s := NewMemoryStore(10 * time.Minute)
	s.now = clock.Now

	require.NoError(t, s.Set(ctx, "u1", activeSession("a")))

	clock.Advance(9 * time.Minute)
	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Active())

	clock.Advance(2 * time.Minute)
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())
}

func TestLockSerializesSameUser(t *testing.T) {
	s := NewMemoryStore(0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock("u1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, s.locks.locks)
}

func TestLockGrantsSameUserInArrivalOrder(t *testing.T) {
	s := NewMemoryStore(0)
	unlock := s.Lock("u1")

	waiting := func() int {
		s.locks.mu.Lock()
		defer s.locks.mu.Unlock()
		return len(s.locks.locks["u1"].waiters)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		order []int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			release := s.Lock("u1")
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}(i)
		// queue the next caller only after this one is waiting
		require.Eventually(t, func() bool { return waiting() == i+1 }, time.Second, time.Millisecond)
	}

	unlock()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Empty(t, s.locks.locks)
}

func TestLockDoesNotBlockOtherUsers(t *testing.T) {
	s := NewMemoryStore(0)

	unlock := s.Lock("u1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		release := s.Lock("u2")
		release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
}

func TestLockUnlockIsIdempotent(t *testing.T) {
	s := NewMemoryStore(0)
	unlock := s.Lock("u1")
	unlock()
	unlock()

	relock := s.Lock("u1")
	relock()
	assert.Empty(t, s.locks.locks)
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := helpers.NewTestSQLiteStore(t)
	s := NewSQLStore(repo, jsonCodec{}, 0)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())

	require.NoError(t, s.Set(ctx, "u1", activeSession("draft")))

	// a fresh store over the same database sees the session
	reopened := NewSQLStore(repo, jsonCodec{}, 0)
	got, err = reopened.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, got.Active())
	assert.Equal(t, domain.WorkflowCreateProject, got.Workflow)
	assert.Equal(t, namedState{Label: "draft"}, got.State)

	require.NoError(t, reopened.Clear(ctx, "u1"))
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())
}

func TestSQLStoreDropsUndecodableRecord(t *testing.T) {
	ctx := context.Background()
	repo := helpers.NewTestSQLiteStore(t)
	require.NoError(t, repo.SaveSession(ctx, &domain.SessionRecord{
		UserID:    "u1",
		Workflow:  domain.WorkflowEditTask,
		State:     "gone",
		UpdatedAt: time.Now(),
	}))

	s := NewSQLStore(repo, jsonCodec{}, 0)
	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())

	rec, err := repo.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLStoreTTL(t *testing.T) {
	ctx := context.Background()
	repo := helpers.NewTestSQLiteStore(t)
	clock := helpers.NewClock(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC))
	s := NewSQLStore(repo, jsonCodec{}, time.Hour)
	s.now = clock.Now

	require.NoError(t, s.Set(ctx, "u1", activeSession("a")))
	clock.Advance(61 * time.Minute)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active())
}
