package reminder

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
	"github.com/ivandudin29/tg-notes-bot/tests/helpers"
)

var testNow = time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	reminders []domain.Reminder
	err       error
	calls     int
}

func (s *fakeStore) ListUpcomingTasks(_ context.Context, _ time.Time, _ time.Duration) ([]domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Reminder, len(s.reminders))
	copy(out, s.reminders)
	return out, nil
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type sent struct {
	ownerID string
	text    string
}

type fakeNotifier struct {
	mu     sync.Mutex
	failOn map[string]bool
	sent   []sent
	after  func()
}

func (n *fakeNotifier) Send(_ context.Context, ownerID, text string) error {
	n.mu.Lock()
	n.sent = append(n.sent, sent{ownerID: ownerID, text: text})
	fail := n.failOn[ownerID]
	after := n.after
	n.mu.Unlock()

	if after != nil {
		after()
	}
	if fail {
		return errors.New("bot blocked by user")
	}
	return nil
}

func (n *fakeNotifier) Sent() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sent, len(n.sent))
	copy(out, n.sent)
	return out
}

func newTestDispatcher(t *testing.T, store Store, notifier Notifier, cfg Config) *Dispatcher {
	t.Helper()
	policy, err := NewPolicy(context.Background(), DefaultPolicy)
	require.NoError(t, err)
	text, err := render.NewLocalizer("en", time.UTC)
	require.NoError(t, err)
	clock := helpers.NewClock(testNow)
	return NewDispatcher(store, notifier, policy, cfg, WithClock(clock.Now), WithLocalizer(text))
}

func fastConfig(mode Mode) Config {
	return Config{ScanInterval: time.Hour, Horizon: 24 * time.Hour, SendDelay: time.Millisecond, Mode: mode}
}

func TestScanIsolatesDeliveryFailure(t *testing.T) {
	store := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 1, Title: "first", Deadline: testNow.Add(time.Hour), OwnerID: "blocked"},
		{TaskID: 2, Title: "second", Deadline: testNow.Add(2 * time.Hour), OwnerID: "ok"},
	}}
	notifier := &fakeNotifier{failOn: map[string]bool{"blocked": true}}
	d := newTestDispatcher(t, store, notifier, fastConfig(ModeRepeat))

	stats := d.Scan(context.Background())

	assert.Equal(t, Stats{Attempted: 2, Sent: 1, Failed: 1}, stats)
	got := notifier.Sent()
	require.Len(t, got, 2)
	assert.Equal(t, "blocked", got[0].ownerID)
	assert.Equal(t, "ok", got[1].ownerID)
	assert.Equal(t, `Reminder: the deadline for task "second" is 10.01.30 14:00.`, got[1].text)
}

func TestScanQueryErrorDoesNotStopLaterScans(t *testing.T) {
	store := &fakeStore{err: errors.New("database is locked")}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(t, store, notifier, fastConfig(ModeRepeat))

	assert.Equal(t, Stats{}, d.Scan(context.Background()))

	store.mu.Lock()
	store.err = nil
	store.reminders = []domain.Reminder{{TaskID: 1, Title: "t", Deadline: testNow.Add(time.Hour), OwnerID: "u1"}}
	store.mu.Unlock()

	assert.Equal(t, Stats{Attempted: 1, Sent: 1}, d.Scan(context.Background()))
}

func TestRepeatModeNotifiesEveryScan(t *testing.T) {
	store := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 1, Title: "t", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
	}}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(t, store, notifier, fastConfig(ModeRepeat))

	d.Scan(context.Background())
	d.Scan(context.Background())

	assert.Len(t, notifier.Sent(), 2)
}

func TestOnceModeNotifiesOncePerDeadline(t *testing.T) {
	store := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 1, Title: "t", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
	}}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(t, store, notifier, fastConfig(ModeOnce))

	assert.Equal(t, Stats{Attempted: 1, Sent: 1}, d.Scan(context.Background()))
	assert.Equal(t, Stats{Skipped: 1}, d.Scan(context.Background()))

	// moving the deadline re-arms the reminder
	store.mu.Lock()
	store.reminders[0].Deadline = testNow.Add(3 * time.Hour)
	store.mu.Unlock()
	assert.Equal(t, Stats{Attempted: 1, Sent: 1}, d.Scan(context.Background()))
	assert.Len(t, notifier.Sent(), 2)
}

func TestOnceModeRetriesFailedDelivery(t *testing.T) {
	store := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 1, Title: "t", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
	}}
	notifier := &fakeNotifier{failOn: map[string]bool{"u1": true}}
	d := newTestDispatcher(t, store, notifier, fastConfig(ModeOnce))

	assert.Equal(t, Stats{Attempted: 1, Failed: 1}, d.Scan(context.Background()))
	assert.Equal(t, Stats{Attempted: 1, Failed: 1}, d.Scan(context.Background()))
}

func TestOnceModeForgetsTasksLeavingTheWindow(t *testing.T) {
	reminder := domain.Reminder{TaskID: 1, Title: "t", Deadline: testNow.Add(time.Hour), OwnerID: "u1"}
	store := &fakeStore{reminders: []domain.Reminder{reminder}}
	d := newTestDispatcher(t, store, &fakeNotifier{}, fastConfig(ModeOnce))

	d.Scan(context.Background())
	assert.Len(t, d.notified, 1)

	store.mu.Lock()
	store.reminders = nil
	store.mu.Unlock()
	d.Scan(context.Background())
	assert.Empty(t, d.notified)
}

func TestSendsArePaced(t *testing.T) {
	store := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 1, Title: "a", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
		{TaskID: 2, Title: "b", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
		{TaskID: 3, Title: "c", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
	}}
	cfg := fastConfig(ModeRepeat)
	cfg.SendDelay = 30 * time.Millisecond
	d := newTestDispatcher(t, store, &fakeNotifier{}, cfg)

	start := time.Now()
	stats := d.Scan(context.Background())

	assert.Equal(t, 3, stats.Sent)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCancelStopsScanBetweenSends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 1, Title: "a", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
		{TaskID: 2, Title: "b", Deadline: testNow.Add(time.Hour), OwnerID: "u2"},
	}}
	notifier := &fakeNotifier{after: cancel}
	cfg := fastConfig(ModeRepeat)
	cfg.SendDelay = time.Hour
	d := newTestDispatcher(t, store, notifier, cfg)

	stats := d.Scan(ctx)

	assert.Equal(t, Stats{Attempted: 1, Sent: 1}, stats)
	assert.Len(t, notifier.Sent(), 1)
}

func TestRunScansImmediatelyAndExitsOnCancel(t *testing.T) {
	store := &fakeStore{}
	cfg := fastConfig(ModeRepeat)
	cfg.ScanInterval = 10 * time.Millisecond
	d := newTestDispatcher(t, store, &fakeNotifier{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Calls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestScanAgainstSQLiteWindow(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	pid, err := db.CreateProject(ctx, "u1", "p", nil)
	require.NoError(t, err)
	_, err = db.CreateTask(ctx, pid, "due", nil, testNow.Add(23*time.Hour+59*time.Minute), nil)
	require.NoError(t, err)
	_, err = db.CreateTask(ctx, pid, "later", nil, testNow.Add(24*time.Hour+time.Minute), nil)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	d := newTestDispatcher(t, db, notifier, fastConfig(ModeRepeat))
	stats := d.Scan(ctx)

	assert.Equal(t, Stats{Attempted: 1, Sent: 1}, stats)
	require.Len(t, notifier.Sent(), 1)
	assert.Contains(t, notifier.Sent()[0].text, `"due"`)
}

func TestNewDispatcherNormalizesConfig(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, &fakeNotifier{}, nil, Config{Mode: "sometimes"})
	assert.Equal(t, DefaultConfig().ScanInterval, d.cfg.ScanInterval)
	assert.Equal(t, DefaultConfig().Horizon, d.cfg.Horizon)
	assert.Equal(t, ModeRepeat, d.cfg.Mode)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestVerboseLogsEverySendAndEmptyScans(t *testing.T) {
	due := &fakeStore{reminders: []domain.Reminder{
		{TaskID: 7, Title: "soon", Deadline: testNow.Add(time.Hour), OwnerID: "u1"},
	}}

	quiet := captureLog(t)
	newTestDispatcher(t, &fakeStore{}, &fakeNotifier{}, fastConfig(ModeRepeat)).Scan(context.Background())
	assert.Empty(t, quiet.String())

	cfg := fastConfig(ModeRepeat)
	cfg.Verbose = true

	empty := captureLog(t)
	newTestDispatcher(t, &fakeStore{}, &fakeNotifier{}, cfg).Scan(context.Background())
	assert.Contains(t, empty.String(), "reminder scan: due=0")

	sends := captureLog(t)
	newTestDispatcher(t, due, &fakeNotifier{}, cfg).Scan(context.Background())
	assert.Contains(t, sends.String(), "reminder sent for task 7 to u1")
}
