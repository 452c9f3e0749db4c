// Package reminder scans for tasks nearing their deadline and notifies their owners.
package reminder

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/ivandudin29/tg-notes-bot/internal/domain"
	"github.com/ivandudin29/tg-notes-bot/internal/render"
)

const (
	queryTimeout = 30 * time.Second
	sendTimeout  = 10 * time.Second
)

// Store lists tasks that are active and due within (now, now+horizon].
type Store interface {
	ListUpcomingTasks(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Reminder, error)
}

// Notifier delivers a text message to a user.
type Notifier interface {
	Send(ctx context.Context, ownerID, text string) error
}

// Config controls scan cadence and send pacing.
type Config struct {
	ScanInterval time.Duration
	Horizon      time.Duration
	SendDelay    time.Duration
	Mode         Mode
	// Verbose logs each send and every scan summary, including empty scans.
	Verbose bool
}

// DefaultConfig scans every five minutes for tasks due within a day and
// spaces sends 100ms apart.
func DefaultConfig() Config {
	return Config{
		ScanInterval: 5 * time.Minute,
		Horizon:      24 * time.Hour,
		SendDelay:    100 * time.Millisecond,
		Mode:         ModeRepeat,
	}
}

// Stats summarizes one scan.
type Stats struct {
	Attempted int
	Sent      int
	Failed    int
	Skipped   int
}

// Dispatcher is the background reminder worker. Scans never overlap: Run
// drives them from a single loop.
type Dispatcher struct {
	store    Store
	notifier Notifier
	policy   *Policy
	text     *render.Localizer
	cfg      Config
	limiter  *rate.Limiter
	now      func() time.Time

	// task id -> deadline it was last notified for
	notified map[int64]time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLocalizer sets the language and time zone of reminder texts.
func WithLocalizer(l *render.Localizer) Option {
	return func(d *Dispatcher) { d.text = l }
}

// NewDispatcher creates a dispatcher. A nil policy sends every due task.
func NewDispatcher(store Store, notifier Notifier, policy *Policy, cfg Config, opts ...Option) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = defaults.ScanInterval
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = defaults.Horizon
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = defaults.Mode
	}
	limit := rate.Inf
	if cfg.SendDelay > 0 {
		limit = rate.Every(cfg.SendDelay)
	}
	d := &Dispatcher{
		store:    store,
		notifier: notifier,
		policy:   policy,
		text:     render.Default(),
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		notified: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Printf("reminder dispatcher started: interval=%s horizon=%s delay=%s mode=%s",
		d.cfg.ScanInterval, d.cfg.Horizon, d.cfg.SendDelay, d.cfg.Mode)

	d.Scan(ctx)

	ticker := time.NewTicker(d.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("reminder dispatcher stopped")
			return
		case <-ticker.C:
			d.Scan(ctx)
		}
	}
}

// Scan runs one pass: query due tasks, then notify each one in turn. A failed
// delivery is logged and the pass moves on to the next task. Scan must not be
// called concurrently with itself or with Run.
func (d *Dispatcher) Scan(ctx context.Context) Stats {
	var stats Stats

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	now := d.now()
	due, err := d.store.ListUpcomingTasks(queryCtx, now, d.cfg.Horizon)
	cancel()
	if err != nil {
		log.Printf("WARN: reminder scan failed: %v", err)
		return stats
	}

	seen := make(map[int64]struct{}, len(due))
	for _, r := range due {
		seen[r.TaskID] = struct{}{}

		if !d.shouldSend(ctx, r, now) {
			stats.Skipped++
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			// cancelled while pacing
			break
		}

		stats.Attempted++
		if err := d.send(ctx, r); err != nil {
			stats.Failed++
			log.Printf("WARN: failed to send reminder for task %d to %s: %v", r.TaskID, r.OwnerID, err)
			continue
		}
		stats.Sent++
		d.notified[r.TaskID] = r.Deadline
		if d.cfg.Verbose {
			log.Printf("reminder sent for task %d to %s", r.TaskID, r.OwnerID)
		}
	}

	if ctx.Err() != nil {
		return stats
	}
	for id := range d.notified {
		if _, ok := seen[id]; !ok {
			delete(d.notified, id)
		}
	}

	if d.cfg.Verbose || stats != (Stats{}) {
		log.Printf("reminder scan: due=%d attempted=%d sent=%d failed=%d skipped=%d",
			len(due), stats.Attempted, stats.Sent, stats.Failed, stats.Skipped)
	}
	return stats
}

func (d *Dispatcher) shouldSend(ctx context.Context, r domain.Reminder, now time.Time) bool {
	if d.policy == nil {
		return true
	}
	last, ok := d.notified[r.TaskID]
	decision, err := d.policy.Decide(ctx, PolicyInput{
		Mode:            d.cfg.Mode,
		TaskID:          r.TaskID,
		OwnerID:         r.OwnerID,
		HoursLeft:       r.Deadline.Sub(now).Hours(),
		AlreadyNotified: ok && last.Equal(r.Deadline),
	})
	if err != nil {
		log.Printf("WARN: reminder policy failed for task %d, sending anyway: %v", r.TaskID, err)
		return true
	}
	return decision == DecisionSend
}

func (d *Dispatcher) send(ctx context.Context, r domain.Reminder) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return d.notifier.Send(sendCtx, r.OwnerID, d.text.Reminder(r))
}
