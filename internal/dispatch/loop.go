// Package dispatch runs the notification loop: poll the store for due
// timers, send one notification per record, delete on success.
//
// Delivery is at-least-once by construction. A record is deleted only
// after its send attempt succeeds, so a crash between send and delete
// re-sends on restart. The inverse ordering (delete first) would risk
// silent loss and is deliberately not used.
//
// Exactly one loop instance may run against a store at a time; a second
// instance would duplicate notifications. This is a deployment constraint,
// not something the loop enforces.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/timer"
	"remindbot/pkg/logx"
)

// Sender delivers a notification text to a chat. Implemented by the
// telegram adapter; the loop imposes no timeout of its own, so a hanging
// sender stalls the current cycle (callers needing bounded latency wrap
// the sender).
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Store is the slice of the timer store the loop needs.
type Store interface {
	ListDue(ctx context.Context, now time.Time) ([]timer.Record, error)
	DeleteTimer(ctx context.Context, id int64) error
}

type Config struct {
	// PollInterval is the sleep between poll cycles.
	PollInterval time.Duration
}

// DefaultPollInterval is the poll cadence used when no interval is
// configured. The config package reads it back for its typed accessor,
// so the loop and the config surface agree on one value.
const DefaultPollInterval = 10 * time.Second

type Loop struct {
	store  Store
	sender Sender
	clock  clock.Clock
	log    logx.Logger

	mu       sync.Mutex
	interval time.Duration
}

func New(cfg Config, store Store, sender Sender, cl clock.Clock, log logx.Logger) *Loop {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if cl == nil {
		cl = clock.System{}
	}
	return &Loop{
		store:    store,
		sender:   sender,
		clock:    cl,
		log:      log,
		interval: interval,
	}
}

// SetInterval changes the poll interval; it takes effect after the
// current sleep.
func (l *Loop) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.interval = d
	l.mu.Unlock()
}

func (l *Loop) pollInterval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Run blocks until ctx is cancelled. Cancellation is checked between
// cycles, never mid-batch: a started cycle processes its full due set.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("dispatch loop started", logx.Duration("poll_interval", l.pollInterval()))

	t := time.NewTimer(l.pollInterval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			l.log.Info("dispatch loop stopping")
			return ctx.Err()
		case <-t.C:
			l.tick(ctx)
			t.Reset(l.pollInterval())
		}
	}
}

// tick is one poll cycle. A store read failure abandons the cycle (the
// next poll retries); a send failure skips only that record.
func (l *Loop) tick(ctx context.Context) {
	now := l.clock.Now().UTC()

	due, err := l.store.ListDue(ctx, now)
	if err != nil {
		l.log.Error("listing due timers failed; cycle abandoned", logx.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}

	sent, failed := 0, 0
	for _, rec := range due {
		if err := l.sender.Send(ctx, rec.ChatID, Message(rec.Label)); err != nil {
			// Record stays in the store; retried next cycle, without limit.
			failed++
			l.log.Warn("notification send failed; will retry",
				logx.Int64("timer_id", rec.ID),
				logx.Int64("chat_id", rec.ChatID),
				logx.Err(err),
			)
			continue
		}
		sent++
		if err := l.store.DeleteTimer(ctx, rec.ID); err != nil {
			// At-least-once: the notification may repeat next cycle.
			l.log.Error("delete after send failed",
				logx.Int64("timer_id", rec.ID),
				logx.Err(err),
			)
		}
	}

	l.log.Debug("poll cycle done",
		logx.Time("now", now),
		logx.Int("due", len(due)),
		logx.Int("sent", sent),
		logx.Int("failed", failed),
	)
}

// Message renders the notification text for a timer label.
func Message(label string) string {
	if label == "" {
		return "⏰ Time is up!"
	}
	return fmt.Sprintf("⏰ Time is up for #%s!", label)
}
