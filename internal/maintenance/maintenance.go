// Package maintenance runs periodic housekeeping over the store: pruning
// stale re-suggestion history and refreshing SQLite planner statistics.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/clock"
	"remindbot/pkg/logx"
)

// Store is the slice of the persistence layer housekeeping touches.
type Store interface {
	PruneHistory(ctx context.Context, cutoff time.Time) (int64, error)
	Optimize(ctx context.Context) error
}

type Config struct {
	// Schedule is a cron spec or descriptor like "@daily".
	Schedule string
	// HistoryMaxAge bounds how old a history entry may get before the
	// prune drops it.
	HistoryMaxAge time.Duration
}

type Service struct {
	cfg    Config
	store  Store
	clk    clock.Clock
	log    logx.Logger
	parser cron.Parser

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, store Store, clk clock.Clock, log logx.Logger) *Service {
	if cfg.Schedule == "" {
		cfg.Schedule = "@daily"
	}
	if cfg.HistoryMaxAge <= 0 {
		cfg.HistoryMaxAge = 30 * 24 * time.Hour
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		clk:    clk,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if _, err := s.parser.Parse(s.cfg.Schedule); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", s.cfg.Schedule, err)
	}

	c := cron.New(cron.WithParser(s.parser))
	_, err := c.AddFunc(s.cfg.Schedule, func() { s.RunOnce(ctx) })
	if err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("maintenance started",
		logx.String("schedule", s.cfg.Schedule),
		logx.Duration("history_max_age", s.cfg.HistoryMaxAge),
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("maintenance stop timed out")
	}
}

// RunOnce executes one housekeeping pass. Failures are logged, never
// fatal; the next scheduled run retries.
func (s *Service) RunOnce(ctx context.Context) {
	cutoff := s.clk.Now().Add(-s.cfg.HistoryMaxAge)

	dropped, err := s.store.PruneHistory(ctx, cutoff)
	if err != nil {
		s.log.Warn("history prune failed", logx.Err(err))
	} else if dropped > 0 {
		s.log.Info("history pruned",
			logx.Int64("dropped", dropped),
			logx.Time("cutoff", cutoff),
		)
	}

	if err := s.store.Optimize(ctx); err != nil {
		s.log.Warn("store optimize failed", logx.Err(err))
	}
}
