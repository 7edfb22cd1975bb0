// Package app wires the components together and owns the process
// lifecycle: start order, config hot reload, bounded shutdown.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"remindbot/internal/bot"
	"remindbot/internal/clock"
	"remindbot/internal/config"
	"remindbot/internal/dispatch"
	"remindbot/internal/maintenance"
	"remindbot/internal/store"
	"remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	"remindbot/pkg/logx"
)

// StopReason records why the app is shutting down, for the final log line.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

type App struct {
	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	st      *store.SQLite
	adapter *telegram.Adapter
	router  *bot.Router
	loop    *dispatch.Loop
	maint   *maintenance.Service

	updates chan transport.Update
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	// The configured logger does not exist yet; bootstrap failures go to
	// a plain console logger.
	boot := logx.NewConsole("info").With(logx.String("comp", "boot"))

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		boot.Error("config load failed", logx.String("path", cfgPath), logx.Err(err))
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeout(),
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Path:        cfg.Store.Path,
		BusyTimeout: cfg.BusyTimeout(),
	}, logSvc.Logger().With(logx.String("comp", "store")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	clk := clock.System{}

	router := bot.New(bot.Deps{
		Adapter:         ad,
		Timers:          st,
		Prefs:           st,
		Clock:           clk,
		Log:             logSvc.Logger().With(logx.String("comp", "bot")),
		DefaultTimezone: cfg.Timezone.Default,
	})

	loop := dispatch.New(
		dispatch.Config{PollInterval: cfg.PollInterval()},
		st,
		notifSender{ad: ad},
		clk,
		logSvc.Logger().With(logx.String("comp", "dispatch")),
	)

	var maint *maintenance.Service
	if cfg.Maintenance.Enabled {
		maint = maintenance.New(maintenance.Config{
			Schedule:      cfg.Maintenance.Schedule,
			HistoryMaxAge: cfg.HistoryMaxAge(),
		}, st, clk, logSvc.Logger().With(logx.String("comp", "maintenance")))
	}

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		st:      st,
		adapter: ad,
		router:  router,
		loop:    loop,
		maint:   maint,
		updates: make(chan transport.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return reloadGuard(a.cfgm.Get(), cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.adapter.UpdateMenuCommands(ctx, a.router.Commands()); err != nil {
		a.log.Warn("command menu update failed", logx.Err(err))
	}

	a.sup.Go("bot.router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	a.sup.Go("dispatch.loop", func(c context.Context) error {
		return a.loop.Run(c)
	})

	if a.maint != nil {
		if err := a.maint.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	// hot reload: logging and poll interval apply live; the rest needs a
	// restart and only gets a warning.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(last, newCfg)
				last = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}

	a.log.Info("app started", logx.Bool("maintenance", a.maint != nil))
	return nil
}

// reloadGuard rejects hot reloads that change settings bound at startup.
// Committing them would leave the running process disagreeing with its
// own config; the operator gets a rejection instead and must restart.
func reloadGuard(cur, next *config.Config) error {
	if cur == nil || next == nil {
		return nil
	}
	if next.Store.Path != cur.Store.Path {
		return fmt.Errorf("store.path cannot change without a restart")
	}
	if next.Telegram.Token != cur.Telegram.Token {
		return fmt.Errorf("telegram.token cannot change without a restart")
	}
	return nil
}

func (a *App) applyReload(old, cfg *config.Config) {
	if cfg == nil {
		return
	}

	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	a.loop.SetInterval(cfg.PollInterval())

	// Store path and token changes never reach here: reloadGuard rejects
	// them before the config is committed.
	if old != nil && old.Maintenance != cfg.Maintenance {
		a.log.Warn("maintenance config changed; restart required for changes to take effect")
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run a shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	if a.maint != nil {
		step("maintenance", 2*time.Second, func(c context.Context) error { a.maint.Stop(c); return nil })
	}
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("store", 1*time.Second, func(c context.Context) error { return a.st.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// notifSender adapts the transport to the dispatch loop's Sender.
// Notifications carry no keyboard; the chat keeps whatever reply
// keyboard it already has.
type notifSender struct {
	ad *telegram.Adapter
}

func (n notifSender) Send(ctx context.Context, chatID int64, text string) error {
	_, err := n.ad.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil)
	return err
}
