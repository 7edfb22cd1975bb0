// Package bot routes incoming chat updates to handlers: free text becomes
// timers, commands manage them, callbacks drive the timezone picker.
package bot

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/clock"
	"remindbot/internal/prefs"
	"remindbot/internal/store"
	"remindbot/internal/timer"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

type Deps struct {
	Adapter transport.Adapter
	Timers  store.TimerStore
	Prefs   store.PrefsStore
	Clock   clock.Clock
	Log     logx.Logger

	// DefaultTimezone is suggested in confirmations when a stored zone
	// fails to load. Picker selections always store the picked zone.
	DefaultTimezone string
}

type Router struct {
	adapter   transport.Adapter
	timers    store.TimerStore
	prefs     store.PrefsStore
	clk       clock.Clock
	log       logx.Logger
	defaultTZ string

	// rnd feeds onboarding example selection. Updates are handled
	// sequentially, so no locking.
	rnd *rand.Rand
}

func New(d Deps) *Router {
	tz := d.DefaultTimezone
	if tz == "" {
		tz = "UTC"
	}
	return &Router{
		adapter:   d.Adapter,
		timers:    d.Timers,
		prefs:     d.Prefs,
		clk:       d.Clock,
		log:       d.Log,
		defaultTZ: tz,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Commands returns the command menu entries the app registers with the
// transport at startup.
func (r *Router) Commands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "timers", Description: "List upcoming timers"},
		{Command: "clear", Description: "Remove all timers"},
		{Command: "settimezone", Description: "Choose your timezone"},
		{Command: "help", Description: "How to set a timer"},
	}
}

// Run consumes updates until ctx is cancelled or the channel closes.
// Updates are handled one at a time; a panicking handler is logged and
// skipped so one malformed update cannot take the router down.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			r.handle(ctx, u)
		}
	}
}

func (r *Router) handle(ctx context.Context, u transport.Update) {
	log := r.log.With(logx.String("update_id", uuid.NewString()[:8]))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("update handler panicked", logx.Any("panic", rec))
		}
	}()

	switch u.Kind {
	case transport.UpdateMessage:
		if u.Message != nil {
			r.handleMessage(ctx, log, u.Message)
		}
	case transport.UpdateCallback:
		if u.Callback != nil {
			r.handleCallback(ctx, log, u.Callback)
		}
	default:
		log.Debug("ignoring update", logx.String("kind", string(u.Kind)))
	}
}

func (r *Router) handleMessage(ctx context.Context, log logx.Logger, msg *transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	log = log.With(logx.Int64("chat_id", msg.ChatID))

	p, err := r.prefs.GetPrefs(ctx, msg.ChatID)
	if err != nil {
		log.Error("load prefs failed", logx.Err(err))
		r.send(ctx, log, msg.ChatID, msgInternalError, nil)
		return
	}

	// A chat without a timezone cannot schedule anything; everything
	// routes to the picker first.
	if p == nil {
		r.sendTimezonePicker(ctx, log, msg.ChatID)
		return
	}

	loc := r.location(log, p)

	if strings.HasPrefix(text, "/") {
		r.handleCommand(ctx, log, p, loc, text)
		return
	}
	r.createTimer(ctx, log, p, loc, text)
}

func (r *Router) handleCommand(ctx context.Context, log logx.Logger, p *prefs.ChatPrefs, loc *time.Location, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	// accept "/timers@mybot" in group chats
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start", "/help":
		r.send(ctx, log, p.ChatID, onboardingText(r.rnd), defaultKeyboard(p.History))

	case "/timers":
		now := r.clk.Now()
		recs, err := r.timers.ListUpcoming(ctx, p.ChatID, now)
		if err != nil {
			log.Error("list timers failed", logx.Err(err))
			r.send(ctx, log, p.ChatID, msgInternalError, defaultKeyboard(p.History))
			return
		}
		r.send(ctx, log, p.ChatID, timersListText(recs, loc, now), defaultKeyboard(p.History))

	case "/clear":
		n, err := r.timers.DeleteChatTimers(ctx, p.ChatID)
		if err != nil {
			log.Error("clear timers failed", logx.Err(err))
			r.send(ctx, log, p.ChatID, msgInternalError, defaultKeyboard(p.History))
			return
		}
		log.Info("timers cleared", logx.Int64("deleted", n))
		r.send(ctx, log, p.ChatID, msgTimersCleared, defaultKeyboard(p.History))

	case "/settimezone":
		if len(fields) > 1 {
			r.setTimezoneByName(ctx, log, p, fields[1])
			return
		}
		r.sendTimezonePicker(ctx, log, p.ChatID)

	default:
		r.send(ctx, log, p.ChatID, msgNotRecognized, defaultKeyboard(p.History))
	}
}

// createTimer runs the grammar dispatcher over free text and persists
// the result.
func (r *Router) createTimer(ctx context.Context, log logx.Logger, p *prefs.ChatPrefs, loc *time.Location, text string) {
	now := r.clk.Now()

	rec, ok := timer.Dispatch(text, loc, now)
	if !ok {
		r.send(ctx, log, p.ChatID, msgNotRecognized, defaultKeyboard(p.History))
		return
	}
	rec.ChatID = p.ChatID

	created, err := r.timers.CreateTimer(ctx, rec)
	if err != nil {
		log.Error("create timer failed", logx.Err(err))
		r.send(ctx, log, p.ChatID, msgInternalError, defaultKeyboard(p.History))
		return
	}

	p.History = prefs.AppendAndTrim(p.History, prefs.HistoryEntry{Message: text, Sent: now}, prefs.HistoryMax)
	if err := r.prefs.UpsertPrefs(ctx, *p); err != nil {
		// The timer is already set; a stale keyboard is acceptable.
		log.Warn("save history failed", logx.Err(err))
	}

	log.Info("timer created",
		logx.Int64("timer_id", created.ID),
		logx.Time("notify_at", created.NotifyAt),
		logx.String("label", created.Label),
	)
	r.send(ctx, log, p.ChatID, timerSetText(created.NotifyAt, loc, p.Timezone), defaultKeyboard(p.History))
}

func (r *Router) handleCallback(ctx context.Context, log logx.Logger, cb *transport.Callback) {
	log = log.With(logx.Int64("chat_id", cb.ChatID))

	scope, action, payload := tgui.SplitData(cb.Data)
	if scope != "tz" {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	switch action {
	case "page":
		page, err := strconv.Atoi(payload)
		if err != nil || page < 0 {
			page = defaultTZPage()
		}
		ref := transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
		opt := &transport.SendOptions{ReplyMarkupAdapter: tzPickerMarkup(page)}
		if err := r.adapter.EditText(ctx, ref, msgChooseTimezone, opt); err != nil {
			// Re-requesting the current page makes Telegram report
			// "message is not modified"; nothing to do.
			log.Debug("picker edit skipped", logx.Err(err))
		}
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")

	case "set":
		if _, err := time.LoadLocation(payload); err != nil {
			log.Warn("picker produced unknown zone", logx.String("zone", payload))
			_ = r.adapter.AnswerCallback(ctx, cb.ID, "Unknown timezone")
			return
		}
		p, err := r.prefs.GetPrefs(ctx, cb.ChatID)
		if err != nil {
			log.Error("load prefs failed", logx.Err(err))
			_ = r.adapter.AnswerCallback(ctx, cb.ID, "Try again")
			return
		}
		firstTime := p == nil
		if p == nil {
			p = &prefs.ChatPrefs{ChatID: cb.ChatID}
		}
		p.Timezone = payload
		if err := r.prefs.UpsertPrefs(ctx, *p); err != nil {
			log.Error("save prefs failed", logx.Err(err))
			_ = r.adapter.AnswerCallback(ctx, cb.ID, "Try again")
			return
		}
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		log.Info("timezone set", logx.String("zone", payload))
		r.send(ctx, log, cb.ChatID, timezoneSetText(payload), defaultKeyboard(p.History))
		if firstTime {
			r.send(ctx, log, cb.ChatID, onboardingText(r.rnd), defaultKeyboard(p.History))
		}

	default:
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
	}
}

func (r *Router) setTimezoneByName(ctx context.Context, log logx.Logger, p *prefs.ChatPrefs, name string) {
	if _, err := time.LoadLocation(name); err != nil {
		r.send(ctx, log, p.ChatID, unknownTimezoneText(name), defaultKeyboard(p.History))
		return
	}
	p.Timezone = name
	if err := r.prefs.UpsertPrefs(ctx, *p); err != nil {
		log.Error("save prefs failed", logx.Err(err))
		r.send(ctx, log, p.ChatID, msgInternalError, defaultKeyboard(p.History))
		return
	}
	log.Info("timezone set", logx.String("zone", name))
	r.send(ctx, log, p.ChatID, timezoneSetText(name), defaultKeyboard(p.History))
}

func (r *Router) sendTimezonePicker(ctx context.Context, log logx.Logger, chatID int64) {
	r.send(ctx, log, chatID, msgChooseTimezone, tzPickerMarkup(defaultTZPage()))
}

// location resolves the chat's stored zone, falling back to the
// configured default when the zoneinfo lookup fails.
func (r *Router) location(log logx.Logger, p *prefs.ChatPrefs) *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err == nil {
		return loc
	}
	log.Warn("stored timezone failed to load; using default",
		logx.String("zone", p.Timezone),
		logx.String("default", r.defaultTZ),
	)
	loc, err = time.LoadLocation(r.defaultTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r *Router) send(ctx context.Context, log logx.Logger, chatID int64, text string, markup any) {
	opt := &transport.SendOptions{ReplyMarkupAdapter: markup}
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		log.Warn("send failed", logx.Err(err))
	}
}
