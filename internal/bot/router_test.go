package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"remindbot/internal/clock"
	"remindbot/internal/prefs"
	"remindbot/internal/timer"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

var testNow = time.Date(2022, 5, 24, 10, 0, 0, 0, time.UTC)

type sentMessage struct {
	chatID int64
	text   string
	markup any
}

type fakeAdapter struct {
	sent    []sentMessage
	edits   []transport.MessageRef
	answers []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	var markup any
	if opt != nil {
		markup = opt.ReplyMarkupAdapter
	}
	f.sent = append(f.sent, sentMessage{chatID: to.ChatID, text: text, markup: markup})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref transport.MessageRef, _ string, _ *transport.SendOptions) error {
	f.edits = append(f.edits, ref)
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.answers = append(f.answers, text)
	return nil
}

type fakeTimers struct {
	nextID  int64
	created []timer.Record
}

func (f *fakeTimers) CreateTimer(_ context.Context, rec timer.Record) (timer.Record, error) {
	f.nextID++
	rec.ID = f.nextID
	f.created = append(f.created, rec)
	return rec, nil
}

func (f *fakeTimers) ListDue(_ context.Context, now time.Time) ([]timer.Record, error) {
	return nil, nil
}

func (f *fakeTimers) ListUpcoming(_ context.Context, chatID int64, now time.Time) ([]timer.Record, error) {
	var out []timer.Record
	for _, rec := range f.created {
		if rec.ChatID == chatID && rec.NotifyAt.After(now) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeTimers) DeleteTimer(_ context.Context, id int64) error { return nil }

func (f *fakeTimers) DeleteChatTimers(_ context.Context, chatID int64) (int64, error) {
	kept := f.created[:0]
	var n int64
	for _, rec := range f.created {
		if rec.ChatID == chatID {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	f.created = kept
	return n, nil
}

type fakePrefs struct {
	byChat map[int64]prefs.ChatPrefs
}

func (f *fakePrefs) GetPrefs(_ context.Context, chatID int64) (*prefs.ChatPrefs, error) {
	if p, ok := f.byChat[chatID]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePrefs) UpsertPrefs(_ context.Context, p prefs.ChatPrefs) error {
	if f.byChat == nil {
		f.byChat = make(map[int64]prefs.ChatPrefs)
	}
	f.byChat[p.ChatID] = p
	return nil
}

func newTestRouter(ad *fakeAdapter, ts *fakeTimers, ps *fakePrefs) *Router {
	return New(Deps{
		Adapter:         ad,
		Timers:          ts,
		Prefs:           ps,
		Clock:           clock.Fixed(testNow),
		Log:             logx.Nop(),
		DefaultTimezone: "UTC",
	})
}

func message(chatID int64, text string) transport.Update {
	return transport.Update{
		Kind:    transport.UpdateMessage,
		Message: &transport.Message{ChatID: chatID, Text: text},
	}
}

func callback(chatID int64, data string) transport.Update {
	return transport.Update{
		Kind:     transport.UpdateCallback,
		Callback: &transport.Callback{ID: "cb1", ChatID: chatID, MessageID: 7, Data: data},
	}
}

func TestUnknownChatGetsTimezonePicker(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := newTestRouter(ad, &fakeTimers{}, &fakePrefs{})

	r.handle(context.Background(), message(1, "1h #tea"))

	if len(ad.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ad.sent))
	}
	if ad.sent[0].text != msgChooseTimezone {
		t.Errorf("text = %q", ad.sent[0].text)
	}
	if ad.sent[0].markup == nil {
		t.Error("picker message should carry inline keyboard")
	}
}

func TestFreeTextCreatesTimer(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ts := &fakeTimers{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{
		1: {ChatID: 1, Timezone: "UTC"},
	}}
	r := newTestRouter(ad, ts, ps)

	r.handle(context.Background(), message(1, "1h 30m #study"))

	if len(ts.created) != 1 {
		t.Fatalf("created %d timers, want 1", len(ts.created))
	}
	rec := ts.created[0]
	if rec.ChatID != 1 {
		t.Errorf("ChatID = %d", rec.ChatID)
	}
	if want := testNow.Add(90 * time.Minute); !rec.NotifyAt.Equal(want) {
		t.Errorf("NotifyAt = %v, want %v", rec.NotifyAt, want)
	}
	if rec.Label != "study" {
		t.Errorf("Label = %q", rec.Label)
	}

	got := ps.byChat[1]
	if len(got.History) != 1 || got.History[0].Message != "1h 30m #study" {
		t.Errorf("history = %+v", got.History)
	}

	if len(ad.sent) != 1 || !strings.Contains(ad.sent[0].text, "Timer has been set") {
		t.Errorf("confirmation = %+v", ad.sent)
	}
}

func TestFreeTextNotRecognized(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ts := &fakeTimers{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, ts, ps)

	r.handle(context.Background(), message(1, "remind me tomorrow"))

	if len(ts.created) != 0 {
		t.Fatalf("created %d timers, want 0", len(ts.created))
	}
	if len(ad.sent) != 1 || ad.sent[0].text != msgNotRecognized {
		t.Errorf("sent = %+v", ad.sent)
	}
}

func TestTimersCommandListsUpcoming(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ts := &fakeTimers{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, ts, ps)

	ts.created = []timer.Record{
		{ID: 1, ChatID: 1, NotifyAt: testNow.Add(2 * time.Hour), Label: "tea"},
		{ID: 2, ChatID: 1, NotifyAt: testNow.Add(30 * time.Hour)},
	}

	r.handle(context.Background(), message(1, "/timers"))

	if len(ad.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ad.sent))
	}
	text := ad.sent[0].text
	if !strings.Contains(text, "- 12:00 #tea") {
		t.Errorf("today's timer should use short format, got:\n%s", text)
	}
	if !strings.Contains(text, "Wednesday, 25 May 2022 16:00") {
		t.Errorf("tomorrow's timer should use long format, got:\n%s", text)
	}
}

func TestTimersCommandEmpty(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, &fakeTimers{}, ps)

	r.handle(context.Background(), message(1, "/timers"))

	if len(ad.sent) != 1 || ad.sent[0].text != msgNoTimers {
		t.Errorf("sent = %+v", ad.sent)
	}
}

func TestClearCommand(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ts := &fakeTimers{created: []timer.Record{
		{ID: 1, ChatID: 1, NotifyAt: testNow.Add(time.Hour)},
		{ID: 2, ChatID: 2, NotifyAt: testNow.Add(time.Hour)},
	}}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, ts, ps)

	r.handle(context.Background(), message(1, "/clear"))

	if len(ts.created) != 1 || ts.created[0].ChatID != 2 {
		t.Errorf("remaining = %+v", ts.created)
	}
	if len(ad.sent) != 1 || ad.sent[0].text != msgTimersCleared {
		t.Errorf("sent = %+v", ad.sent)
	}
}

func TestSetTimezoneByName(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, &fakeTimers{}, ps)

	r.handle(context.Background(), message(1, "/settimezone Europe/Berlin"))

	if got := ps.byChat[1].Timezone; got != "Europe/Berlin" {
		t.Errorf("timezone = %q", got)
	}
	if len(ad.sent) != 1 || !strings.Contains(ad.sent[0].text, "Europe/Berlin") {
		t.Errorf("sent = %+v", ad.sent)
	}
}

func TestSetTimezoneUnknownName(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, &fakeTimers{}, ps)

	r.handle(context.Background(), message(1, "/settimezone Mars/Olympus"))

	if got := ps.byChat[1].Timezone; got != "UTC" {
		t.Errorf("timezone changed to %q", got)
	}
	if len(ad.sent) != 1 || !strings.Contains(ad.sent[0].text, "Mars/Olympus") {
		t.Errorf("sent = %+v", ad.sent)
	}
}

func TestCallbackSetsTimezoneFirstTime(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ps := &fakePrefs{}
	r := newTestRouter(ad, &fakeTimers{}, ps)

	r.handle(context.Background(), callback(1, "tz:set:Asia/Tokyo"))

	if got := ps.byChat[1].Timezone; got != "Asia/Tokyo" {
		t.Errorf("timezone = %q", got)
	}
	// confirmation plus onboarding for a brand-new chat
	if len(ad.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(ad.sent))
	}
	if !strings.Contains(ad.sent[0].text, "Asia/Tokyo") {
		t.Errorf("confirmation = %q", ad.sent[0].text)
	}
	if !strings.Contains(ad.sent[1].text, "Try these") {
		t.Errorf("onboarding = %q", ad.sent[1].text)
	}
	if len(ad.answers) != 1 {
		t.Errorf("answers = %+v", ad.answers)
	}
}

func TestCallbackSetExistingChatSkipsOnboarding(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{
		1: {ChatID: 1, Timezone: "UTC", History: []prefs.HistoryEntry{{Message: "1h", Sent: testNow}}},
	}}
	r := newTestRouter(ad, &fakeTimers{}, ps)

	r.handle(context.Background(), callback(1, "tz:set:Europe/Paris"))

	if got := ps.byChat[1].Timezone; got != "Europe/Paris" {
		t.Errorf("timezone = %q", got)
	}
	if len(ad.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ad.sent))
	}
	// history survives a timezone change
	if got := ps.byChat[1].History; len(got) != 1 || got[0].Message != "1h" {
		t.Errorf("history = %+v", got)
	}
}

func TestCallbackPageEditsPicker(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	r := newTestRouter(ad, &fakeTimers{}, &fakePrefs{})

	r.handle(context.Background(), callback(1, "tz:page:2"))

	if len(ad.edits) != 1 {
		t.Fatalf("edits = %+v", ad.edits)
	}
	if ad.edits[0].MessageID != 7 {
		t.Errorf("edited message %d, want 7", ad.edits[0].MessageID)
	}
	if len(ad.sent) != 0 {
		t.Errorf("page flip should not send new messages, sent = %+v", ad.sent)
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	t.Parallel()

	r := newTestRouter(&fakeAdapter{}, &fakeTimers{}, &fakePrefs{})

	// nil message with message kind must not crash the router
	r.handle(context.Background(), transport.Update{Kind: transport.UpdateMessage})
}

func TestDefaultTZPageContainsUTC(t *testing.T) {
	t.Parallel()

	page := defaultTZPage()
	sub, _, _ := tgui.PaginateSlice(timezones, page, tzPageSize)
	found := false
	for _, z := range sub {
		if z == "UTC" {
			found = true
		}
	}
	if !found {
		t.Errorf("page %d does not contain UTC: %v", page, sub)
	}
}

func TestOnboardingCoversAllGrammars(t *testing.T) {
	t.Parallel()

	ad := &fakeAdapter{}
	ps := &fakePrefs{byChat: map[int64]prefs.ChatPrefs{1: {ChatID: 1, Timezone: "UTC"}}}
	r := newTestRouter(ad, &fakeTimers{}, ps)

	r.handle(context.Background(), message(1, "/help"))

	if len(ad.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ad.sent))
	}
	if got := strings.Count(ad.sent[0].text, "- "); got != len(timer.Parsers()) {
		t.Errorf("onboarding lists %d examples, want %d:\n%s", got, len(timer.Parsers()), ad.sent[0].text)
	}
}
