package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/prefs"
	"remindbot/pkg/tgui"
)

// defaultKeyboard is the persistent reply keyboard: recent successful
// inputs as one-tap re-suggestions, then the command row.
func defaultKeyboard(history []prefs.HistoryEntry) *tele.ReplyMarkup {
	recent := make([]string, 0, len(history))
	for _, e := range history {
		if e.Message != "" {
			recent = append(recent, e.Message)
		}
	}
	return tgui.Reply(recent, []string{"/timers", "/clear", "/settimezone"})
}

// tzPickerMarkup builds one picker page: a button per zone plus a nav
// row. Nav buttons on a boundary page re-request the same page, which
// the callback handler treats as a no-op edit.
func tzPickerMarkup(page int) *tele.ReplyMarkup {
	sub, hasPrev, hasNext := tgui.PaginateSlice(timezones, page, tzPageSize)

	kb := tgui.NewInline()
	for _, zone := range sub {
		kb.Row(tgui.Btn(zone, tgui.Data("tz", "set", zone)))
	}

	prev, next := page, page
	if hasPrev {
		prev = page - 1
	}
	if hasNext {
		next = page + 1
	}
	kb.Row(
		tgui.Btn("⬅️", tgui.Data("tz", "page", strconv.Itoa(prev))),
		tgui.Btn(tgui.PageLabel(page, tzPageSize, len(timezones)), tgui.Data("tz", "noop", "")),
		tgui.Btn("➡️", tgui.Data("tz", "page", strconv.Itoa(next))),
	)
	return kb.Markup()
}
