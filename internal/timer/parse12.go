package timer

import (
	"regexp"
	"strings"
	"time"
)

// The grammar accepts an optional 1-2 digit hour, an optional two-digit
// minute, a mandatory am/pm marker, and either a #label or end of input.
// Trailing text without a # is a non-match, not an unlabeled timer.
var pattern12 = regexp.MustCompile(`(?i)^(?P<hours>[0-2]?[0-9]):?(?P<minutes>[0-5][0-9])?\s*(?P<period>am|pm)\s*((?P<hashtag>#)|$)\s*(?P<task>.*)$`)

// Clock12Parser recognizes 12-hour wall-clock times like "6:30pm #home".
//
// Quirk, kept on purpose: the hour bound is 0-12 inclusive and "pm" always
// adds a flat 12h to the resolved instant, so "12pm" resolves through the
// 12:00+12h path (next midnight) rather than noon. Changing this would
// silently move existing users' timers; it stays as shipped.
type Clock12Parser struct{}

func (Clock12Parser) Examples() []string {
	return []string{"11:30am #lunch", "6:30 pm #home", "06:00pm #dinner", "12pm"}
}

func (Clock12Parser) Parse(text string, loc *time.Location, now time.Time) (Record, bool) {
	g, ok := namedGroups(pattern12, text)
	if !ok {
		return Record{}, false
	}

	hours, ok := atoiField(g["hours"])
	if !ok || hours > 12 {
		return Record{}, false
	}
	minutes, ok := atoiField(g["minutes"])
	if !ok || minutes > 59 {
		return Record{}, false
	}
	period := strings.ToLower(strings.TrimSpace(g["period"]))
	if period != "am" && period != "pm" {
		return Record{}, false
	}

	now = now.UTC()
	notifyAt := resolveWallClock(hours, minutes, loc, now)
	if period == "pm" {
		notifyAt = notifyAt.Add(12 * time.Hour)
	}
	notifyAt = advanceToFuture(notifyAt, now)

	return Record{
		CreatedAt:  now,
		NotifyAt:   notifyAt,
		Label:      captureLabel(g),
		SourceText: text,
	}, true
}

// resolveWallClock builds today's wall-clock time in loc (today per the UTC
// calendar date of now) and converts it to UTC.
func resolveWallClock(hours, minutes int, loc *time.Location, now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hours, minutes, 0, 0, loc).UTC()
}

// advanceToFuture pushes an already-passed instant forward by whole days
// until it is at or after now.
func advanceToFuture(at, now time.Time) time.Time {
	for at.Before(now) {
		at = at.Add(24 * time.Hour)
	}
	return at
}

// captureLabel returns the #label suffix. A label exists only when the
// hashtag delimiter itself matched; the task group alone never counts.
func captureLabel(g map[string]string) string {
	if g["hashtag"] != "#" {
		return ""
	}
	return strings.TrimSpace(g["task"])
}
