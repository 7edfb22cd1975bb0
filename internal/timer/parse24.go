package timer

import (
	"regexp"
	"time"
)

// Same shape as the 12-hour grammar minus the am/pm marker.
var pattern24 = regexp.MustCompile(`(?i)^(?P<hours>[0-2]?[0-9]):?(?P<minutes>[0-5][0-9])?\s*((?P<hashtag>#)|$)\s*(?P<task>.*)$`)

// Clock24Parser recognizes 24-hour wall-clock times like "22:30 #sleep".
// The hour bound is 0-24 inclusive; hour 24 normalizes to midnight of the
// next day.
type Clock24Parser struct{}

func (Clock24Parser) Examples() []string {
	return []string{"12:30 #call someone special", "22:30 #sleep", "11:54", "23 (hours)"}
}

func (Clock24Parser) Parse(text string, loc *time.Location, now time.Time) (Record, bool) {
	g, ok := namedGroups(pattern24, text)
	if !ok {
		return Record{}, false
	}

	hours, ok := atoiField(g["hours"])
	if !ok || hours > 24 {
		return Record{}, false
	}
	minutes, ok := atoiField(g["minutes"])
	if !ok || minutes > 59 {
		return Record{}, false
	}

	now = now.UTC()
	notifyAt := advanceToFuture(resolveWallClock(hours, minutes, loc, now), now)

	return Record{
		CreatedAt:  now,
		NotifyAt:   notifyAt,
		Label:      captureLabel(g),
		SourceText: text,
	}, true
}
