package timer

import (
	"regexp"
	"time"
)

// Order-fixed duration components: days, hours, minutes, seconds, each
// independently optional.
var patternSpan = regexp.MustCompile(`(?i)^(?P<days>\d+d)?\s*(?P<hours>\d+h)?\s*(?P<minutes>\d+m)?\s*(?P<seconds>\d+s)?\s*((?P<hashtag>#)|$)\s*(?P<task>.*)$`)

// SpanParser recognizes relative durations like "1h 30m #study".
// Minutes and seconds are bounded 0-59; days and hours are unbounded.
// A zero total (including empty input, which the regex technically
// accepts) is non-recognition, not "notify now".
type SpanParser struct{}

func (SpanParser) Examples() []string {
	return []string{"1h 30m #study", "30s", "90s #breathe"}
}

func (SpanParser) Parse(text string, loc *time.Location, now time.Time) (Record, bool) {
	g, ok := namedGroups(patternSpan, text)
	if !ok {
		return Record{}, false
	}

	days, ok := atoiUnit(g["days"])
	if !ok {
		return Record{}, false
	}
	hours, ok := atoiUnit(g["hours"])
	if !ok {
		return Record{}, false
	}
	minutes, ok := atoiUnit(g["minutes"])
	if !ok || minutes > 59 {
		return Record{}, false
	}
	seconds, ok := atoiUnit(g["seconds"])
	if !ok || seconds > 59 {
		return Record{}, false
	}

	total := seconds + minutes*60 + hours*3600 + days*86400
	if total == 0 {
		return Record{}, false
	}

	now = now.UTC()
	return Record{
		CreatedAt:  now,
		NotifyAt:   now.Add(time.Duration(total) * time.Second),
		Label:      captureLabel(g),
		SourceText: text,
	}, true
}
