package timer

import "time"

// parsers is the fixed grammar priority order. The order is load-bearing:
// the grammars overlap loosely and first match wins, so this must stay an
// explicit ordered list (no registration, no map).
var parsers = []Parser{Clock12Parser{}, Clock24Parser{}, SpanParser{}}

// Parsers returns the grammar set in priority order.
func Parsers() []Parser { return parsers }

// Dispatch tries each grammar in priority order and returns the first
// recognition. The returned record has no ChatID bound and is not
// persisted; that is the caller's job. ok=false means no grammar
// recognized the input.
func Dispatch(text string, loc *time.Location, now time.Time) (Record, bool) {
	for _, p := range parsers {
		if rec, ok := p.Parse(text, loc, now); ok {
			return rec, true
		}
	}
	return Record{}, false
}
