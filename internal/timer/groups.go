package timer

import (
	"regexp"
	"strconv"
)

// namedGroups returns the named submatches of re applied to text. Groups
// that did not participate map to "".
func namedGroups(re *regexp.Regexp, text string) (map[string]string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string, 6)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = m[i]
		}
	}
	return out, true
}

// atoiField parses a decimal group value; absent groups count as 0.
// ok=false on overflow or garbage (collapses to non-recognition upstream).
func atoiField(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// atoiUnit parses a "<digits><unit>" group like "15m", dropping the
// trailing unit letter.
func atoiUnit(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	return atoiField(s[:len(s)-1])
}
