// Package prefs holds per-chat preferences: the chat's timezone and a
// short history of recently accepted timer inputs, used to build one-tap
// re-suggestion keyboards.
package prefs

import (
	"sort"
	"strings"
	"time"
)

// HistoryMax is how many recent inputs a chat keeps.
const HistoryMax = 4

type HistoryEntry struct {
	Message string    `json:"message"`
	Sent    time.Time `json:"sent"`
}

type ChatPrefs struct {
	ChatID   int64
	Timezone string
	History  []HistoryEntry
}

// AppendAndTrim returns a new history with entry added: deduplicated by
// message text (most recent occurrence wins), ordered most-recent-first,
// and truncated to max entries. The input slice is not modified.
func AppendAndTrim(history []HistoryEntry, entry HistoryEntry, max int) []HistoryEntry {
	if max <= 0 {
		return nil
	}

	merged := make([]HistoryEntry, 0, len(history)+1)
	merged = append(merged, entry)
	merged = append(merged, history...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Sent.After(merged[j].Sent)
	})

	out := make([]HistoryEntry, 0, max)
	seen := make(map[string]struct{}, len(merged))
	for _, e := range merged {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			continue
		}
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, e)
		if len(out) == max {
			break
		}
	}
	return out
}

// TrimOlderThan drops history entries sent before cutoff, preserving
// order. Returns the kept slice and how many entries were dropped.
func TrimOlderThan(history []HistoryEntry, cutoff time.Time) ([]HistoryEntry, int) {
	kept := history[:0:0]
	for _, e := range history {
		if e.Sent.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	return kept, len(history) - len(kept)
}
