// Package store persists timer records and chat preferences in SQLite.
package store

import (
	"context"
	"time"

	"remindbot/internal/prefs"
	"remindbot/internal/timer"
)

// TimerStore is the persistence contract the scheduling side consumes.
type TimerStore interface {
	// CreateTimer persists rec and returns it with the store-assigned ID.
	CreateTimer(ctx context.Context, rec timer.Record) (timer.Record, error)
	// ListDue returns every record with NotifyAt <= now.
	ListDue(ctx context.Context, now time.Time) ([]timer.Record, error)
	// ListUpcoming returns a chat's records with NotifyAt > now, soonest
	// first.
	ListUpcoming(ctx context.Context, chatID int64, now time.Time) ([]timer.Record, error)
	// DeleteTimer removes a record by id. Deleting an already-gone id is
	// not an error; the dispatch loop relies on that after crash-and-retry.
	DeleteTimer(ctx context.Context, id int64) error
	// DeleteChatTimers removes all of a chat's records and reports how
	// many were deleted.
	DeleteChatTimers(ctx context.Context, chatID int64) (int64, error)
}

// PrefsStore is the persistence contract for chat preferences.
type PrefsStore interface {
	// GetPrefs returns nil (no error) when the chat has no preferences yet.
	GetPrefs(ctx context.Context, chatID int64) (*prefs.ChatPrefs, error)
	UpsertPrefs(ctx context.Context, p prefs.ChatPrefs) error
}
