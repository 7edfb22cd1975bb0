package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"remindbot/internal/prefs"
	"remindbot/internal/timer"
	"remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// SQLite implements TimerStore and PrefsStore on an embedded database.
type SQLite struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the database at cfg.Path, applies pragmas, runs
// migrations, and returns the store.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*SQLite, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite is a single-writer engine; keep the pool at one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLite{db: db, log: log}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- timers ----

func (s *SQLite) CreateTimer(ctx context.Context, rec timer.Record) (timer.Record, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO timers(chat_id, created_at, notify_at, label, source_text) VALUES(?,?,?,?,?)`,
		rec.ChatID, rec.CreatedAt.UTC().Unix(), rec.NotifyAt.UTC().Unix(), rec.Label, rec.SourceText,
	)
	if err != nil {
		return timer.Record{}, fmt.Errorf("insert timer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return timer.Record{}, err
	}
	rec.ID = id
	return rec, nil
}

func (s *SQLite) ListDue(ctx context.Context, now time.Time) ([]timer.Record, error) {
	return s.listTimers(ctx,
		`SELECT id, chat_id, created_at, notify_at, label, source_text
		 FROM timers WHERE notify_at <= ? ORDER BY notify_at`,
		now.UTC().Unix(),
	)
}

func (s *SQLite) ListUpcoming(ctx context.Context, chatID int64, now time.Time) ([]timer.Record, error) {
	return s.listTimers(ctx,
		`SELECT id, chat_id, created_at, notify_at, label, source_text
		 FROM timers WHERE chat_id = ? AND notify_at > ? ORDER BY notify_at`,
		chatID, now.UTC().Unix(),
	)
}

func (s *SQLite) listTimers(ctx context.Context, query string, args ...any) ([]timer.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []timer.Record
	for rows.Next() {
		var rec timer.Record
		var created, notify int64
		if err := rows.Scan(&rec.ID, &rec.ChatID, &created, &notify, &rec.Label, &rec.SourceText); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(created, 0).UTC()
		rec.NotifyAt = time.Unix(notify, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteTimer is idempotent: zero affected rows is fine.
func (s *SQLite) DeleteTimer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, id)
	return err
}

func (s *SQLite) DeleteChatTimers(ctx context.Context, chatID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- chat preferences ----

func (s *SQLite) GetPrefs(ctx context.Context, chatID int64) (*prefs.ChatPrefs, error) {
	var (
		tz      string
		history string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT timezone, history FROM chat_prefs WHERE chat_id = ?`, chatID,
	).Scan(&tz, &history)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p := &prefs.ChatPrefs{ChatID: chatID, Timezone: tz}
	if err := json.Unmarshal([]byte(history), &p.History); err != nil {
		// A corrupt history column is not worth failing the chat over.
		s.log.Warn("chat history column corrupt; resetting", logx.Int64("chat_id", chatID), logx.Err(err))
		p.History = nil
	}
	return p, nil
}

func (s *SQLite) UpsertPrefs(ctx context.Context, p prefs.ChatPrefs) error {
	history, err := json.Marshal(p.History)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_prefs(chat_id, timezone, history, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET timezone=excluded.timezone, history=excluded.history, updated_at=excluded.updated_at`,
		p.ChatID, p.Timezone, string(history), time.Now().UTC().Unix(),
	)
	return err
}

// ---- maintenance ----

// PruneHistory drops re-suggestion entries older than cutoff from every
// chat and reports how many entries were removed.
func (s *SQLite) PruneHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, history FROM chat_prefs`)
	if err != nil {
		return 0, err
	}

	type update struct {
		chatID  int64
		history []prefs.HistoryEntry
	}
	var (
		updates []update
		dropped int64
	)
	for rows.Next() {
		var (
			chatID int64
			raw    string
		)
		if err := rows.Scan(&chatID, &raw); err != nil {
			rows.Close()
			return dropped, err
		}
		var hist []prefs.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &hist); err != nil {
			continue
		}
		kept, n := prefs.TrimOlderThan(hist, cutoff)
		if n == 0 {
			continue
		}
		dropped += int64(n)
		updates = append(updates, update{chatID: chatID, history: kept})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return dropped, err
	}
	rows.Close()

	for _, u := range updates {
		b, err := json.Marshal(u.history)
		if err != nil {
			return dropped, err
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE chat_prefs SET history = ?, updated_at = ? WHERE chat_id = ?`,
			string(b), time.Now().UTC().Unix(), u.chatID,
		); err != nil {
			return dropped, err
		}
	}
	return dropped, nil
}

// Optimize asks SQLite to refresh its query-planner statistics.
func (s *SQLite) Optimize(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA optimize`)
	return err
}
