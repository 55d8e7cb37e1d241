// Package history persists the pending-URL queue and the action history in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_nlm/internal/engine"
)

// Actions recorded in history.
const (
	ActionAddSource     = "add_source"
	ActionAddText       = "add_text"
	ActionAddPDF        = "add_pdf"
	ActionDeleteSources = "delete_sources"
	ActionSyncDrive     = "sync_drive"
	ActionCrawlComments = "crawl_comments"
	ActionError         = "error"
)

// DefaultLimit caps the number of history rows kept.
const DefaultLimit = 500

// Entry is one history row. Newest entries have the highest ID.
type Entry struct {
	ID         int64  `json:"id"`
	Action     string `json:"action"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	NotebookID string `json:"notebook_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// QueueItem is a URL waiting to be added to a notebook.
type QueueItem struct {
	ID      int64  `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	AddedAt string `json:"added_at"`
}

// Store wraps the SQLite database.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens (or creates) the database at path. limit <= 0 means DefaultLimit.
func Open(path string, limit int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{db: db, limit: limit}, nil
}

var (
	defaultStore *Store
	defaultOnce  sync.Once
	defaultErr   error
)

// Default opens the store configured in engine.Cfg once per process.
// An empty HistoryPath means ~/.go_nlm/history.db.
func Default() (*Store, error) {
	defaultOnce.Do(func() {
		path := engine.Cfg.HistoryPath
		if path == "" {
			path = filepath.Join(os.Getenv("HOME"), ".go_nlm", "history.db")
		}
		defaultStore, defaultErr = Open(path, engine.Cfg.HistoryLimit)
	})
	return defaultStore, defaultErr
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		action      TEXT NOT NULL,
		url         TEXT,
		title       TEXT,
		notebook_id TEXT,
		detail      TEXT,
		created_at  TEXT NOT NULL
	)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS queue (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		url      TEXT NOT NULL,
		title    TEXT,
		added_at TEXT NOT NULL
	)`)
	return err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// AddHistory records e and drops the oldest rows beyond the cap.
func (s *Store) AddHistory(ctx context.Context, e Entry) error {
	if e.Action == "" {
		return errors.New("history: action is required")
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (action, url, title, notebook_id, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Action, e.URL, e.Title, e.NotebookID, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (SELECT id FROM history ORDER BY id DESC LIMIT ?)`, s.limit)
	if err != nil {
		return fmt.Errorf("history: trim: %w", err)
	}
	return nil
}

// ListHistory returns up to limit entries, newest first. limit <= 0 returns all kept rows.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, url, title, notebook_id, detail, created_at FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var url, title, nb, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &url, &title, &nb, &detail, &e.CreatedAt); err != nil {
			continue
		}
		e.URL, e.Title, e.NotebookID, e.Detail = url.String, title.String, nb.String, detail.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory removes every history row.
func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

// Enqueue appends items to the queue and returns the new queue length.
func (s *Store) Enqueue(ctx context.Context, items ...QueueItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck
	ts := now()
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO queue (url, title, added_at) VALUES (?, ?, ?)`, it.URL, it.Title, ts); err != nil {
			return 0, fmt.Errorf("history: enqueue: %w", err)
		}
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Queue returns pending items in insertion order.
func (s *Store) Queue(ctx context.Context) ([]QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, title, added_at FROM queue ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("history: queue: %w", err)
	}
	defer rows.Close()

	items := []QueueItem{}
	for rows.Next() {
		var it QueueItem
		var title sql.NullString
		if err := rows.Scan(&it.ID, &it.URL, &title, &it.AddedAt); err != nil {
			continue
		}
		it.Title = title.String
		items = append(items, it)
	}
	return items, rows.Err()
}

// RemoveQueueItem drops one pending item.
func (s *Store) RemoveQueueItem(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue WHERE id = ?`, id)
	return err
}

// ClearQueue drops every pending item.
func (s *Store) ClearQueue(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue`)
	return err
}
