package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tonematch/studio/backend"
	"github.com/tonematch/studio/review"
	"github.com/tonematch/studio/wizard"
)

// ErrNotFound is returned when a draft, board or share does not exist.
var ErrNotFound = errors.New("studio: not found")

// ViewStore keeps per-browser UI state that must survive a page load: the
// wizard draft, review boards with their local edits, and shared posts. It
// never holds backend entities.
type ViewStore struct {
	db *sql.DB
}

// NewViewStore opens (or creates) the SQLite database at path, ensures the
// data directory exists, and creates the schema.
func NewViewStore(path string) (*ViewStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page reads proceed while a board is saved; writers wait on the
	// busy timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &ViewStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *ViewStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *ViewStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ViewStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS drafts (
    view_id TEXT PRIMARY KEY,
    draft_id TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL,
    claimed INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS boards (
    view_id TEXT NOT NULL,
    batch_id TEXT NOT NULL,
    project_id TEXT NOT NULL,
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (view_id, batch_id)
);
CREATE TABLE IF NOT EXISTS shares (
    id TEXT PRIMARY KEY,
    platform TEXT NOT NULL,
    text TEXT NOT NULL,
    tone TEXT NOT NULL,
    keywords TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`)
	return err
}

// GetDraft returns the wizard draft of view.
func (s *ViewStore) GetDraft(view string) (*wizard.Draft, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM drafts WHERE view_id = ?`, view).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d wizard.Draft
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("studio: decode draft: %w", err)
	}
	return &d, nil
}

// SaveDraft stores d as the draft of view. Replacing it with a different
// draft releases any claim; saving the same draft keeps it.
func (s *ViewStore) SaveDraft(view string, d *wizard.Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO drafts (view_id, draft_id, data, claimed, updated_at) VALUES (?, ?, ?, 0, ?)
ON CONFLICT(view_id) DO UPDATE SET
    data = excluded.data,
    claimed = CASE WHEN drafts.draft_id = excluded.draft_id THEN drafts.claimed ELSE 0 END,
    draft_id = excluded.draft_id,
    updated_at = excluded.updated_at`,
		view, d.ID, string(data), time.Now().Unix())
	return err
}

// ClaimDraft marks draft draftID of view as being submitted. It reports false
// when that draft is gone, was replaced, or another request already claimed it.
func (s *ViewStore) ClaimDraft(view, draftID string) (bool, error) {
	res, err := s.db.Exec(`UPDATE drafts SET claimed = 1, updated_at = ? WHERE view_id = ? AND draft_id = ? AND claimed = 0`,
		time.Now().Unix(), view, draftID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteDraft removes draft draftID of view. A newer draft is left alone.
func (s *ViewStore) DeleteDraft(view, draftID string) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE view_id = ? AND draft_id = ?`, view, draftID)
	return err
}

// GetBoard returns the review board of batchID for view.
func (s *ViewStore) GetBoard(view, batchID string) (*review.Board, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM boards WHERE view_id = ? AND batch_id = ?`, view, batchID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var b review.Board
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("studio: decode board: %w", err)
	}
	return &b, nil
}

// SaveBoard stores b for view, replacing the previous version.
func (s *ViewStore) SaveBoard(view, projectID string, b *review.Board) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO boards (view_id, batch_id, project_id, data, updated_at) VALUES (?, ?, ?, ?, ?)`,
		view, b.BatchID, projectID, string(data), time.Now().Unix())
	return err
}

// InitBoard stores b unless view already has a board for the batch, and
// returns whichever board is stored. Concurrent completions of the same batch
// therefore agree on one set of post ids.
func (s *ViewStore) InitBoard(view, projectID string, b *review.Board) (*review.Board, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO boards (view_id, batch_id, project_id, data, updated_at) VALUES (?, ?, ?, ?, ?)`,
		view, b.BatchID, projectID, string(data), time.Now().Unix()); err != nil {
		return nil, err
	}
	return s.GetBoard(view, b.BatchID)
}

// Share is a post published on a public share page.
type Share struct {
	ID        string
	Platform  backend.Platform
	Text      string
	Tone      string
	Keywords  []string
	CreatedAt time.Time
}

// CreateShare stores p under a new id.
func (s *ViewStore) CreateShare(p review.Post) (Share, error) {
	sh := Share{
		ID:        uuid.NewString(),
		Platform:  p.Platform,
		Text:      p.Text,
		Tone:      p.Tone,
		Keywords:  p.Keywords,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	keywords, err := json.Marshal(sh.Keywords)
	if err != nil {
		return Share{}, err
	}
	_, err = s.db.Exec(`INSERT INTO shares (id, platform, text, tone, keywords, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sh.ID, string(sh.Platform), sh.Text, sh.Tone, string(keywords), sh.CreatedAt.Unix())
	if err != nil {
		return Share{}, err
	}
	return sh, nil
}

// GetShare returns the share with id.
func (s *ViewStore) GetShare(id string) (Share, error) {
	var platform, keywords string
	var created int64
	sh := Share{ID: id}
	err := s.db.QueryRow(`SELECT platform, text, tone, keywords, created_at FROM shares WHERE id = ?`, id).
		Scan(&platform, &sh.Text, &sh.Tone, &keywords, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Share{}, ErrNotFound
	}
	if err != nil {
		return Share{}, err
	}
	sh.Platform = backend.Platform(platform)
	sh.CreatedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(keywords), &sh.Keywords); err != nil {
		return Share{}, fmt.Errorf("studio: decode share keywords: %w", err)
	}
	return sh, nil
}

// Prune deletes drafts and boards untouched since before. Shares are kept.
func (s *ViewStore) Prune(before time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM drafts WHERE updated_at < ?`,
		`DELETE FROM boards WHERE updated_at < ?`,
	} {
		res, err := s.db.Exec(q, before.Unix())
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// StartCleanupScheduler prunes state older than retention every interval.
// Returns a stop function.
func (s *ViewStore) StartCleanupScheduler(retention, interval time.Duration, onError func(error)) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := s.Prune(time.Now().Add(-retention)); err != nil && onError != nil {
					onError(err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
