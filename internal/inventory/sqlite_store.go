package inventory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/media-alt-enhancer/internal/config"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the SQLite-backed media inventory and run history.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// UpsertItem records a discovered media item. Existing alt text is preserved
// so a rescan never erases descriptions already written back.
func (s *SQLiteStore) UpsertItem(ctx context.Context, item MediaItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("item id is required")
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_items (id, url, alt_text, mime_type, path, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			mime_type = excluded.mime_type,
			path = excluded.path,
			updated_at = excluded.updated_at`,
		item.ID,
		item.URL,
		item.AltText,
		item.MimeType,
		item.Path,
		item.UpdatedAt,
	)
	return err
}

// ListCandidates returns items eligible under the replace policy, in
// insertion order. A positive limit caps the batch; limit <= 0 means all.
func (s *SQLiteStore) ListCandidates(ctx context.Context, policy config.ReplacePolicy, limit int) ([]MediaItem, error) {
	query := `SELECT id, url, alt_text, mime_type, path, updated_at FROM media_items`
	if policy.Normalized() != config.PolicyReplaceAll {
		query += ` WHERE TRIM(alt_text) = ''`
	}
	query += ` ORDER BY rowid ASC`

	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryItems(ctx, query, args...)
}

// ListItems returns every known item, optionally filtered to those still
// missing alt text.
func (s *SQLiteStore) ListItems(ctx context.Context, onlyMissing bool) ([]MediaItem, error) {
	query := `SELECT id, url, alt_text, mime_type, path, updated_at FROM media_items`
	if onlyMissing {
		query += ` WHERE TRIM(alt_text) = ''`
	}
	query += ` ORDER BY rowid ASC`
	return s.queryItems(ctx, query)
}

func (s *SQLiteStore) queryItems(ctx context.Context, query string, args ...any) ([]MediaItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]MediaItem, 0)
	for rows.Next() {
		var item MediaItem
		if err := rows.Scan(
			&item.ID,
			&item.URL,
			&item.AltText,
			&item.MimeType,
			&item.Path,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// SetAltText writes the generated description back to the item.
func (s *SQLiteStore) SetAltText(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE media_items SET alt_text = ?, updated_at = ? WHERE id = ?`,
		text,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("unknown media item %q", id)
	}
	return nil
}

// RecordRun persists the summary of one completed enhancement pass.
func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, source, started_at, finished_at, updated, skipped, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Source,
		run.StartedAt,
		run.FinishedAt,
		run.Updated,
		run.Skipped,
		string(errorsJSON),
	)
	return err
}

// ListRuns returns run summaries, most recent first. A positive limit caps
// the result; limit <= 0 means all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT id, source, started_at, finished_at, updated, skipped, errors
		 FROM runs
		 ORDER BY started_at DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]RunRecord, 0)
	for rows.Next() {
		var run RunRecord
		var errorsJSON string
		if err := rows.Scan(
			&run.ID,
			&run.Source,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Updated,
			&run.Skipped,
			&errorsJSON,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal run errors: %w", err)
		}
		ret = append(ret, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
