// Package sqlite provides a SQLite-backed annotation store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ScriptInk/internal/state"
	"ScriptInk/internal/store"
	"ScriptInk/internal/store/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Store persists annotation layers in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored layer, or an empty one for an unknown page.
func (s *Store) Load(ctx context.Context, pageID string) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}
	if s == nil || s.sqlDB == nil {
		return store.Page{}, fmt.Errorf("storage is not configured")
	}
	id, err := store.CheckID(pageID)
	if err != nil {
		return store.Page{}, err
	}

	var (
		raw       string
		writer    string
		seq       int64
		updatedAt int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT strokes_json, writer, seq, updated_at FROM annotation_layers WHERE page_id = ?`,
		id,
	).Scan(&raw, &writer, &seq, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Page{ID: id, Layer: state.Layer{}}, nil
	}
	if err != nil {
		return store.Page{}, fmt.Errorf("get annotation layer: %w", err)
	}
	layer, err := state.DecodeLayer([]byte(raw))
	if err != nil {
		return store.Page{}, fmt.Errorf("get annotation layer %s: %w", id, err)
	}
	return store.Page{
		ID:        id,
		Layer:     layer,
		Writer:    writer,
		Seq:       uint64(seq),
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
	}, nil
}

// Save upserts the page unless it is stale for its writer.
func (s *Store) Save(ctx context.Context, page store.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id, err := store.CheckID(page.ID)
	if err != nil {
		return err
	}
	if err := page.Layer.Validate(); err != nil {
		return fmt.Errorf("save annotation layer %s: %w", id, err)
	}
	strokes, err := json.Marshal(page.Layer)
	if err != nil {
		return fmt.Errorf("encode annotation layer: %w", err)
	}
	updatedAt := page.UpdatedAt.UTC()
	if page.UpdatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current store.Page
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT writer, seq FROM annotation_layers WHERE page_id = ?`, id,
	).Scan(&current.Writer, &seq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get annotation layer: %w", err)
	}
	current.Seq = uint64(seq)
	if !store.Accepts(current, page) {
		return store.ErrStale
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO annotation_layers (page_id, strokes_json, stroke_count, writer, seq, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(page_id) DO UPDATE SET
		   strokes_json = excluded.strokes_json,
		   stroke_count = excluded.stroke_count,
		   writer = excluded.writer,
		   seq = excluded.seq,
		   updated_at = excluded.updated_at`,
		id,
		string(strokes),
		len(page.Layer),
		page.Writer,
		int64(page.Seq),
		updatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("put annotation layer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotation layer: %w", err)
	}
	return nil
}

// ListPages returns stored pages, most recently updated first.
func (s *Store) ListPages(ctx context.Context) ([]store.PageSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT page_id, stroke_count, updated_at FROM annotation_layers ORDER BY updated_at DESC, page_id`)
	if err != nil {
		return nil, fmt.Errorf("list annotation layers: %w", err)
	}
	defer rows.Close()

	var pages []store.PageSummary
	for rows.Next() {
		var (
			p         store.PageSummary
			updatedAt int64
		)
		if err := rows.Scan(&p.ID, &p.StrokeCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan annotation layer: %w", err)
		}
		p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list annotation layers: %w", err)
	}
	return pages, nil
}
