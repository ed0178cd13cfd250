// Package store persists annotation layers per page.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ScriptInk/internal/state"
)

var (
	// ErrStale is returned when a write is not newer than the stored write
	// of the same writer.
	ErrStale = errors.New("stale annotation write")
	// ErrClosed is returned by a store that has been closed.
	ErrClosed = errors.New("store closed")
)

// Page is one persisted annotation layer.
type Page struct {
	ID        string      `json:"page_id"`
	Layer     state.Layer `json:"strokes"`
	Writer    string      `json:"writer,omitempty"`
	Seq       uint64      `json:"seq,omitempty"`
	UpdatedAt time.Time   `json:"updated_at,omitempty"`
}

// Store loads and saves pages. Loading a page that was never saved returns
// an empty layer.
type Store interface {
	Load(ctx context.Context, pageID string) (Page, error)
	Save(ctx context.Context, page Page) error
}

// PageSummary describes one stored page.
type PageSummary struct {
	ID          string
	StrokeCount int
	UpdatedAt   time.Time
}

// Lister is implemented by stores that can enumerate their pages.
type Lister interface {
	ListPages(ctx context.Context) ([]PageSummary, error)
}

// SortSummaries orders pages most recently updated first.
func SortSummaries(pages []PageSummary) {
	sort.Slice(pages, func(i, j int) bool {
		if !pages[i].UpdatedAt.Equal(pages[j].UpdatedAt) {
			return pages[i].UpdatedAt.After(pages[j].UpdatedAt)
		}
		return pages[i].ID < pages[j].ID
	})
}

// Accepts applies the write ordering rule: writes from the same writer must
// carry increasing sequence numbers, writes from different writers always
// win.
func Accepts(current, next Page) bool {
	if current.Writer == "" || current.Writer != next.Writer {
		return true
	}
	return next.Seq > current.Seq
}

// CheckID trims and validates a page id.
func CheckID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("page id is required")
	}
	return id, nil
}

// Memory keeps pages in process memory.
type Memory struct {
	mu     sync.RWMutex
	pages  map[string]Page
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{pages: make(map[string]Page)}
}

// Load returns a copy of the stored page.
func (m *Memory) Load(ctx context.Context, pageID string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	id, err := CheckID(pageID)
	if err != nil {
		return Page{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Page{}, ErrClosed
	}
	p, ok := m.pages[id]
	if !ok {
		return Page{ID: id, Layer: state.Layer{}}, nil
	}
	p.Layer = p.Layer.Clone()
	return p, nil
}

// Save stores a copy of page.
func (m *Memory) Save(ctx context.Context, page Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := CheckID(page.ID)
	if err != nil {
		return err
	}
	if err := page.Layer.Validate(); err != nil {
		return fmt.Errorf("save page %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if !Accepts(m.pages[id], page) {
		return ErrStale
	}
	page.ID = id
	page.Layer = page.Layer.Clone()
	if page.Layer == nil {
		page.Layer = state.Layer{}
	}
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = time.Now().UTC()
	}
	m.pages[id] = page
	return nil
}

// ListPages returns the stored pages, most recently updated first.
func (m *Memory) ListPages(ctx context.Context) ([]PageSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	pages := make([]PageSummary, 0, len(m.pages))
	for id, p := range m.pages {
		pages = append(pages, PageSummary{ID: id, StrokeCount: len(p.Layer), UpdatedAt: p.UpdatedAt})
	}
	SortSummaries(pages)
	return pages, nil
}

// Close makes further calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
