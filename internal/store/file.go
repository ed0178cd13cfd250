package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ScriptInk/internal/state"
)

// File keeps one JSON document per page in a directory.
type File struct {
	dir string
	mu  sync.Mutex
}

// filePage is the on-disk document.
type filePage struct {
	ID        string          `json:"page_id"`
	Strokes   json.RawMessage `json:"strokes"`
	Writer    string          `json:"writer,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OpenFile prepares dir for page files.
func OpenFile(dir string) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(id string) string {
	return filepath.Join(f.dir, url.PathEscape(id)+".json")
}

// Load reads the page document, or an empty layer if there is none.
func (f *File) Load(ctx context.Context, pageID string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	id, err := CheckID(pageID)
	if err != nil {
		return Page{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(id)
}

func (f *File) read(id string) (Page, error) {
	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Page{ID: id, Layer: state.Layer{}}, nil
	}
	if err != nil {
		return Page{}, fmt.Errorf("read page %s: %w", id, err)
	}
	var doc filePage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Page{}, fmt.Errorf("parse page %s: %w", id, err)
	}
	layer, err := state.DecodeLayer(doc.Strokes)
	if err != nil {
		return Page{}, fmt.Errorf("parse page %s: %w", id, err)
	}
	return Page{ID: id, Layer: layer, Writer: doc.Writer, Seq: doc.Seq, UpdatedAt: doc.UpdatedAt}, nil
}

// Save writes the page document through a temp file and rename.
func (f *File) Save(ctx context.Context, page Page) error {
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
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read(id)
	if err != nil {
		log.Printf("[STORE] Overwriting unreadable page %s: %v", id, err)
	}
	if !Accepts(current, page) {
		return ErrStale
	}

	strokes, err := json.Marshal(page.Layer)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", id, err)
	}
	updated := page.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	data, err := json.MarshalIndent(filePage{
		ID:        id,
		Strokes:   strokes,
		Writer:    page.Writer,
		Seq:       page.Seq,
		UpdatedAt: updated,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode page %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".page-*")
	if err != nil {
		return fmt.Errorf("write page %s: %w", id, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write page %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write page %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), f.path(id)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write page %s: %w", id, err)
	}
	log.Printf("[STORE] Saved %d strokes to page %s", len(page.Layer), id)
	return nil
}

// ListPages reads every page document in the directory, most recently
// updated first.
func (f *File) ListPages(ctx context.Context) ([]PageSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	var pages []PageSummary
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		p, err := f.read(id)
		if err != nil {
			log.Printf("[STORE] Skipping unreadable page %s: %v", id, err)
			continue
		}
		pages = append(pages, PageSummary{ID: id, StrokeCount: len(p.Layer), UpdatedAt: p.UpdatedAt})
	}
	SortSummaries(pages)
	return pages, nil
}
