package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"ScriptInk/internal/state"
)

func sampleLayer() state.Layer {
	return state.Layer{
		{Points: []float64{0, 0, 10, 10}, Type: state.CompositeInk, Color: "#ff0000", Width: 5},
		{Points: []float64{}, Type: state.CompositeErase, Color: "black", Width: 20},
	}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := OpenFile(filepath.Join(t.TempDir(), "pages"))
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"file":   fileStore,
	}
}

func TestStoreLoadMissingPage(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			page, err := s.Load(context.Background(), "script-7/page-1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if page.ID != "script-7/page-1" {
				t.Fatalf("expected page id, got %q", page.ID)
			}
			if page.Layer == nil || len(page.Layer) != 0 {
				t.Fatalf("expected empty layer, got %#v", page.Layer)
			}
		})
	}
}

func TestStoreSaveLoad(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Save(ctx, Page{ID: "p1", Layer: sampleLayer(), Writer: "w", Seq: 1}); err != nil {
				t.Fatalf("save: %v", err)
			}
			page, err := s.Load(ctx, "p1")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !reflect.DeepEqual(page.Layer, sampleLayer()) {
				t.Fatalf("expected %+v, got %+v", sampleLayer(), page.Layer)
			}
			if page.Writer != "w" || page.Seq != 1 {
				t.Fatalf("expected writer w seq 1, got %q %d", page.Writer, page.Seq)
			}
			if page.UpdatedAt.IsZero() {
				t.Fatal("expected updated_at to be set")
			}
		})
	}
}

func TestStoreRejectsStaleWrites(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Save(ctx, Page{ID: "p", Layer: sampleLayer(), Writer: "a", Seq: 5}); err != nil {
				t.Fatalf("save: %v", err)
			}
			err := s.Save(ctx, Page{ID: "p", Layer: state.Layer{}, Writer: "a", Seq: 4})
			if !errors.Is(err, ErrStale) {
				t.Fatalf("expected ErrStale, got %v", err)
			}
			if err := s.Save(ctx, Page{ID: "p", Layer: state.Layer{}, Writer: "b", Seq: 1}); err != nil {
				t.Fatalf("expected other writer to win, got %v", err)
			}
			page, err := s.Load(ctx, "p")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(page.Layer) != 0 || page.Writer != "b" {
				t.Fatalf("expected last write from b, got %+v", page)
			}
		})
	}
}

func TestStoreRequiresPageID(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load(context.Background(), "  "); err == nil {
				t.Fatal("expected error for blank page id")
			}
			if err := s.Save(context.Background(), Page{}); err == nil {
				t.Fatal("expected error for blank page id")
			}
		})
	}
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load(ctx, "p"); !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
		})
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	_ = m.Close()
	if _, err := m.Load(context.Background(), "p"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestFileRejectsCorruptPage(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFile(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	bad := `{"page_id":"p","strokes":[{"points":[1],"type":"source-over","color":"red","width":1}]}`
	if err := os.WriteFile(filepath.Join(dir, "p.json"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Load(context.Background(), "p"); !errors.Is(err, state.ErrOddPoints) {
		t.Fatalf("expected ErrOddPoints, got %v", err)
	}
}

func TestStoreListPages(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
			if err := s.Save(ctx, Page{ID: "script-7/page-1", Layer: sampleLayer(), UpdatedAt: older}); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := s.Save(ctx, Page{ID: "page-2", Layer: state.Layer{}, UpdatedAt: older.Add(time.Minute)}); err != nil {
				t.Fatalf("save: %v", err)
			}

			pages, err := s.(Lister).ListPages(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(pages) != 2 || pages[0].ID != "page-2" || pages[1].ID != "script-7/page-1" {
				t.Fatalf("expected [page-2 script-7/page-1], got %+v", pages)
			}
			if pages[1].StrokeCount != 2 || !pages[1].UpdatedAt.Equal(older) {
				t.Fatalf("unexpected summary %+v", pages[1])
			}
		})
	}
}

func TestStoreRejectsUnloadableStrokes(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bad := state.Layer{{Points: []float64{1, 1}, Type: state.CompositeInk, Color: "red", Width: 0}}
			if err := s.Save(ctx, Page{ID: "p", Layer: bad}); !errors.Is(err, state.ErrBadWidth) {
				t.Fatalf("expected ErrBadWidth, got %v", err)
			}
			page, err := s.Load(ctx, "p")
			if err != nil || len(page.Layer) != 0 {
				t.Fatalf("expected page to stay empty and loadable, got %+v %v", page, err)
			}
		})
	}
}
