package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"ScriptInk/internal/state"
	"ScriptInk/internal/store"
)

// Status is the load state of a session.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Session binds one page of the annotation store to a Router. Saves are
// fire-and-forget: local state never waits for, or rolls back on, the store.
type Session struct {
	pageID string
	store  store.Store
	clock  *Clock
	router *Router

	post     func(func())
	notify   func(string)
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu      sync.Mutex
	status  Status
	loading bool
	applied store.Page
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPost sets how background results are handed to the event loop.
// The default runs them on the calling goroutine.
func WithPost(fn func(func())) SessionOption {
	return func(s *Session) { s.post = fn }
}

// WithNotify sets the user-facing notice sink.
func WithNotify(fn func(string)) SessionOption {
	return func(s *Session) { s.notify = fn }
}

// WithOnChange sets the callback receiving every new snapshot.
func WithOnChange(fn func(State)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// WithClock overrides the save clock.
func WithClock(c *Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithRouter passes options through to the session's Router.
func WithRouter(opts ...Option) SessionOption {
	return func(s *Session) {
		s.router = NewRouter(append(opts, WithPersist(s.save))...)
	}
}

// NewSession returns a session for pageID. Call Start to load the page.
func NewSession(pageID string, st store.Store, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		pageID:   pageID,
		store:    st,
		post:     func(fn func()) { fn() },
		notify:   func(string) {},
		onChange: func(State) {},
		ctx:      ctx,
		cancel:   cancel,
	}
	s.router = NewRouter(WithPersist(s.save))
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewClock()
	}
	return s
}

// PageID returns the page this session edits.
func (s *Session) PageID() string { return s.pageID }

// Writer returns the id stamped on this session's saves.
func (s *Session) Writer() string { return s.clock.Writer() }

// Status returns the load state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.State()
}

// Mode returns the current interaction mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Mode()
}

// Brush returns the paint of the next stroke.
func (s *Session) Brush() state.Brush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Brush()
}

// SetBrush sets the paint of the next stroke.
func (s *Session) SetBrush(b state.Brush) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router.SetBrush(b)
}

// SetMode switches the interaction mode.
func (s *Session) SetMode(m Mode) State {
	s.mu.Lock()
	st := s.router.SetMode(m)
	s.mu.Unlock()
	s.onChange(st)
	return st
}

// Dispatch routes one input event.
func (s *Session) Dispatch(ev Event) State {
	s.mu.Lock()
	st := s.router.Dispatch(ev)
	s.mu.Unlock()
	s.onChange(st)
	return st
}

// Start loads the page in the background. Drawing input is ignored until
// the load succeeds; a failed load leaves the session read-only until
// Start is called again.
func (s *Session) Start() {
	s.mu.Lock()
	if s.status == StatusReady || s.loading {
		s.mu.Unlock()
		return
	}
	s.status = StatusLoading
	s.loading = true
	s.mu.Unlock()

	go func() {
		page, err := s.store.Load(s.ctx, s.pageID)
		if s.closed.Load() {
			return
		}
		if err != nil {
			log.Printf("[SYNC] Load of page %s failed: %v", s.pageID, err)
			s.post(func() {
				s.mu.Lock()
				s.status = StatusFailed
				s.loading = false
				st := s.router.State()
				s.mu.Unlock()
				s.notify(fmt.Sprintf("Could not load page %s: %v", s.pageID, err))
				s.onChange(st)
			})
			return
		}
		log.Printf("[SYNC] Loaded %d strokes for page %s", len(page.Layer), s.pageID)
		s.post(func() { s.apply(page, true) })
	}()
}

// Hydrate replaces the layer with a newer copy pushed by the store. It is
// ignored before the initial load, for the revision already applied, and
// for this session's own writes. It is never saved back.
func (s *Session) Hydrate(page store.Page) {
	if page.ID != s.pageID {
		return
	}
	s.post(func() { s.apply(page, false) })
}

func (s *Session) apply(page store.Page, initial bool) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	if !initial {
		sameRevision := page.Writer != "" && page.Writer == s.applied.Writer && page.Seq == s.applied.Seq
		if s.status != StatusReady || page.Writer == s.clock.Writer() || sameRevision {
			s.mu.Unlock()
			return
		}
	}
	layer := page.Layer
	if layer == nil {
		layer = state.Layer{}
	}
	st := s.router.Dispatch(Hydrate{Layer: layer})
	s.status = StatusReady
	s.loading = false
	s.applied = page
	s.mu.Unlock()
	s.onChange(st)
}

// save is the router's persist callback. It runs on the event loop and
// returns immediately.
func (s *Session) save(layer state.Layer) {
	if s.closed.Load() {
		return
	}
	page := store.Page{
		ID:        s.pageID,
		Layer:     layer,
		Writer:    s.clock.Writer(),
		Seq:       s.clock.Next(),
		UpdatedAt: time.Now().UTC(),
	}
	go func() {
		err := s.store.Save(s.ctx, page)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrStale):
			log.Printf("[SYNC] Dropped stale save %d of page %s", page.Seq, page.ID)
		case s.ctx.Err() != nil:
			log.Printf("[SYNC] Save %d of page %s lost at close: %v", page.Seq, page.ID, err)
		default:
			log.Printf("[SYNC] Save %d of page %s failed: %v", page.Seq, page.ID, err)
			s.post(func() {
				if !s.closed.Load() {
					s.notify(fmt.Sprintf("Could not save page %s: %v", page.ID, err))
				}
			})
		}
	}()
}

// Close ends the session. In-flight saves are not flushed.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
}
