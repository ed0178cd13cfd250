package net

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ScriptInk/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Peer is one websocket connection to the host.
type Peer struct {
	conn *websocket.Conn
	addr string
	send chan Message

	mu       sync.Mutex
	watching map[string]bool
}

func (p *Peer) watch(pageID string) {
	p.mu.Lock()
	p.watching[pageID] = true
	p.mu.Unlock()
}

func (p *Peer) watches(pageID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watching[pageID]
}

// PeerManager tracks the connected peers of a host.
type PeerManager struct {
	peers map[*Peer]bool
	mu    sync.RWMutex
}

// NewPeerManager creates an empty manager.
func NewPeerManager() *PeerManager {
	return &PeerManager{peers: make(map[*Peer]bool)}
}

// Add registers a peer.
func (pm *PeerManager) Add(p *Peer) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.peers[p] = true
	log.Printf("[HOST] Peer connected from %s", p.addr)
}

// Remove forgets a peer.
func (pm *PeerManager) Remove(p *Peer) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.peers[p] {
		delete(pm.peers, p)
		close(p.send)
		log.Printf("[HOST] Peer %s disconnected", p.addr)
	}
}

// Len returns the number of connected peers.
func (pm *PeerManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Broadcast queues msg for every peer watching pageID except exclude.
// A peer whose queue is full misses the push and catches up on its next load.
func (pm *PeerManager) Broadcast(pageID string, msg Message, exclude *Peer) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	for p := range pm.peers {
		if p == exclude || !p.watches(pageID) {
			continue
		}
		select {
		case p.send <- msg:
		default:
			log.Printf("[HOST] Dropped push of page %s to slow peer %s", pageID, p.addr)
		}
	}
}

// reply queues msg for p unless p has already been removed.
func (pm *PeerManager) reply(p *Peer, msg Message) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if !pm.peers[p] {
		return
	}
	select {
	case p.send <- msg:
	default:
		log.Printf("[HOST] Dropped reply %s to slow peer %s", msg.ID, p.addr)
	}
}

// Server serves an annotation store to peers over websocket. Every save it
// accepts is pushed to the other peers that loaded or saved the same page,
// and to the host's own session through OnLayer.
type Server struct {
	store    store.Store
	peers    *PeerManager
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	onLayer func(store.Page)
}

// NewServer returns a server backed by st.
func NewServer(st store.Store) *Server {
	return &Server{
		store: st,
		peers: NewPeerManager(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Peers are desktop clients on the LAN, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// OnLayer sets the callback receiving every page a peer saves.
func (s *Server) OnLayer(fn func(store.Page)) {
	s.mu.Lock()
	s.onLayer = fn
	s.mu.Unlock()
}

func (s *Server) peerSaved(page store.Page) {
	s.mu.RLock()
	fn := s.onLayer
	s.mu.RUnlock()
	if fn != nil {
		fn(page)
	}
}

// Store returns the backing store as the host's own session must use it:
// its saves are pushed to every peer watching the page.
func (s *Server) Store() store.Store { return hostStore{s} }

type hostStore struct{ srv *Server }

func (h hostStore) Load(ctx context.Context, pageID string) (store.Page, error) {
	return h.srv.store.Load(ctx, pageID)
}

func (h hostStore) Save(ctx context.Context, page store.Page) error {
	if err := h.srv.store.Save(ctx, page); err != nil {
		return err
	}
	page.ID, _ = store.CheckID(page.ID)
	h.srv.push(page, nil)
	return nil
}

// push relays an accepted save to the peers watching its page.
func (s *Server) push(page store.Page, exclude *Peer) {
	msg, err := pageMessage(TypeLayer, "", page)
	if err != nil {
		log.Printf("[HOST] Could not encode push of page %s: %v", page.ID, err)
		return
	}
	s.peers.Broadcast(page.ID, msg, exclude)
}

// Peers returns the connected peer set.
func (s *Server) Peers() *PeerManager { return s.peers }

// Handler returns a mux serving the websocket endpoint at Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	return mux
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HOST] Upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	p := &Peer{
		conn:     conn,
		addr:     r.RemoteAddr,
		send:     make(chan Message, sendBuffer),
		watching: make(map[string]bool),
	}
	s.peers.Add(p)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.writeLoop(p)
	s.readLoop(ctx, p)
}

func (s *Server) readLoop(ctx context.Context, p *Peer) {
	defer func() {
		s.peers.Remove(p)
		_ = p.conn.Close()
	}()
	p.conn.SetReadLimit(8 << 20)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[HOST] Read from %s failed: %v", p.addr, err)
			}
			return
		}
		s.peers.reply(p, s.handle(ctx, p, msg))
	}
}

func (s *Server) handle(ctx context.Context, p *Peer, msg Message) Message {
	id, err := store.CheckID(msg.PageID)
	if err != nil {
		return errorMessage(msg.ID, err)
	}
	switch msg.Type {
	case TypeLoad:
		page, err := s.store.Load(ctx, id)
		if err != nil {
			return errorMessage(msg.ID, err)
		}
		p.watch(id)
		reply, err := pageMessage(TypeLayer, msg.ID, page)
		if err != nil {
			return errorMessage(msg.ID, err)
		}
		return reply

	case TypeSave:
		msg.PageID = id
		page, err := msg.page()
		if err != nil {
			return errorMessage(msg.ID, err)
		}
		if err := s.store.Save(ctx, page); err != nil {
			return errorMessage(msg.ID, err)
		}
		p.watch(id)
		log.Printf("[HOST] Saved %d strokes to page %s from %s", len(page.Layer), id, p.addr)
		s.push(page, p)
		s.peerSaved(page)
		return Message{Type: TypeAck, ID: msg.ID, PageID: id, Writer: page.Writer, Seq: page.Seq}
	}
	return Message{Type: TypeError, ID: msg.ID, Error: "unknown message type " + msg.Type}
}

func errorMessage(id string, err error) Message {
	return Message{Type: TypeError, ID: id, Error: err.Error(), Stale: errors.Is(err, store.ErrStale)}
}

func (s *Server) writeLoop(p *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(msg); err != nil {
				log.Printf("[HOST] Write to %s failed: %v", p.addr, err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
