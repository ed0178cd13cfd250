package net

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ScriptInk/internal/store"
)

// Client is a store.Store served by a remote host.
type Client struct {
	conn *websocket.Conn
	addr string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Message
	onLayer func(store.Page)
	err     error

	done chan struct{}
}

// Dial connects to the host at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	url := "ws://" + addr + Path
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{
		conn:    conn,
		addr:    addr,
		pending: make(map[string]chan Message),
		onLayer: func(store.Page) {},
		done:    make(chan struct{}),
	}
	go c.readLoop()
	log.Printf("[CLIENT] Connected to host %s", addr)
	return c, nil
}

// Addr returns the host address.
func (c *Client) Addr() string { return c.addr }

// OnLayer sets the callback for pages pushed by the host after another
// peer saved them. It runs on the client's read goroutine.
func (c *Client) OnLayer(fn func(store.Page)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLayer = fn
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Load fetches a page from the host.
func (c *Client) Load(ctx context.Context, pageID string) (store.Page, error) {
	reply, err := c.request(ctx, Message{Type: TypeLoad, PageID: pageID})
	if err != nil {
		return store.Page{}, fmt.Errorf("load page %s: %w", pageID, err)
	}
	page, err := reply.page()
	if err != nil {
		return store.Page{}, fmt.Errorf("load page %s: %w", pageID, err)
	}
	return page, nil
}

// Save sends a page to the host. It fails with store.ErrStale when the host
// already holds a newer write from the same writer.
func (c *Client) Save(ctx context.Context, page store.Page) error {
	msg, err := pageMessage(TypeSave, "", page)
	if err != nil {
		return err
	}
	if _, err := c.request(ctx, msg); err != nil {
		return fmt.Errorf("save page %s: %w", page.ID, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, msg Message) (Message, error) {
	msg.ID = uuid.NewString()
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Message{}, err
	}
	c.pending[msg.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.ID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return Message{}, err
	}

	select {
	case reply := <-ch:
		if reply.Type == TypeError {
			if reply.Stale {
				return Message{}, store.ErrStale
			}
			return Message{}, errors.New(reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-c.done:
		return Message{}, c.Err()
	}
}

func (c *Client) readLoop() {
	var err error
	defer func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = fmt.Errorf("%w: %v", store.ErrClosed, err)
		}
		c.mu.Unlock()
		close(c.done)
	}()
	for {
		var msg Message
		if err = c.conn.ReadJSON(&msg); err != nil {
			log.Printf("[CLIENT] Disconnected from host %s: %v", c.addr, err)
			return
		}
		if msg.ID != "" {
			c.mu.Lock()
			ch := c.pending[msg.ID]
			c.mu.Unlock()
			if ch != nil {
				ch <- msg
			}
			continue
		}
		if msg.Type != TypeLayer {
			continue
		}
		page, perr := msg.page()
		if perr != nil {
			log.Printf("[CLIENT] Ignored bad push of page %s: %v", msg.PageID, perr)
			continue
		}
		c.mu.Lock()
		fn := c.onLayer
		c.mu.Unlock()
		fn(page)
	}
}

// Close hangs up. Requests still waiting fail with store.ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = store.ErrClosed
	}
	c.mu.Unlock()

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return c.conn.Close()
}
