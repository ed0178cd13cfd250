package net

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ScriptInk/internal/state"
	"ScriptInk/internal/store"
)

const (
	// LinkScheme prefixes share links handed from a host to its peers.
	LinkScheme = "scriptink"
	// DefaultPort is where a host serves the annotation store.
	DefaultPort = 8888
	// Path is the websocket endpoint on the host.
	Path = "/ws"
)

// Message types.
const (
	TypeLoad  = "load"
	TypeSave  = "save"
	TypeLayer = "layer"
	TypeAck   = "ack"
	TypeError = "error"
)

// Message is one websocket frame. Requests carry an ID that the reply
// echoes; pushes of a page updated by another peer carry none.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	PageID    string          `json:"page_id,omitempty"`
	Strokes   json.RawMessage `json:"strokes,omitempty"`
	Writer    string          `json:"writer,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitzero"`
	Error     string          `json:"error,omitempty"`
	Stale     bool            `json:"stale,omitempty"`
}

func pageMessage(typ, id string, p store.Page) (Message, error) {
	layer := p.Layer
	if layer == nil {
		layer = state.Layer{}
	}
	data, err := json.Marshal(layer)
	if err != nil {
		return Message{}, fmt.Errorf("encode layer: %w", err)
	}
	return Message{
		Type:      typ,
		ID:        id,
		PageID:    p.ID,
		Strokes:   data,
		Writer:    p.Writer,
		Seq:       p.Seq,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

func (m Message) page() (store.Page, error) {
	layer, err := state.DecodeLayer(m.Strokes)
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{
		ID:        m.PageID,
		Layer:     layer,
		Writer:    m.Writer,
		Seq:       m.Seq,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

// FormatLink builds the share link for a page served at host:port.
func FormatLink(host string, port int, pageID string) string {
	u := url.URL{Scheme: LinkScheme, Host: host + ":" + strconv.Itoa(port), Path: "/" + pageID}
	return u.String()
}

// ParseLink splits a share link into the host address and the page id.
// The page id is empty when the link names only the host.
func ParseLink(link string) (addr, pageID string, err error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", fmt.Errorf("parse link: %w", err)
	}
	if u.Scheme != LinkScheme || u.Host == "" {
		return "", "", fmt.Errorf("parse link: %q is not a %s:// link", link, LinkScheme)
	}
	addr = u.Host
	if u.Port() == "" {
		addr += ":" + strconv.Itoa(DefaultPort)
	}
	return addr, strings.Trim(u.Path, "/"), nil
}
