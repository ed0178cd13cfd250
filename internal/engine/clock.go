package engine

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Clock stamps this session's saves with a writer id and an increasing
// sequence number so a store can drop writes that arrive out of order.
type Clock struct {
	writer string
	seq    atomic.Uint64
}

// NewClock returns a clock with a fresh random writer id.
func NewClock() *Clock {
	return &Clock{writer: uuid.NewString()}
}

// Writer returns the writer id.
func (c *Clock) Writer() string { return c.writer }

// Next returns the next sequence number, starting at 1.
func (c *Clock) Next() uint64 { return c.seq.Add(1) }
