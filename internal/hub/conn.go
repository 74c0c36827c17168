package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is a registry handle for one live streaming connection. The gateway
// drains Outbound with a single writer; deliver never blocks a publisher.
type Conn struct {
	id        string
	outbound  chan Event
	dropped   func()
	closeOnce sync.Once
	closed    chan struct{}
}

func NewConn(buffer int) *Conn {
	if buffer < 1 {
		buffer = 64
	}
	return &Conn{
		id:       uuid.NewString(),
		outbound: make(chan Event, buffer),
		closed:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Outbound is the stream of events queued for this connection.
func (c *Conn) Outbound() <-chan Event { return c.outbound }

// OnDrop installs a hook invoked when a frame is discarded because the
// outbound queue is full.
func (c *Conn) OnDrop(fn func()) { c.dropped = fn }

// Close marks the connection dead. Safe to call more than once; publishers
// stop queueing after the first call.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Conn) deliver(ev Event) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.outbound <- ev:
	default:
		// Drop for slow consumers; one stalled client must not hold up
		// delivery to its group siblings.
		if c.dropped != nil {
			c.dropped()
		}
	}
}
