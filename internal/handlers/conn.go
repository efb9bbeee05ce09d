// internal/handlers/conn.go
package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordparty/internal/notifier"
)

const outboxSize = 64

// conn is the outbox of one WebSocket client. The hub fills it, the write pump drains it.
type conn struct {
	playerID uuid.UUID
	out      chan notifier.Message
	closed   chan struct{}
	once     sync.Once
}

var _ notifier.Outbox = (*conn)(nil)

func newConn(playerID uuid.UUID) *conn {
	return &conn{
		playerID: playerID,
		out:      make(chan notifier.Message, outboxSize),
		closed:   make(chan struct{}),
	}
}

// Send queues msg without blocking. It fails once the connection is closed or
// its buffer is full.
func (c *conn) Send(msg notifier.Message) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

// close tells the write pump to shut the socket down. Safe to call repeatedly.
func (c *conn) close() {
	c.once.Do(func() { close(c.closed) })
}
