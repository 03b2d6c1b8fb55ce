// internal/lobby/connection.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
)

// State is the lifecycle position of a connection.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	default:
		return "disconnected"
	}
}

// Connection is one live client session. Frames queued with Write are drained
// by the transport's write loop through Out.
type Connection struct {
	ID uuid.UUID

	mu     sync.Mutex
	out    chan []byte
	closed bool
	user   models.UserRef
}

func newConnection(buffer int) *Connection {
	return &Connection{
		ID:  uuid.New(),
		out: make(chan []byte, buffer),
	}
}

// Out is closed once the connection is unregistered.
func (c *Connection) Out() <-chan []byte {
	return c.out
}

// Write queues a frame without blocking. It reports false when the queue is
// full or the connection is already closed; the frame is dropped in that case.
func (c *Connection) Write(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}

// Identity returns the user of the connection's most recent join.
func (c *Connection) Identity() models.UserRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Connection) setIdentity(u models.UserRef) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}
