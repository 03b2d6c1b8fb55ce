// internal/lobby/registry.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live connections and the rooms each one is subscribed to.
// Both indexes are updated under one lock so a room snapshot never observes a
// half-applied subscribe or disconnect.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*registration
	rooms  map[string]map[uuid.UUID]*Connection
	buffer int
}

type registration struct {
	conn  *Connection
	rooms map[string]struct{}
}

// NewRegistry creates an empty registry whose connections buffer up to
// buffer outbound frames each.
func NewRegistry(buffer int) *Registry {
	if buffer <= 0 {
		buffer = 32
	}
	return &Registry{
		conns:  make(map[uuid.UUID]*registration),
		rooms:  make(map[string]map[uuid.UUID]*Connection),
		buffer: buffer,
	}
}

// Register creates and tracks a new connection with no subscriptions.
func (r *Registry) Register() *Connection {
	c := newConnection(r.buffer)
	r.mu.Lock()
	r.conns[c.ID] = &registration{conn: c, rooms: make(map[string]struct{})}
	r.mu.Unlock()
	return c
}

// Unregister drops the connection from every room and closes its outbound
// queue. Durable lobby membership is not touched. Calling it twice is harmless.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.conns[id]
	if !ok {
		return
	}
	for room := range reg.rooms {
		r.removeFromRoomLocked(room, id)
	}
	delete(r.conns, id)
	reg.conn.close()
}

// Subscribe adds the connection to room. Subscribing twice is a no-op.
func (r *Registry) Subscribe(id uuid.UUID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Connection)
		r.rooms[room] = members
	}
	members[id] = reg.conn
	reg.rooms[room] = struct{}{}
	return nil
}

// Unsubscribe removes the connection from room.
func (r *Registry) Unsubscribe(id uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.conns[id]
	if !ok {
		return
	}
	delete(reg.rooms, room)
	r.removeFromRoomLocked(room, id)
}

func (r *Registry) removeFromRoomLocked(room string, id uuid.UUID) {
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// ConnectionsOf returns a snapshot of the connections subscribed to room.
func (r *Registry) ConnectionsOf(room string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[room]
	out := make([]*Connection, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.conns))
	for _, reg := range r.conns {
		out = append(out, reg.conn)
	}
	return out
}

// Lookup returns the connection with the given id if it is still registered.
func (r *Registry) Lookup(id uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return reg.conn, true
}

// RoomsOf lists the rooms the connection is subscribed to.
func (r *Registry) RoomsOf(id uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.conns[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(reg.rooms))
	for room := range reg.rooms {
		out = append(out, room)
	}
	return out
}

// State reports where the connection is in its lifecycle.
func (r *Registry) State(id uuid.UUID) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.conns[id]
	switch {
	case !ok:
		return StateDisconnected
	case len(reg.rooms) > 0:
		return StateInRoom
	default:
		return StateConnected
	}
}

// Len is the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount is the number of rooms with at least one subscriber.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
