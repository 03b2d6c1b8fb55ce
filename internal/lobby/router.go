// internal/lobby/router.go
package lobby

import (
	"encoding/json"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const laneCount = 64

// Router fans events out to connections. Deliveries to one room go through a
// lane chosen by hashing the room id, so two ToRoom calls for the same room
// are applied to every subscriber in the same order.
type Router struct {
	registry *Registry
	log      logrus.FieldLogger
	lanes    [laneCount]sync.Mutex
}

// NewRouter creates a router reading subscriptions from registry.
func NewRouter(registry *Registry, logger logrus.FieldLogger) *Router {
	return &Router{registry: registry, log: logger}
}

// ToRoom delivers ev to every connection subscribed to room and returns the
// number of connections that accepted it.
func (rt *Router) ToRoom(room string, ev Event) int {
	frame, ok := rt.encode(ev)
	if !ok {
		return 0
	}
	lane := &rt.lanes[xxhash.Sum64String(room)%laneCount]
	lane.Lock()
	defer lane.Unlock()
	return rt.deliver(rt.registry.ConnectionsOf(room), frame, ev.Type)
}

// ToAll delivers ev to every registered connection.
func (rt *Router) ToAll(ev Event) int {
	frame, ok := rt.encode(ev)
	if !ok {
		return 0
	}
	return rt.deliver(rt.registry.All(), frame, ev.Type)
}

// ToConnection delivers ev to a single connection if it is still registered.
func (rt *Router) ToConnection(id uuid.UUID, ev Event) bool {
	conn, ok := rt.registry.Lookup(id)
	if !ok {
		return false
	}
	frame, ok := rt.encode(ev)
	if !ok {
		return false
	}
	return rt.deliver([]*Connection{conn}, frame, ev.Type) == 1
}

func (rt *Router) encode(ev Event) ([]byte, bool) {
	frame, err := json.Marshal(ev)
	if err != nil {
		rt.log.Errorf("router: failed to marshal %s event: %v", ev.Type, err)
		return nil, false
	}
	return frame, true
}

func (rt *Router) deliver(conns []*Connection, frame []byte, typ string) int {
	delivered := 0
	for _, c := range conns {
		if c.Write(frame) {
			delivered++
			continue
		}
		rt.log.WithFields(logrus.Fields{
			"conn": c.ID,
			"type": typ,
		}).Warn("router: outbound queue closed or full, dropped event")
	}
	return delivered
}
