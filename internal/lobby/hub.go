// internal/lobby/hub.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
	"github.com/sirupsen/logrus"
)

// Options tunes a Hub.
type Options struct {
	JoinTimeout    time.Duration
	OutboundBuffer int
}

// Hub owns the registry, room manager, router and reconciler for one process.
// Transports talk to the hub and never to the components directly.
type Hub struct {
	Registry *Registry
	Rooms    *RoomManager
	Router   *Router
	Sessions *Reconciler

	log logrus.FieldLogger
}

// NewHub builds a hub whose durable membership lives in s.
func NewHub(s store.LobbyStore, logger logrus.FieldLogger, opts Options) *Hub {
	registry := NewRegistry(opts.OutboundBuffer)
	rooms := NewRoomManager(s, opts.JoinTimeout)
	router := NewRouter(registry, logger)
	return &Hub{
		Registry: registry,
		Rooms:    rooms,
		Router:   router,
		Sessions: NewReconciler(registry, rooms, router, logger),
		log:      logger,
	}
}

// Connect registers a new connection.
func (h *Hub) Connect() *Connection {
	c := h.Registry.Register()
	h.log.WithField("conn", c.ID).Info("User connected")
	return c
}

// Disconnect unregisters the connection. Durable membership is left as is so
// a quick reload can rejoin as an existing member.
func (h *Hub) Disconnect(id uuid.UUID) {
	h.Registry.Unregister(id)
	h.log.WithField("conn", id).Info("User disconnected")
}

// HandleJoinRequest delegates to the reconciler.
func (h *Hub) HandleJoinRequest(ctx context.Context, connID uuid.UUID, req JoinRequest) error {
	return h.Sessions.HandleJoinRequest(ctx, connID, req.LobbyID, req.User)
}

// HandleChatMessage delegates to the reconciler.
func (h *Hub) HandleChatMessage(connID uuid.UUID, msg SendMessage) error {
	return h.Sessions.HandleChatMessage(connID, msg)
}

// AnnounceLobbyCreated tells every connection about a new lobby.
func (h *Hub) AnnounceLobbyCreated(l *models.Lobby) int {
	return h.Router.ToAll(Event{Type: EventLobbyCreated, Payload: l})
}

// Reply sends ev to a single connection.
func (h *Hub) Reply(connID uuid.UUID, ev Event) bool {
	return h.Router.ToConnection(connID, ev)
}
