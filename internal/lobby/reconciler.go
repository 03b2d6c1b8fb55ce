// internal/lobby/reconciler.go
package lobby

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/sirupsen/logrus"
)

const anonymousName = "Anonymous"

// Reconciler merges a connection's join request with durable membership and
// decides who hears about it. It also relays chat.
type Reconciler struct {
	registry *Registry
	rooms    *RoomManager
	router   *Router
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewReconciler wires the three core components together.
func NewReconciler(registry *Registry, rooms *RoomManager, router *Router, logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		registry: registry,
		rooms:    rooms,
		router:   router,
		log:      logger,
		now:      time.Now,
	}
}

// HandleJoinRequest subscribes the connection to room, records the user as a
// member and notifies:
//   - a new member: the whole room gets lobby_updated, then every connection
//     gets lobby_list_updated;
//   - an existing member: only the requesting connection gets lobby_updated.
//
// The store work is not cancelled with ctx; if the connection disconnects in
// the meantime its notification is dropped. Errors are logged and returned;
// on failure the connection stays subscribed and receives nothing.
func (r *Reconciler) HandleJoinRequest(ctx context.Context, connID uuid.UUID, room string, user models.UserRef) error {
	fields := logrus.Fields{"conn": connID, "lobby": room, "user": user.UserID}
	if room == "" || user.UserID == "" {
		r.log.WithFields(fields).Warn("join: missing lobby or user id")
		return ErrInvalidJoin
	}

	if err := r.registry.Subscribe(connID, room); err != nil {
		r.log.WithFields(fields).Debug("join: connection already gone")
		return err
	}
	if conn, ok := r.registry.Lookup(connID); ok {
		conn.setIdentity(user)
	}
	r.log.WithFields(fields).Infof("User %s joined lobby %s", user.Name, room)

	_, err := r.rooms.JoinThen(context.WithoutCancel(ctx), room, user, func(outcome JoinOutcome) {
		if _, ok := r.registry.Lookup(connID); !ok {
			r.log.WithFields(fields).Debugf("join: connection closed before %s could be delivered", outcome.Kind)
			if outcome.Kind == AlreadyMember {
				return
			}
		}
		switch outcome.Kind {
		case NewMember:
			n := r.router.ToRoom(room, lobbyUpdated(outcome.Lobby))
			r.router.ToAll(lobbyListUpdated(outcome.Lobby))
			r.log.WithFields(fields).Debugf("join: new member, notified %d room connections", n)
		case AlreadyMember:
			r.router.ToConnection(connID, lobbyUpdated(outcome.Lobby))
		}
	})
	switch {
	case errors.Is(err, ErrRoomNotFound):
		r.log.WithFields(fields).Warn("join: lobby does not exist")
		return err
	case err != nil:
		r.log.WithFields(fields).Errorf("join: %v", err)
		return err
	}
	return nil
}

// HandleChatMessage relays msg to every connection subscribed to its lobby,
// the sender included. Room membership is not checked.
func (r *Reconciler) HandleChatMessage(connID uuid.UUID, msg SendMessage) error {
	conn, ok := r.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if msg.LobbyID == "" || strings.TrimSpace(msg.Message) == "" {
		return nil
	}

	name := msg.User.Name
	if name == "" {
		name = conn.Identity().Name
	}
	if name == "" {
		name = anonymousName
	}
	ts := msg.Time
	if ts == "" {
		ts = r.now().Format("15:04")
	}

	r.router.ToRoom(msg.LobbyID, receiveMessage(models.ChatMessage{
		LobbyID: msg.LobbyID,
		User:    name,
		Message: msg.Message,
		Time:    ts,
	}))
	return nil
}
