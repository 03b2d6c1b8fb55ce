// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/lobby"
	"github.com/jason-s-yu/squadup/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	subprotocol   = "squadup"
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
	joinQueueSize = 8
)

var errBinaryFrame = errors.New("binary frame")

// LobbyWSHandler serves the realtime lobby socket. Each socket gets a read
// pump, a write pump draining its outbound queue, and a join worker so slow
// store calls never hold up chat.
func (s *Server) LobbyWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guestID, _ := s.Sessions.UserFromRequest(r)

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: s.originPatterns(),
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		// The subprotocol is optional, but a client that asks for others is
		// speaking something else.
		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != subprotocol {
			c.Close(BadSubprotocolError, "client must speak the squadup subprotocol")
			return
		}

		conn := s.Hub.Connect()
		middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, conn.ID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		joins := make(chan lobby.JoinRequest, joinQueueSize)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			writePump(ctx, c, conn, s.Logger)
			cancel()
		}()
		go func() {
			defer wg.Done()
			s.joinWorker(ctx, conn.ID, joins)
		}()

		readErr := s.readPump(ctx, c, conn.ID, guestID, joins)

		s.Hub.Disconnect(conn.ID)
		cancel()
		wg.Wait()
		middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, conn.ID, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump reads client frames until the socket closes. A normal close
// returns nil.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, connID uuid.UUID, guestID string, joins chan<- lobby.JoinRequest) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			c.Close(UnsupportedFrameError, "only JSON text frames are accepted")
			return errBinaryFrame
		}
		s.handleFrame(connID, guestID, msg, joins)
	}
}

// handleFrame decodes one client envelope and dispatches it by type.
func (s *Server) handleFrame(connID uuid.UUID, guestID string, raw []byte, joins chan<- lobby.JoinRequest) {
	log := s.Logger.WithField("conn", connID)

	var in lobby.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		log.Warnf("invalid json: %v", err)
		s.Hub.Reply(connID, lobby.ErrorEvent("invalid JSON format"))
		return
	}

	switch in.Type {
	case lobby.EventJoinLobby:
		var req lobby.JoinRequest
		if err := json.Unmarshal(in.Payload, &req); err != nil {
			log.Warnf("invalid join_lobby payload: %v", err)
			s.Hub.Reply(connID, lobby.ErrorEvent("invalid join_lobby payload"))
			return
		}
		if req.User.UserID == "" {
			req.User.UserID = guestID
		}
		if req.LobbyID == "" || req.User.UserID == "" {
			s.Hub.Reply(connID, lobby.ErrorEvent("join_lobby requires lobbyId and user.userId"))
			return
		}
		// Subscribed now, reconciled by the join worker.
		if err := s.Hub.Registry.Subscribe(connID, req.LobbyID); err != nil {
			return
		}
		select {
		case joins <- req:
		default:
			log.WithField("lobby", req.LobbyID).Warn("join queue full, dropping join_lobby")
			s.Hub.Reply(connID, lobby.ErrorEvent("too many pending joins"))
		}

	case lobby.EventSendMessage:
		var msg lobby.SendMessage
		if err := json.Unmarshal(in.Payload, &msg); err != nil {
			log.Warnf("invalid send_message payload: %v", err)
			s.Hub.Reply(connID, lobby.ErrorEvent("invalid send_message payload"))
			return
		}
		if err := s.Hub.HandleChatMessage(connID, msg); err != nil {
			log.Debugf("send_message: %v", err)
		}

	default:
		log.Warnf("unknown message type %q", in.Type)
		s.Hub.Reply(connID, lobby.ErrorEvent(fmt.Sprintf("unknown message type %q", in.Type)))
	}
}

// joinWorker runs this socket's join requests one at a time. Failures are
// logged by the reconciler and produce no frames.
func (s *Server) joinWorker(ctx context.Context, connID uuid.UUID, joins <-chan lobby.JoinRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-joins:
			s.Hub.HandleJoinRequest(ctx, connID, req)
		}
	}
}

// writePump drains the connection's outbound queue onto the socket and pings
// the client periodically. It returns when the queue is closed, the context
// ends, or a write fails.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, logger logrus.FieldLogger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-conn.Out():
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Debugf("write error: %v", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Debugf("ping failed: %v", err)
				return
			}
		}
	}
}
