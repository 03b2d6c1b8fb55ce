// internal/lobby/events.go
package lobby

import (
	"encoding/json"

	"github.com/jason-s-yu/squadup/internal/models"
)

// Wire event names.
const (
	EventJoinLobby        = "join_lobby"
	EventSendMessage      = "send_message"
	EventLobbyUpdated     = "lobby_updated"
	EventLobbyListUpdated = "lobby_list_updated"
	EventReceiveMessage   = "receive_message"
	EventLobbyCreated     = "lobby_created"
	EventError            = "error"
)

// Event is the envelope written to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Inbound is the envelope read from clients; Payload is decoded per Type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinRequest is the payload of join_lobby.
type JoinRequest struct {
	LobbyID string         `json:"lobbyId"`
	User    models.UserRef `json:"user"`
}

// SendMessage is the payload of send_message.
type SendMessage struct {
	LobbyID string         `json:"lobbyId"`
	User    models.UserRef `json:"user"`
	Message string         `json:"message"`
	Time    string         `json:"time"`
}

func lobbyUpdated(l *models.Lobby) Event {
	return Event{Type: EventLobbyUpdated, Payload: l}
}

func lobbyListUpdated(l *models.Lobby) Event {
	return Event{Type: EventLobbyListUpdated, Payload: l}
}

func receiveMessage(m models.ChatMessage) Event {
	return Event{Type: EventReceiveMessage, Payload: m}
}

// ErrorEvent builds the unicast error frame sent for malformed client input.
func ErrorEvent(msg string) Event {
	return Event{Type: EventError, Payload: map[string]string{"message": msg}}
}
