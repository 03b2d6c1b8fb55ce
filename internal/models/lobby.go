// internal/models/lobby.go
package models

import "time"

// Lobby statuses accepted on the durable record.
const (
	StatusOpen   = "Open"
	StatusFull   = "Full"
	StatusInGame = "In-Game"
)

// Lobby is the durable squad document. Members is append-only: the realtime
// layer adds entries on join and never removes them.
type Lobby struct {
	ID          string    `json:"id"`
	Host        string    `json:"host"`
	Game        string    `json:"game"`
	Map         string    `json:"map"`
	Mode        string    `json:"mode"`
	Rank        string    `json:"rank,omitempty"`
	Gender      string    `json:"gender"`
	Mic         bool      `json:"mic"`
	Status      string    `json:"status"`
	DiscordLink string    `json:"discordLink,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Members     []Member  `json:"members"`
}

// HasMember reports whether userID already appears in the member list.
func (l *Lobby) HasMember(userID string) bool {
	for _, m := range l.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand the record to other
// goroutines without sharing the member slice.
func (l *Lobby) Clone() *Lobby {
	if l == nil {
		return nil
	}
	c := *l
	c.Members = append([]Member(nil), l.Members...)
	return &c
}

// SearchText is the blob used when ranking lobbies against a free-text query.
func (l *Lobby) SearchText() string {
	return l.Game + " " + l.Mode + " " + l.Map + " " + l.Rank + " " + l.Host + " " + l.Gender
}

// ModerationText is the blob checked before a new lobby is accepted.
func (l *Lobby) ModerationText() string {
	return l.Game + " " + l.Map + " " + l.Mode + " " + l.Host
}
