package models

import "time"

// Member is one user's entry in a lobby's durable member list.
type Member struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}
