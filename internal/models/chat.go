package models

import (
	"bytes"
	"encoding/json"
)

// ChatMessage is relayed to a room and never stored.
type ChatMessage struct {
	LobbyID string `json:"lobbyId"`
	User    string `json:"user"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// UserRef identifies the user behind a client frame. Clients send either a
// bare display name or a {userId, name} object.
type UserRef struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// UnmarshalJSON accepts both the string and object forms.
func (u *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*u = UserRef{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*u = UserRef{Name: name}
		return nil
	}
	type plain UserRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = UserRef(p)
	return nil
}
