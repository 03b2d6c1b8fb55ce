// internal/lobby/errors.go
package lobby

import "errors"

var (
	// ErrRoomNotFound means a join referenced a lobby the store does not know.
	ErrRoomNotFound = errors.New("room not found")
	// ErrStoreUnavailable wraps any store failure or timeout during a join.
	ErrStoreUnavailable = errors.New("lobby store unavailable")
	// ErrUnknownConnection is returned for operations on an unregistered connection.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrInvalidJoin is returned when a join request lacks a lobby or user id.
	ErrInvalidJoin = errors.New("invalid join request")
)
