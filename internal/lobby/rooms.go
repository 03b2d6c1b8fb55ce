// internal/lobby/rooms.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
)

// DefaultJoinTimeout bounds a join when the manager is built without one.
const DefaultJoinTimeout = 5 * time.Second

// OutcomeKind says whether a join added a member.
type OutcomeKind int

const (
	NewMember OutcomeKind = iota + 1
	AlreadyMember
)

func (k OutcomeKind) String() string {
	switch k {
	case NewMember:
		return "new_member"
	case AlreadyMember:
		return "already_member"
	default:
		return "unknown"
	}
}

// JoinOutcome carries the lobby state after a successful join.
type JoinOutcome struct {
	Kind  OutcomeKind
	Lobby *models.Lobby
}

// RoomManager owns durable membership. Joins to the same room are serialized
// so the fetch, scan, append and save steps of two racing joins never overlap.
type RoomManager struct {
	store   store.LobbyStore
	locks   *keyLock
	timeout time.Duration
	now     func() time.Time
}

// NewRoomManager builds a manager over s. Every join, including the wait for
// the room's join lock, is bounded by timeout.
func NewRoomManager(s store.LobbyStore, timeout time.Duration) *RoomManager {
	if timeout <= 0 {
		timeout = DefaultJoinTimeout
	}
	return &RoomManager{
		store:   s,
		locks:   newKeyLock(),
		timeout: timeout,
		now:     time.Now,
	}
}

// Join adds user to the lobby identified by room unless a member with the same
// user id already exists. It returns ErrRoomNotFound for unknown lobbies and
// an error wrapping ErrStoreUnavailable when the store fails or times out.
func (m *RoomManager) Join(ctx context.Context, room string, user models.UserRef) (JoinOutcome, error) {
	return m.JoinThen(ctx, room, user, nil)
}

// JoinThen is Join, calling then with the outcome before the room's join lock
// is released. Notifications sent from then reach subscribers in the same
// order as the member lists they carry. then must not block.
func (m *RoomManager) JoinThen(ctx context.Context, room string, user models.UserRef, then func(JoinOutcome)) (JoinOutcome, error) {
	if room == "" || user.UserID == "" {
		return JoinOutcome{}, ErrInvalidJoin
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	unlock, err := m.locks.lock(ctx, room)
	if err != nil {
		return JoinOutcome{}, fmt.Errorf("%w: waiting for room %s: %w", ErrStoreUnavailable, room, err)
	}
	defer unlock()

	lob, err := m.store.FindByID(ctx, room)
	if errors.Is(err, store.ErrNotFound) {
		return JoinOutcome{}, ErrRoomNotFound
	}
	if err != nil {
		return JoinOutcome{}, fmt.Errorf("%w: find %s: %w", ErrStoreUnavailable, room, err)
	}

	if lob.HasMember(user.UserID) {
		out := JoinOutcome{Kind: AlreadyMember, Lobby: lob}
		if then != nil {
			then(out)
		}
		return out, nil
	}

	lob.Members = append(lob.Members, models.Member{
		UserID:   user.UserID,
		Name:     user.Name,
		JoinedAt: m.now().UTC(),
	})
	if err := m.store.Save(ctx, lob); err != nil {
		return JoinOutcome{}, fmt.Errorf("%w: save %s: %w", ErrStoreUnavailable, room, err)
	}
	out := JoinOutcome{Kind: NewMember, Lobby: lob}
	if then != nil {
		then(out)
	}
	return out, nil
}
