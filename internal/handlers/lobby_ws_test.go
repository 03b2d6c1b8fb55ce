// internal/handlers/lobby_ws_test.go
package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/squadup/internal/lobby"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quietFor = 150 * time.Millisecond

func memberIDs(l models.Lobby) []string {
	out := make([]string, 0, len(l.Members))
	for _, m := range l.Members {
		out = append(out, m.UserID)
	}
	return out
}

// TestLobbyWSJoinScenario walks a second device of an existing member and a
// new member joining the same lobby.
func TestLobbyWSJoinScenario(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ts := startServer(t, srv)
	seedLobby(t, st, "L1", time.Now())

	outsider := dialWS(t, ts, nil)
	a := dialWS(t, ts, nil)
	waitConnections(t, srv, 2)

	a.send(lobby.EventJoinLobby, joinPayload("L1", "u1", "Ava"))
	assert.Equal(t, []string{"u1"}, memberIDs(a.expect(lobby.EventLobbyUpdated).lobby(t)))
	a.expect(lobby.EventLobbyListUpdated)
	outsider.expect(lobby.EventLobbyListUpdated)

	// Same user on a second device: only that socket hears about it.
	b := dialWS(t, ts, nil)
	waitConnections(t, srv, 3)
	b.send(lobby.EventJoinLobby, joinPayload("L1", "u1", "Ava"))
	assert.Equal(t, []string{"u1"}, memberIDs(b.expect(lobby.EventLobbyUpdated).lobby(t)))
	a.quiet(quietFor)
	b.quiet(quietFor)
	outsider.quiet(quietFor)

	c := dialWS(t, ts, nil)
	waitConnections(t, srv, 4)
	c.send(lobby.EventJoinLobby, joinPayload("L1", "u2", "Cole"))
	for _, ws := range []*wsClient{a, b, c} {
		l := ws.expect(lobby.EventLobbyUpdated).lobby(t)
		assert.Equal(t, []string{"u1", "u2"}, memberIDs(l))
		ws.expect(lobby.EventLobbyListUpdated)
	}
	assert.Equal(t, []string{"u1", "u2"}, memberIDs(outsider.expect(lobby.EventLobbyListUpdated).lobby(t)))
	outsider.quiet(quietFor)

	stored, err := st.FindByID(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, memberIDs(*stored))
}

func TestLobbyWSChatReachesRoomOnly(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ts := startServer(t, srv)
	seedLobby(t, st, "L1", time.Now())
	seedLobby(t, st, "L2", time.Now())

	a := dialWS(t, ts, nil)
	b := dialWS(t, ts, nil)
	other := dialWS(t, ts, nil)
	waitConnections(t, srv, 3)

	a.send(lobby.EventJoinLobby, joinPayload("L1", "u1", "Ava"))
	a.expect(lobby.EventLobbyUpdated)
	for _, ws := range []*wsClient{a, b, other} {
		ws.expect(lobby.EventLobbyListUpdated)
	}
	b.send(lobby.EventJoinLobby, joinPayload("L1", "u2", "Ben"))
	for _, ws := range []*wsClient{a, b} {
		ws.expect(lobby.EventLobbyUpdated)
	}
	for _, ws := range []*wsClient{a, b, other} {
		ws.expect(lobby.EventLobbyListUpdated)
	}
	other.send(lobby.EventJoinLobby, joinPayload("L2", "u3", "Otto"))
	other.expect(lobby.EventLobbyUpdated)
	for _, ws := range []*wsClient{a, b, other} {
		ws.expect(lobby.EventLobbyListUpdated)
	}

	a.send(lobby.EventSendMessage, map[string]any{
		"lobbyId": "L1",
		"user":    "Ava",
		"message": "gg",
		"time":    "10:30",
	})
	for _, ws := range []*wsClient{a, b} {
		m := ws.expect(lobby.EventReceiveMessage).chat(t)
		assert.Equal(t, "L1", m.LobbyID)
		assert.Equal(t, "Ava", m.User)
		assert.Equal(t, "gg", m.Message)
		assert.Equal(t, "10:30", m.Time)
	}
	other.quiet(quietFor)

	// Object form of user, no time: the server stamps HH:MM.
	b.send(lobby.EventSendMessage, map[string]any{
		"lobbyId": "L1",
		"user":    map[string]string{"userId": "u2", "name": "Ben"},
		"message": "rematch?",
	})
	for _, ws := range []*wsClient{a, b} {
		m := ws.expect(lobby.EventReceiveMessage).chat(t)
		assert.Equal(t, "Ben", m.User)
		assert.Regexp(t, `^\d{2}:\d{2}$`, m.Time)
	}
}

func TestLobbyWSUnknownLobbyStaysSubscribed(t *testing.T) {
	srv, _, hook := newTestServer(t)
	ts := startServer(t, srv)

	a := dialWS(t, ts, nil)
	waitConnections(t, srv, 1)

	a.send(lobby.EventJoinLobby, joinPayload("ghost", "u1", "Ava"))
	a.quiet(quietFor)
	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "join: lobby does not exist" {
				return true
			}
		}
		return false
	}, waitFor, 5*time.Millisecond)

	a.send(lobby.EventSendMessage, map[string]any{"lobbyId": "ghost", "message": "anyone?"})
	m := a.expect(lobby.EventReceiveMessage).chat(t)
	assert.Equal(t, "Ava", m.User)
}

func TestLobbyWSGuestIdentityFromCookie(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ts := startServer(t, srv)
	seedLobby(t, st, "L1", time.Now())

	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/session", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	guestID, err := srv.Sessions.AuthenticateJWT(cookies[0].Value)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Cookie", cookies[0].Name+"="+cookies[0].Value)
	a := dialWS(t, ts, header)
	waitConnections(t, srv, 1)

	a.send(lobby.EventJoinLobby, map[string]any{"lobbyId": "L1", "user": map[string]string{"name": "Guest"}})
	l := a.expect(lobby.EventLobbyUpdated).lobby(t)
	require.Len(t, l.Members, 1)
	assert.Equal(t, guestID, l.Members[0].UserID)
	assert.Equal(t, "Guest", l.Members[0].Name)
}

func TestLobbyWSRepliesWithErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := startServer(t, srv)

	a := dialWS(t, ts, nil)
	waitConnections(t, srv, 1)

	a.sendRaw(`{not json`)
	assert.Equal(t, "invalid JSON format", a.expect(lobby.EventError).errorMessage(t))

	a.send("dance", map[string]any{})
	assert.Contains(t, a.expect(lobby.EventError).errorMessage(t), `unknown message type "dance"`)

	a.send(lobby.EventJoinLobby, map[string]any{"user": map[string]string{"userId": "u1"}})
	assert.Equal(t, "join_lobby requires lobbyId and user.userId", a.expect(lobby.EventError).errorMessage(t))

	// No cookie and no userId: nothing to identify the member by.
	a.send(lobby.EventJoinLobby, map[string]any{"lobbyId": "L1", "user": map[string]string{"name": "Ava"}})
	assert.Equal(t, "join_lobby requires lobbyId and user.userId", a.expect(lobby.EventError).errorMessage(t))

	a.send(lobby.EventJoinLobby, "L1")
	assert.Equal(t, "invalid join_lobby payload", a.expect(lobby.EventError).errorMessage(t))
}

func TestLobbyWSDisconnectKeepsMembership(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ts := startServer(t, srv)
	seedLobby(t, st, "L1", time.Now())

	a := dialWS(t, ts, nil)
	waitConnections(t, srv, 1)
	a.send(lobby.EventJoinLobby, joinPayload("L1", "u1", "Ava"))
	a.expect(lobby.EventLobbyUpdated)
	a.expect(lobby.EventLobbyListUpdated)

	a.c.Close(websocket.StatusNormalClosure, "bye")
	waitConnections(t, srv, 0)
	assert.Equal(t, 0, srv.Hub.Registry.RoomCount())

	stored, err := st.FindByID(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, memberIDs(*stored))

	// Rejoining from a new socket is an existing member.
	b := dialWS(t, ts, nil)
	waitConnections(t, srv, 1)
	b.send(lobby.EventJoinLobby, joinPayload("L1", "u1", "Ava"))
	assert.Equal(t, []string{"u1"}, memberIDs(b.expect(lobby.EventLobbyUpdated).lobby(t)))
	b.quiet(quietFor)
}

func TestLobbyWSClosesOnBinaryFrame(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := startServer(t, srv)

	a := dialWS(t, ts, nil)
	waitConnections(t, srv, 1)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, a.c.Write(ctx, websocket.MessageBinary, []byte{0x1}))

	assert.Equal(t, websocket.StatusCode(UnsupportedFrameError), websocket.CloseStatus(a.closeErr()))
	waitConnections(t, srv, 0)
}

func TestLobbyWSRejectsForeignSubprotocol(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := startServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
		Subprotocols: []string{"graphql-ws"},
	})
	require.NoError(t, err)
	defer c.CloseNow()

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
	assert.Equal(t, 0, srv.Hub.Registry.Len())
}

func TestCreateLobbyAnnouncesToSockets(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := startServer(t, srv)

	a := dialWS(t, ts, nil)
	b := dialWS(t, ts, nil)
	waitConnections(t, srv, 2)

	resp, err := http.Post(ts.URL+"/lobbies", "application/json",
		strings.NewReader(`{"host":"Ace","game":"Valorant","map":"Bind","mode":"Unrated"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, ws := range []*wsClient{a, b} {
		l := ws.expect(lobby.EventLobbyCreated).lobby(t)
		assert.Equal(t, "Ace", l.Host)
		assert.Equal(t, "Bind", l.Map)
	}
}
