package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/squadup/internal/auth"
	"github.com/jason-s-yu/squadup/internal/lobby"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/moderation"
	"github.com/jason-s-yu/squadup/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// newTestServer builds a Server over an in-memory store.
func newTestServer(t *testing.T) (*Server, *store.MemoryStore, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	st := store.NewMemoryStore()
	sessions, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)

	hub := lobby.NewHub(st, logger, lobby.Options{JoinTimeout: time.Second})
	srv := NewServer(hub, st, moderation.NewLexicalScorer(), sessions, logger, "http://localhost:3000", time.Second)
	return srv, st, hook
}

// startServer runs srv behind a real listener.
func startServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func seedLobby(t *testing.T, st store.LobbyStore, id string, created time.Time) *models.Lobby {
	t.Helper()
	l := &models.Lobby{
		ID:        id,
		Host:      "host-" + id,
		Game:      "Valorant",
		Map:       "Ascent",
		Mode:      "Competitive",
		Gender:    "Any",
		Status:    models.StatusOpen,
		CreatedAt: created,
		Members:   []models.Member{},
	}
	require.NoError(t, st.Save(context.Background(), l))
	return l
}

// frame is a server envelope as seen by a client.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f frame) lobby(t *testing.T) models.Lobby {
	t.Helper()
	var l models.Lobby
	require.NoError(t, json.Unmarshal(f.Payload, &l))
	return l
}

func (f frame) chat(t *testing.T) models.ChatMessage {
	t.Helper()
	var m models.ChatMessage
	require.NoError(t, json.Unmarshal(f.Payload, &m))
	return m
}

func (f frame) errorMessage(t *testing.T) string {
	t.Helper()
	var p struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &p))
	return p.Message
}

// wsClient is a test socket whose frames are read in the background so the
// test can wait for a frame or assert that none arrives.
type wsClient struct {
	t      *testing.T
	c      *websocket.Conn
	frames chan frame
	done   chan error
}

func dialWS(t *testing.T, ts *httptest.Server, header http.Header) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   header,
	})
	require.NoError(t, err)

	w := &wsClient{t: t, c: c, frames: make(chan frame, 64), done: make(chan error, 1)}
	go func() {
		for {
			var f frame
			if err := wsjson.Read(context.Background(), c, &f); err != nil {
				w.done <- err
				close(w.frames)
				return
			}
			w.frames <- f
		}
	}()
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return w
}

func (w *wsClient) send(typ string, payload any) {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(w.t, wsjson.Write(ctx, w.c, map[string]any{"type": typ, "payload": payload}))
}

func (w *wsClient) sendRaw(data string) {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(w.t, w.c.Write(ctx, websocket.MessageText, []byte(data)))
}

// next waits for the next frame.
func (w *wsClient) next() frame {
	w.t.Helper()
	select {
	case f, ok := <-w.frames:
		if !ok {
			w.t.Fatalf("socket closed: %v", <-w.done)
		}
		return f
	case <-time.After(waitFor):
		w.t.Fatal("timed out waiting for a frame")
		return frame{}
	}
}

// expect waits for the next frame and checks its type.
func (w *wsClient) expect(typ string) frame {
	w.t.Helper()
	f := w.next()
	require.Equal(w.t, typ, f.Type, "payload: %s", f.Payload)
	return f
}

// quiet asserts no frame arrives within d.
func (w *wsClient) quiet(d time.Duration) {
	w.t.Helper()
	select {
	case f, ok := <-w.frames:
		if ok {
			w.t.Fatalf("unexpected %s frame: %s", f.Type, f.Payload)
		}
	case <-time.After(d):
	}
}

// closeErr waits for the reader to stop and returns why.
func (w *wsClient) closeErr() error {
	w.t.Helper()
	select {
	case err := <-w.done:
		return err
	case <-time.After(waitFor):
		w.t.Fatal("timed out waiting for the socket to close")
		return nil
	}
}

func joinPayload(lobbyID, userID, name string) map[string]any {
	return map[string]any{
		"lobbyId": lobbyID,
		"user":    map[string]string{"userId": userID, "name": name},
	}
}

// waitConnections blocks until the hub has n live connections.
func waitConnections(t *testing.T, srv *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.Hub.Registry.Len() == n }, waitFor, 5*time.Millisecond)
}

// failingStore fails every call.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Find(context.Context) ([]*models.Lobby, error) { return nil, errStoreDown }

func (failingStore) FindByID(context.Context, string) (*models.Lobby, error) {
	return nil, errStoreDown
}

func (failingStore) Save(context.Context, *models.Lobby) error { return errStoreDown }
