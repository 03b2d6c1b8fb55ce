package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// received is an outbound frame decoded for assertions.
type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (r received) lobby(t *testing.T) models.Lobby {
	t.Helper()
	var l models.Lobby
	require.NoError(t, json.Unmarshal(r.Payload, &l))
	return l
}

func (r received) chat(t *testing.T) models.ChatMessage {
	t.Helper()
	var m models.ChatMessage
	require.NoError(t, json.Unmarshal(r.Payload, &m))
	return m
}

// drain returns every frame currently queued on c without blocking.
func drain(t *testing.T, c *Connection) []received {
	t.Helper()
	var out []received
	for {
		select {
		case frame, ok := <-c.Out():
			if !ok {
				return out
			}
			var r received
			require.NoError(t, json.Unmarshal(frame, &r))
			out = append(out, r)
		default:
			return out
		}
	}
}

func types(rs []received) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Type)
	}
	return out
}

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func seedLobby(t *testing.T, s store.LobbyStore, id string, members ...models.Member) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), &models.Lobby{
		ID:        id,
		Host:      "host",
		Game:      "Valorant",
		Map:       "Ascent",
		Mode:      "Competitive",
		Gender:    "Any",
		Status:    models.StatusOpen,
		CreatedAt: time.Now(),
		Members:   members,
	}))
}

func user(id, name string) models.UserRef {
	return models.UserRef{UserID: id, Name: name}
}

// gatedStore blocks FindByID until gate is closed, announcing each call on
// entered. When only is set, other ids pass straight through.
type gatedStore struct {
	store.LobbyStore
	only    string
	gate    chan struct{}
	entered chan struct{}
}

func newGatedStore(inner store.LobbyStore) *gatedStore {
	return &gatedStore{
		LobbyStore: inner,
		gate:       make(chan struct{}),
		entered:    make(chan struct{}, 16),
	}
}

func (g *gatedStore) FindByID(ctx context.Context, id string) (*models.Lobby, error) {
	if g.only != "" && id != g.only {
		return g.LobbyStore.FindByID(ctx, id)
	}
	g.entered <- struct{}{}
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.LobbyStore.FindByID(ctx, id)
}

// failingStore fails every Save.
type failingStore struct {
	store.LobbyStore
}

var errDiskOnFire = errors.New("disk on fire")

func (failingStore) Save(context.Context, *models.Lobby) error {
	return errDiskOnFire
}
