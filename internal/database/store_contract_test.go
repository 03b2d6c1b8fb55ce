package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runLobbyStoreContract exercises the behaviour every LobbyStore must share.
func runLobbyStoreContract(t *testing.T, s store.LobbyStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := &models.Lobby{
		ID: uuid.NewString(), Host: "Ana", Game: "Valorant", Map: "Ascent", Mode: "Competitive",
		Rank: "Gold", Gender: "Any", Status: models.StatusOpen, CreatedAt: base.Add(-time.Hour),
	}
	newer := &models.Lobby{
		ID: uuid.NewString(), Host: "Ben", Game: "Fortnite", Map: "Reload", Mode: "Zero Build",
		Gender: "Any", Mic: true, Status: models.StatusOpen, DiscordLink: "https://discord.gg/x", CreatedAt: base,
	}
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	t.Run("find by id", func(t *testing.T) {
		got, err := s.FindByID(ctx, newer.ID)
		require.NoError(t, err)
		assert.Equal(t, newer.Host, got.Host)
		assert.Equal(t, newer.Mode, got.Mode)
		assert.True(t, got.Mic)
		assert.Equal(t, newer.DiscordLink, got.DiscordLink)
		assert.True(t, newer.CreatedAt.Equal(got.CreatedAt))
		assert.Empty(t, got.Members)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := s.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("members are appended in order and never duplicated", func(t *testing.T) {
		l, err := s.FindByID(ctx, older.ID)
		require.NoError(t, err)
		l.Members = append(l.Members, models.Member{UserID: "u1", Name: "Ana", JoinedAt: base})
		require.NoError(t, s.Save(ctx, l))

		l, err = s.FindByID(ctx, older.ID)
		require.NoError(t, err)
		l.Members = append(l.Members,
			models.Member{UserID: "u2", Name: "Ben", JoinedAt: base.Add(time.Second)},
			models.Member{UserID: "u1", Name: "Ana again", JoinedAt: base.Add(2 * time.Second)},
		)
		require.NoError(t, s.Save(ctx, l))

		got, err := s.FindByID(ctx, older.ID)
		require.NoError(t, err)
		require.Len(t, got.Members, 2)
		assert.Equal(t, "u1", got.Members[0].UserID)
		assert.Equal(t, "Ana", got.Members[0].Name)
		assert.Equal(t, "u2", got.Members[1].UserID)
	})

	t.Run("find lists newest first with members", func(t *testing.T) {
		all, err := s.Find(ctx)
		require.NoError(t, err)
		var ids []string
		var olderGot *models.Lobby
		for _, l := range all {
			if l.ID == older.ID || l.ID == newer.ID {
				ids = append(ids, l.ID)
			}
			if l.ID == older.ID {
				olderGot = l
			}
		}
		assert.Equal(t, []string{newer.ID, older.ID}, ids)
		require.NotNil(t, olderGot)
		assert.Len(t, olderGot.Members, 2)
	})
}
