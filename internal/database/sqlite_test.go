package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreContract(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	runLobbyStoreContract(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "squadup.db")
	id := uuid.NewString()

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &models.Lobby{
		ID: id, Host: "Ana", Game: "BGMI", Map: "Erangel", Mode: "Classic",
		Members: []models.Member{{UserID: "u1", Name: "Ana"}},
	}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Erangel", got.Map)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "u1", got.Members[0].UserID)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ")
	assert.Error(t, err)
}
