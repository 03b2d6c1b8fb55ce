// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/jason-s-yu/squadup/internal/models"
)

// ErrNotFound is returned by FindByID when no lobby has the given id.
var ErrNotFound = errors.New("lobby not found")

// LobbyStore is the durable home of lobby documents. Save is an upsert: it
// writes the lobby fields and appends any members not yet persisted.
type LobbyStore interface {
	// Find returns every lobby, newest first.
	Find(ctx context.Context) ([]*models.Lobby, error)
	FindByID(ctx context.Context, id string) (*models.Lobby, error)
	Save(ctx context.Context, lobby *models.Lobby) error
}
