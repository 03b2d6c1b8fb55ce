// internal/database/lobby.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
)

// PostgresStore persists lobbies in the lobbies and lobby_members tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ store.LobbyStore = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl, err := schema("postgres.sql")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres.sql: %w", err)
	}
	return nil
}

const selectLobby = `
	SELECT
		id::text, host, game, map, mode, rank_tier,
		gender, mic, status, discord_link, created_at
	FROM lobbies
`

// Find returns every lobby with its members, newest first.
func (s *PostgresStore) Find(ctx context.Context) ([]*models.Lobby, error) {
	rows, err := s.pool.Query(ctx, selectLobby+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lobbies []*models.Lobby
	byID := make(map[string]*models.Lobby)
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		lobbies = append(lobbies, l)
		byID[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lobbies) == 0 {
		return lobbies, nil
	}

	mrows, err := s.pool.Query(ctx, `
		SELECT lobby_id::text, user_id, name, joined_at
		FROM lobby_members
		ORDER BY lobby_id, seq
	`)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var lobbyID string
		var m models.Member
		if err := mrows.Scan(&lobbyID, &m.UserID, &m.Name, &m.JoinedAt); err != nil {
			return nil, err
		}
		if l, ok := byID[lobbyID]; ok {
			l.Members = append(l.Members, m)
		}
	}
	return lobbies, mrows.Err()
}

// FindByID fetches a lobby and its members, or store.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Lobby, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}

	l, err := scanLobby(s.pool.QueryRow(ctx, selectLobby+` WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, name, joined_at
		FROM lobby_members
		WHERE lobby_id = $1::uuid
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Member, error) {
		var m models.Member
		err := row.Scan(&m.UserID, &m.Name, &m.JoinedAt)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	l.Members = members
	return l, nil
}

// Save upserts the lobby row and inserts members that are not stored yet.
// Stored members are never deleted or renamed.
func (s *PostgresStore) Save(ctx context.Context, lobby *models.Lobby) error {
	if _, err := uuid.Parse(lobby.ID); err != nil {
		return fmt.Errorf("invalid lobby id %q: %w", lobby.ID, err)
	}
	createdAt := lobby.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO lobbies (
				id, host, game, map, mode, rank_tier,
				gender, mic, status, discord_link, created_at
			)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				host = EXCLUDED.host,
				game = EXCLUDED.game,
				map = EXCLUDED.map,
				mode = EXCLUDED.mode,
				rank_tier = EXCLUDED.rank_tier,
				gender = EXCLUDED.gender,
				mic = EXCLUDED.mic,
				status = EXCLUDED.status,
				discord_link = EXCLUDED.discord_link
		`,
			lobby.ID, lobby.Host, lobby.Game, lobby.Map, lobby.Mode, lobby.Rank,
			lobby.Gender, lobby.Mic, lobby.Status, lobby.DiscordLink, createdAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, m := range lobby.Members {
			batch.Queue(`
				INSERT INTO lobby_members (lobby_id, user_id, name, joined_at)
				VALUES ($1::uuid, $2, $3, $4)
				ON CONFLICT (lobby_id, user_id) DO NOTHING
			`, lobby.ID, m.UserID, m.Name, m.JoinedAt)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func scanLobby(row pgx.Row) (*models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(
		&l.ID,
		&l.Host,
		&l.Game,
		&l.Map,
		&l.Mode,
		&l.Rank,
		&l.Gender,
		&l.Mic,
		&l.Status,
		&l.DiscordLink,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Members = []models.Member{}
	return &l, nil
}
