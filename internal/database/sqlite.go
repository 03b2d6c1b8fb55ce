// internal/database/sqlite.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists lobbies in a local SQLite file. Timestamps are stored
// as UTC unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.LobbyStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY under concurrent joins
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	ddl, err := schema("sqlite.sql")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.sql: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectSQLiteLobby = `
	SELECT id, host, game, map, mode, rank_tier, gender, mic, status, discord_link, created_at
	FROM lobbies
`

// Find returns every lobby with its members, newest first.
func (s *SQLiteStore) Find(ctx context.Context) ([]*models.Lobby, error) {
	rows, err := s.db.QueryContext(ctx, selectSQLiteLobby+` ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	var lobbies []*models.Lobby
	byID := make(map[string]*models.Lobby)
	for rows.Next() {
		l, err := scanSQLiteLobby(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		lobbies = append(lobbies, l)
		byID[l.ID] = l
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := s.db.QueryContext(ctx, `
		SELECT lobby_id, user_id, name, joined_at
		FROM lobby_members
		ORDER BY lobby_id, rowid
	`)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var lobbyID string
		var m models.Member
		var joined int64
		if err := mrows.Scan(&lobbyID, &m.UserID, &m.Name, &joined); err != nil {
			return nil, err
		}
		m.JoinedAt = fromMillis(joined)
		if l, ok := byID[lobbyID]; ok {
			l.Members = append(l.Members, m)
		}
	}
	return lobbies, mrows.Err()
}

// FindByID fetches a lobby and its members, or store.ErrNotFound.
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*models.Lobby, error) {
	l, err := scanSQLiteLobby(s.db.QueryRowContext(ctx, selectSQLiteLobby+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, name, joined_at
		FROM lobby_members
		WHERE lobby_id = ?
		ORDER BY rowid
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.Member
		var joined int64
		if err := rows.Scan(&m.UserID, &m.Name, &joined); err != nil {
			return nil, err
		}
		m.JoinedAt = fromMillis(joined)
		l.Members = append(l.Members, m)
	}
	return l, rows.Err()
}

// Save upserts the lobby row and inserts members that are not stored yet.
func (s *SQLiteStore) Save(ctx context.Context, lobby *models.Lobby) error {
	createdAt := lobby.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lobbies (
			id, host, game, map, mode, rank_tier, gender, mic, status, discord_link, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			host = excluded.host,
			game = excluded.game,
			map = excluded.map,
			mode = excluded.mode,
			rank_tier = excluded.rank_tier,
			gender = excluded.gender,
			mic = excluded.mic,
			status = excluded.status,
			discord_link = excluded.discord_link
	`,
		lobby.ID, lobby.Host, lobby.Game, lobby.Map, lobby.Mode, lobby.Rank,
		lobby.Gender, lobby.Mic, lobby.Status, lobby.DiscordLink, toMillis(createdAt),
	)
	if err != nil {
		return err
	}

	for _, m := range lobby.Members {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO lobby_members (lobby_id, user_id, name, joined_at)
			VALUES (?, ?, ?, ?)
		`, lobby.ID, m.UserID, m.Name, toMillis(m.JoinedAt))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLobby(row rowScanner) (*models.Lobby, error) {
	var l models.Lobby
	var created int64
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
		&created,
	)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = fromMillis(created)
	l.Members = []models.Member{}
	return &l, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
