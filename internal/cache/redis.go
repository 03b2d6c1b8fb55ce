// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/squadup/internal/models"
	"github.com/jason-s-yu/squadup/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultKeyPrefix namespaces lobby documents in Redis.
const DefaultKeyPrefix = "squadup:lobby:"

// Connect creates a client for addr/db and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// LobbyCache is a read-through, write-through cache of lobby documents in
// front of another store. Redis failures fall back to the inner store; the
// inner store stays the source of truth.
type LobbyCache struct {
	inner  store.LobbyStore
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    logrus.FieldLogger
	loads  singleflight.Group
}

var _ store.LobbyStore = (*LobbyCache)(nil)

// NewLobbyCache wraps inner. ttl <= 0 keeps entries until overwritten.
func NewLobbyCache(inner store.LobbyStore, rdb redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger) *LobbyCache {
	return &LobbyCache{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		prefix: DefaultKeyPrefix,
		log:    logger,
	}
}

func (c *LobbyCache) key(id string) string {
	return c.prefix + id
}

// Find always reads the inner store; listings are not cached.
func (c *LobbyCache) Find(ctx context.Context) ([]*models.Lobby, error) {
	return c.inner.Find(ctx)
}

// FindByID serves from Redis when possible. Concurrent misses for the same id
// share one inner load.
func (c *LobbyCache) FindByID(ctx context.Context, id string) (*models.Lobby, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var l models.Lobby
		if jsonErr := json.Unmarshal(raw, &l); jsonErr == nil {
			return &l, nil
		}
		c.log.Warnf("cache: corrupt entry for lobby %s, reloading", id)
	case !errors.Is(err, redis.Nil):
		c.log.Warnf("cache: get lobby %s: %v", id, err)
	}

	v, err, _ := c.loads.Do(id, func() (interface{}, error) {
		l, err := c.inner.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		// SetNX so a load that raced a Save never overwrites the newer value
		c.store(ctx, l, false)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Lobby).Clone(), nil
}

// Save writes through to the inner store, then refreshes the cached copy with
// lobby, which must be the complete record.
func (c *LobbyCache) Save(ctx context.Context, lobby *models.Lobby) error {
	if err := c.inner.Save(ctx, lobby); err != nil {
		return err
	}
	c.store(ctx, lobby, true)
	return nil
}

func (c *LobbyCache) store(ctx context.Context, l *models.Lobby, overwrite bool) {
	data, err := json.Marshal(l)
	if err != nil {
		c.log.Warnf("cache: marshal lobby %s: %v", l.ID, err)
		return
	}
	if overwrite {
		err = c.rdb.Set(ctx, c.key(l.ID), data, c.ttl).Err()
	} else {
		err = c.rdb.SetNX(ctx, c.key(l.ID), data, c.ttl).Err()
	}
	if err == nil {
		return
	}
	c.log.Warnf("cache: write lobby %s: %v", l.ID, err)
	if overwrite {
		// a stale entry must not outlive a failed refresh
		_ = c.rdb.Del(ctx, c.key(l.ID)).Err()
	}
}
