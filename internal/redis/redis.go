package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ETagTTL bounds how long a cached player ETag survives without an
// explicit invalidation.
const ETagTTL = 24 * time.Hour

func InitRedis(redisAddress string, redisUsername string, redisPassword string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})
}

// EtagKey is the hash holding every rendered variant's ETag for a playlist.
func EtagKey(playlistID string) string {
	return fmt.Sprintf("playlist:%s:etag", playlistID)
}

// ETagCache stores player ETags per playlist and variant. A nil client
// turns every call into a miss or no-op, so the server runs without Redis.
type ETagCache struct {
	rdb *redis.Client
}

func NewETagCache(rdb *redis.Client) *ETagCache {
	return &ETagCache{rdb: rdb}
}

func (c *ETagCache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Get returns the cached ETag for the playlist's variant.
func (c *ETagCache) Get(ctx context.Context, playlistID, variant string) (string, bool) {
	if !c.enabled() {
		return "", false
	}
	etag, err := c.rdb.HGet(ctx, EtagKey(playlistID), variant).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("playlist_id", playlistID).Msg("[redis] etag lookup failed")
		}
		return "", false
	}
	return etag, true
}

func (c *ETagCache) Set(ctx context.Context, playlistID, variant, etag string) {
	if !c.enabled() {
		return
	}
	key := EtagKey(playlistID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, variant, etag)
	pipe.Expire(ctx, key, ETagTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("etag_key", key).Msg("[redis] failed to cache etag")
	}
}

// Invalidate drops every cached variant of the given playlists.
func (c *ETagCache) Invalidate(ctx context.Context, playlistIDs ...string) {
	if !c.enabled() || len(playlistIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(playlistIDs))
	for _, id := range playlistIDs {
		keys = append(keys, EtagKey(id))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("etag_keys", keys).Msg("failed to invalidate playlist ETag cache")
		return
	}
	log.Debug().Strs("etag_keys", keys).Msg("invalidated playlist ETag cache")
}

func (c *ETagCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
