package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Archiver keeps an offline copy of committed chunks, keyed by session. It is
// write-behind and best-effort: archive failures are logged, never surfaced
// to uploads or queries.
type Archiver interface {
	SaveChunk(ctx context.Context, sessionID string, rec ChunkRecord) error
	DropSession(ctx context.Context, sessionID string) error
}

// NopArchiver discards everything. Used when the archive is disabled.
type NopArchiver struct{}

func (NopArchiver) SaveChunk(context.Context, string, ChunkRecord) error { return nil }
func (NopArchiver) DropSession(context.Context, string) error            { return nil }

// RedisArchiver stores chunks in a per-session hash with a TTL matching the
// session TTL, so redis forgets a session at roughly the same time the
// sweeper does.
type RedisArchiver struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisArchiver(addr, password string, db int, ttl time.Duration) (*RedisArchiver, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisArchiver{client: client, ttl: ttl}, nil
}

func archiveKey(sessionID string) string {
	return "docchat:session:" + sessionID + ":chunks"
}

func (a *RedisArchiver) SaveChunk(ctx context.Context, sessionID string, rec ChunkRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := archiveKey(sessionID)
	if err := a.client.HSet(ctx, key, rec.ID, payload).Err(); err != nil {
		return err
	}
	if a.ttl > 0 {
		return a.client.Expire(ctx, key, a.ttl).Err()
	}
	return nil
}

func (a *RedisArchiver) DropSession(ctx context.Context, sessionID string) error {
	return a.client.Del(ctx, archiveKey(sessionID)).Err()
}
