package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "playback:session:"
	redisUserPrefix    = "playback:user:"
)

// RedisStore persists sessions in Redis so relay instances can validate sid
// tokens issued by any replica. Keys expire with the session TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Put(ctx context.Context, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisSessionPrefix+s.ID, payload, r.ttl)
	pipe.Set(ctx, redisUserPrefix+s.UserID, s.ID, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Session, bool, error) {
	payload, err := r.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return s, true, nil
}

func (r *RedisStore) FindByUser(ctx context.Context, userID string) (Session, bool, error) {
	id, err := r.client.Get(ctx, redisUserPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load user session index: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, ok, err := r.Get(ctx, id)
	if err != nil || !ok {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisSessionPrefix+id)
	pipe.Del(ctx, redisUserPrefix+s.UserID)
	_, err = pipe.Exec(ctx)
	return err
}
