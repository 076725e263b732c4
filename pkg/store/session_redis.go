package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"feedbackhub/pkg/domain"
)

const sessionKeyPrefix = "feedbackhub:session:"

// RedisSessionStore keeps identity snapshots in Redis; expiry comes
// from the key TTL, so expired sessions simply stop resolving.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore builds a Redis-backed session store.
func NewRedisSessionStore(addr, password string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

// Start writes a token -> identity snapshot mapping with TTL.
func (s *RedisSessionStore) Start(ident domain.Identity) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(ident)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, sessionKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the snapshot bound to the token, if any.
func (s *RedisSessionStore) Resolve(token string) (domain.Identity, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, err
	}
	var ident domain.Identity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return domain.Identity{}, false, fmt.Errorf("decode session: %w", err)
	}
	return ident, true, nil
}

// Destroy removes a token mapping. Unknown tokens are not an error.
func (s *RedisSessionStore) Destroy(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
