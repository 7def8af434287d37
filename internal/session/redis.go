package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"citabot/internal/models"
)

// RedisStore keeps sessions in Redis with a server-side TTL, so expiry
// holds even across process restarts.
type RedisStore struct {
	client *redis.Client
	logger *zerolog.Logger
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, logger *zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger, now: time.Now}
}

func (r *RedisStore) Put(ctx context.Context, s *models.ConversationSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := models.SessionKey(s.CustomerID, s.FacilityID)
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (*models.ConversationSession, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", key, err)
	}

	var s models.ConversationSession
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt record is unrecoverable; drop it rather than loop on it.
		r.logger.Error().Err(err).Str("key", key).Msg("corrupt session record, deleting")
		_ = r.client.Del(ctx, key).Err()
		return nil, models.ErrSessionNotFound
	}

	// Redis TTL already bounds lifetime; ExpiresAt is re-checked so a
	// session is never served past its logical deadline.
	if s.Expired(r.now()) {
		_ = r.client.Del(ctx, key).Err()
		return nil, models.ErrSessionExpired
	}
	upgrade(&s, r.logger)
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}
