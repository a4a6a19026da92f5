package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// unlockScript deletes the lock key only when it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps sessions as JSON strings with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore builds a Redis-backed store. ttl <= 0 uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("sessions: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("rehab.internal.sessions"),
	}
}

func (s *RedisStore) Load(ctx context.Context, id string) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "sessions.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrSessionNotFound
		}
		span.RecordError(err)
		return Record{}, fmt.Errorf("sessions: load %s: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		span.RecordError(err)
		return Record{}, fmt.Errorf("sessions: decode %s: %w", id, err)
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	ctx, span := s.tracer.Start(ctx, "sessions.save")
	defer span.End()

	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: encode %s: %w", rec.ID, err)
	}
	if err := s.redis.Set(ctx, sessionKey(rec.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessions: save %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, sessionKey(id), lockKey(id)).Result()
	if err != nil {
		return fmt.Errorf("sessions: delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) Lock(ctx context.Context, id string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, lockKey(id), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("sessions: lock %s: %w", id, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (s *RedisStore) Unlock(ctx context.Context, id, token string) error {
	if err := unlockScript.Run(ctx, s.redis, []string{lockKey(id)}, token).Err(); err != nil {
		return fmt.Errorf("sessions: unlock %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Locked(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Exists(ctx, lockKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("sessions: lock status %s: %w", id, err)
	}
	return n > 0, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("booking_session:%s", id)
}

func lockKey(id string) string {
	return fmt.Sprintf("booking_session_lock:%s", id)
}
