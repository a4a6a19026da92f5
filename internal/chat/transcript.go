package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptKeyPrefix = "chat_transcript:"
	transcriptTTL       = 24 * time.Hour
)

// Message is one line of a chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps chat history per session.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	List(ctx context.Context, sessionID string, limit int64) ([]Message, error)
}

// RedisTranscript stores transcripts as capped Redis lists.
type RedisTranscript struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

// NewRedisTranscript returns nil without a client.
func NewRedisTranscript(client *redis.Client) *RedisTranscript {
	if client == nil {
		return nil
	}
	return &RedisTranscript{
		redis:       client,
		tracer:      otel.Tracer("rehab.internal.chat.transcript"),
		maxMessages: 100,
	}
}

func (s *RedisTranscript) Append(ctx context.Context, sessionID string, msg Message) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if sessionID == "" {
		return errors.New("chat: transcript sessionID required")
	}
	msg = stamp(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: marshal transcript message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "chat.transcript.append")
	defer span.End()

	key := transcriptKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, transcriptTTL)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chat: append transcript message: %w", err)
	}
	return nil
}

func (s *RedisTranscript) List(ctx context.Context, sessionID string, limit int64) ([]Message, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if sessionID == "" {
		return nil, errors.New("chat: transcript sessionID required")
	}

	ctx, span := s.tracer.Start(ctx, "chat.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKey(sessionID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("chat: list transcript: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// MemoryTranscript is a process-local TranscriptStore for development.
type MemoryTranscript struct {
	mu    sync.Mutex
	store map[string][]Message
}

// NewMemoryTranscript keeps transcripts in process.
func NewMemoryTranscript() *MemoryTranscript {
	return &MemoryTranscript{store: make(map[string][]Message)}
}

func (m *MemoryTranscript) Append(_ context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return errors.New("chat: transcript sessionID required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[sessionID] = append(m.store[sessionID], stamp(msg))
	return nil
}

func (m *MemoryTranscript) List(_ context.Context, sessionID string, limit int64) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.store[sessionID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	return append([]Message{}, msgs...), nil
}

func stamp(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}

func transcriptKey(sessionID string) string {
	return transcriptKeyPrefix + sessionID
}
