// Package session keeps short-lived conversation history in Redis. History is
// working memory for response context; the durable record lives encrypted in
// Postgres.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Turn is one exchange in a session. Only theme-level metadata is stored,
// never message content.
type Turn struct {
	Role      string    `json:"role"`
	Theme     string    `json:"theme"`
	Urgency   string    `json:"urgency,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore persists session turns with a TTL so idle sessions expire on
// their own.
type HistoryStore struct {
	redis    *redis.Client
	tracer   trace.Tracer
	ttl      time.Duration
	maxTurns int
}

func NewHistoryStore(rdb *redis.Client, ttl time.Duration, maxTurns int) *HistoryStore {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxTurns <= 0 {
		maxTurns = 50
	}
	return &HistoryStore{
		redis:    rdb,
		tracer:   otel.Tracer("globalmind/session-history"),
		ttl:      ttl,
		maxTurns: maxTurns,
	}
}

// Append adds a turn to the session, trimming to the newest maxTurns and
// refreshing the TTL.
func (s *HistoryStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	ctx, span := s.tracer.Start(ctx, "session.append_turn")
	defer span.End()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: marshal turn: %w", err)
	}

	key := sessionKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist turn: %w", err)
	}
	return nil
}

// Load returns the session's turns, oldest first. An unknown session yields
// an empty history, not an error.
func (s *HistoryStore) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	ctx, span := s.tracer.Start(ctx, "session.load_history")
	defer span.End()

	items, err := s.redis.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: load history: %w", err)
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("session: decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear removes a session's history, used on erasure.
func (s *HistoryStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: clear history: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
