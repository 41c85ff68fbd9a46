// Package store persists anonymized, encrypted conversation data in Postgres.
// Rows only ever hold anonymized identifiers and ciphertext payloads.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/globalmind/support-platform/internal/fault"
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists support platform state in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// UserRecord is one anonymized user row.
type UserRecord struct {
	AnonID            string
	Language          string
	CulturalRegion    string
	PreferredApproach string
	CreatedAt         time.Time
	LastSeenAt        time.Time
}

// UpsertUser creates or refreshes a user row keyed by anonymized ID.
func (s *Store) UpsertUser(ctx context.Context, q Querier, rec UserRecord) error {
	if q == nil {
		q = s.pool
	}
	query := `
		INSERT INTO users (anon_id, language, cultural_region, preferred_approach)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (anon_id)
		DO UPDATE SET language = EXCLUDED.language,
			cultural_region = EXCLUDED.cultural_region,
			preferred_approach = COALESCE(EXCLUDED.preferred_approach, users.preferred_approach),
			last_seen_at = now()
	`
	_, err := q.Exec(ctx, query, rec.AnonID, rec.Language, rec.CulturalRegion, rec.PreferredApproach)
	if err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: upsert user", err)
	}
	return nil
}

// SessionRecord is one support session row.
type SessionRecord struct {
	ID        uuid.UUID
	AnonID    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// EnsureSession inserts the session if it does not exist yet.
func (s *Store) EnsureSession(ctx context.Context, q Querier, rec SessionRecord) error {
	if q == nil {
		q = s.pool
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO sessions (id, anon_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := q.Exec(ctx, query, rec.ID, rec.AnonID); err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: ensure session", err)
	}
	return nil
}

// EndSession marks a session finished.
func (s *Store) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	query := `UPDATE sessions SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: end session", err)
	}
	return nil
}

// ConversationRecord is one append-only conversation row. Message and
// response are ciphertext blobs.
type ConversationRecord struct {
	ID                uuid.UUID
	SessionID         uuid.UUID
	AnonID            string
	MessageEncrypted  string
	ResponseEncrypted string
	CrisisScore       float64
	CrisisDetected    bool
	Urgency           string
	Language          string
	CulturalRegion    string
	Approach          string
	CreatedAt         time.Time
}

// AppendConversation inserts one conversation row. Rows are never updated.
func (s *Store) AppendConversation(ctx context.Context, q Querier, rec ConversationRecord) error {
	if q == nil {
		q = s.pool
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO conversations (
			id, session_id, anon_id, message_encrypted, response_encrypted,
			crisis_score, crisis_detected, urgency, language, cultural_region, approach
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := q.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.AnonID, rec.MessageEncrypted, rec.ResponseEncrypted,
		rec.CrisisScore, rec.CrisisDetected, rec.Urgency, rec.Language, rec.CulturalRegion, rec.Approach,
	)
	if err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: append conversation", err)
	}
	return nil
}

// ConversationsByUser returns a user's conversations inside [from, to),
// newest first, capped at limit.
func (s *Store) ConversationsByUser(ctx context.Context, anonID string, from, to time.Time, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, session_id, anon_id, message_encrypted, response_encrypted,
			crisis_score, crisis_detected, urgency, language, cultural_region, approach, created_at
		FROM conversations
		WHERE anon_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`
	rows, err := s.pool.Query(ctx, query, anonID, from, to, limit)
	if err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: conversations by user", err)
	}
	defer rows.Close()

	var out []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.AnonID, &rec.MessageEncrypted, &rec.ResponseEncrypted,
			&rec.CrisisScore, &rec.CrisisDetected, &rec.Urgency, &rec.Language, &rec.CulturalRegion,
			&rec.Approach, &rec.CreatedAt,
		); err != nil {
			return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: scan conversation", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: conversations by user", err)
	}
	return out, nil
}

// ConversationsSince returns conversations created at or after since, oldest
// first, capped at limit. Used by backup snapshots.
func (s *Store) ConversationsSince(ctx context.Context, since time.Time, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := `
		SELECT id, session_id, anon_id, message_encrypted, response_encrypted,
			crisis_score, crisis_detected, urgency, language, cultural_region, approach, created_at
		FROM conversations
		WHERE created_at >= $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: conversations since", err)
	}
	defer rows.Close()

	var out []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.AnonID, &rec.MessageEncrypted, &rec.ResponseEncrypted,
			&rec.CrisisScore, &rec.CrisisDetected, &rec.Urgency, &rec.Language, &rec.CulturalRegion,
			&rec.Approach, &rec.CreatedAt,
		); err != nil {
			return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: scan conversation", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: conversations since", err)
	}
	return out, nil
}

// ProgressRecord is one mood tracking entry. Note is a ciphertext blob.
type ProgressRecord struct {
	ID            uuid.UUID
	AnonID        string
	MoodScore     *float64
	NoteEncrypted string
	RecordedAt    time.Time
}

func (s *Store) RecordProgress(ctx context.Context, rec ProgressRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO progress (id, anon_id, mood_score, note_encrypted)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`
	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.AnonID, rec.MoodScore, rec.NoteEncrypted); err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: record progress", err)
	}
	return nil
}

// ProgressSummary aggregates a user's tracked progress.
type ProgressSummary struct {
	AnonID        string     `json:"anon_id"`
	Entries       int        `json:"entries"`
	Conversations int        `json:"conversations"`
	CrisisEvents  int        `json:"crisis_events"`
	AvgMood       *float64   `json:"avg_mood,omitempty"`
	FirstSeen     *time.Time `json:"first_seen,omitempty"`
	LastSeen      *time.Time `json:"last_seen,omitempty"`
}

func (s *Store) ProgressForUser(ctx context.Context, anonID string) (*ProgressSummary, error) {
	query := `
		SELECT
			(SELECT count(*) FROM progress WHERE anon_id = $1),
			(SELECT count(*) FROM conversations WHERE anon_id = $1),
			(SELECT count(*) FROM conversations WHERE anon_id = $1 AND crisis_detected),
			(SELECT avg(mood_score) FROM progress WHERE anon_id = $1),
			(SELECT min(created_at) FROM conversations WHERE anon_id = $1),
			(SELECT max(created_at) FROM conversations WHERE anon_id = $1)
	`
	sum := &ProgressSummary{AnonID: anonID}
	err := s.pool.QueryRow(ctx, query, anonID).Scan(
		&sum.Entries, &sum.Conversations, &sum.CrisisEvents, &sum.AvgMood, &sum.FirstSeen, &sum.LastSeen,
	)
	if err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: progress for user", err)
	}
	return sum, nil
}

// FeedbackRecord is one rating for a conversation.
type FeedbackRecord struct {
	ID               uuid.UUID
	AnonID           string
	ConversationID   *uuid.UUID
	Rating           int
	CommentEncrypted string
}

func (s *Store) RecordFeedback(ctx context.Context, rec FeedbackRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Rating < 1 || rec.Rating > 5 {
		return fault.New(fault.KindDatabase, fault.CodeDatabaseQuery,
			fmt.Sprintf("store: rating %d out of range [1,5]", rec.Rating))
	}
	query := `
		INSERT INTO feedback (id, anon_id, conversation_id, rating, comment_encrypted)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
	`
	if _, err := s.pool.Exec(ctx, query, rec.ID, rec.AnonID, rec.ConversationID, rec.Rating, rec.CommentEncrypted); err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: record feedback", err)
	}
	return nil
}

// EraseResult reports how many rows an erasure removed per table, plus the
// erased session IDs so callers can drop cached session state too.
type EraseResult struct {
	Conversations int64       `json:"conversations"`
	Progress      int64       `json:"progress"`
	Feedback      int64       `json:"feedback"`
	Sessions      int64       `json:"sessions"`
	Users         int64       `json:"users"`
	SessionIDs    []uuid.UUID `json:"-"`
}

// EraseUser removes every row for one anonymized ID in a single transaction.
// Child tables go first so the transaction never trips the FK constraints.
func (s *Store) EraseUser(ctx context.Context, anonID string) (*EraseResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseUnavailable, "store: begin erase", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res := &EraseResult{}
	rows, err := tx.Query(ctx, `SELECT id FROM sessions WHERE anon_id = $1`, anonID)
	if err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: list sessions for erase", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: scan session id", err)
		}
		res.SessionIDs = append(res.SessionIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: list sessions for erase", err)
	}
	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM feedback WHERE anon_id = $1`, &res.Feedback},
		{`DELETE FROM progress WHERE anon_id = $1`, &res.Progress},
		{`DELETE FROM conversations WHERE anon_id = $1`, &res.Conversations},
		{`DELETE FROM sessions WHERE anon_id = $1`, &res.Sessions},
		{`DELETE FROM users WHERE anon_id = $1`, &res.Users},
	}
	for _, step := range steps {
		tag, err := tx.Exec(ctx, step.query, anonID)
		if err != nil {
			return nil, fault.Wrap(fault.KindPrivacy, fault.CodeErasure, "store: erase user", err)
		}
		*step.count = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: commit erase", err)
	}
	return res, nil
}

// PurgeResult reports how many rows a retention purge removed per table.
type PurgeResult struct {
	Conversations int64 `json:"conversations"`
	Progress      int64 `json:"progress"`
	Feedback      int64 `json:"feedback"`
	Sessions      int64 `json:"sessions"`
	AuditEvents   int64 `json:"audit_events"`
}

// PurgeExpired deletes rows older than the cutoff, all tables in one
// transaction so a partial purge never commits.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (*PurgeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseUnavailable, "store: begin purge", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	res := &PurgeResult{}
	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM feedback WHERE created_at < $1`, &res.Feedback},
		{`DELETE FROM progress WHERE recorded_at < $1`, &res.Progress},
		{`DELETE FROM conversations WHERE created_at < $1`, &res.Conversations},
		{`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < $1`, &res.Sessions},
		{`DELETE FROM privacy_audit_events WHERE created_at < $1`, &res.AuditEvents},
	}
	for _, step := range steps {
		tag, err := tx.Exec(ctx, step.query, cutoff)
		if err != nil {
			return nil, fault.Wrap(fault.KindPrivacy, fault.CodeRetentionPurge, "store: purge expired", err)
		}
		*step.count = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fault.Wrap(fault.KindDatabase, fault.CodeDatabaseQuery, "store: commit purge", err)
	}
	return res, nil
}

// Health verifies database connectivity.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fault.Wrap(fault.KindDatabase, fault.CodeDatabaseUnavailable, "store: health", err)
	}
	return nil
}

// ErrNoRows reports whether the error is the pgx no-rows sentinel under any
// amount of wrapping.
func ErrNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
