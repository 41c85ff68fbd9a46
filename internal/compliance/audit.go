// Package compliance records privacy-relevant events in an append-only audit
// trail. Events carry metadata only; message content never enters the log.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEventType represents the type of privacy event.
type AuditEventType string

const (
	// EventKeyRotated is logged when the encryption key rotates.
	EventKeyRotated AuditEventType = "privacy.key_rotated"
	// EventKeysPruned is logged when retired keys are destroyed.
	EventKeysPruned AuditEventType = "privacy.keys_pruned"
	// EventDataErased is logged when a user's data is erased on request.
	EventDataErased AuditEventType = "privacy.data_erased"
	// EventRetentionPurge is logged when the retention purge removes expired rows.
	EventRetentionPurge AuditEventType = "privacy.retention_purge"
	// EventCrisisDetected is logged when a request crosses the crisis threshold.
	EventCrisisDetected AuditEventType = "safety.crisis_detected"
	// EventBackupWritten is logged when a backup snapshot lands in S3.
	EventBackupWritten AuditEventType = "ops.backup_written"
)

// AuditEvent is one immutable audit record.
type AuditEvent struct {
	ID        int64           `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	AnonID    string          `json:"anon_id,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditFilter narrows QueryEvents.
type AuditFilter struct {
	EventType AuditEventType
	AnonID    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// AuditService handles privacy audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records one audit event.
func (s *AuditService) LogEvent(ctx context.Context, eventType AuditEventType, anonID string, detail any) error {
	detailJSON := json.RawMessage(`{}`)
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("compliance: marshal audit detail: %w", err)
		}
		detailJSON = data
	}

	query := `
		INSERT INTO privacy_audit_events (event_type, anon_id, detail, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, string(eventType), anonID, detailJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("compliance: log audit event: %w", err)
	}
	return nil
}

// LogKeyRotated records a key rotation with the new key's ID.
func (s *AuditService) LogKeyRotated(ctx context.Context, keyID string) error {
	return s.LogEvent(ctx, EventKeyRotated, "", map[string]string{"key_id": keyID})
}

// LogDataErased records an erasure with per-table row counts.
func (s *AuditService) LogDataErased(ctx context.Context, anonID string, counts any) error {
	return s.LogEvent(ctx, EventDataErased, anonID, counts)
}

// LogRetentionPurge records a purge run with per-table row counts.
func (s *AuditService) LogRetentionPurge(ctx context.Context, counts any) error {
	return s.LogEvent(ctx, EventRetentionPurge, "", counts)
}

// LogCrisisDetected records that a request crossed the crisis threshold.
// Score and urgency only; the message itself is never logged.
func (s *AuditService) LogCrisisDetected(ctx context.Context, anonID string, score float64, urgency string) error {
	return s.LogEvent(ctx, EventCrisisDetected, anonID, map[string]any{
		"score":   score,
		"urgency": urgency,
	})
}

// QueryEvents retrieves audit events with filters, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, anon_id, detail, created_at
		FROM privacy_audit_events
		WHERE 1=1
	`
	var args []any
	argIdx := 1

	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if filter.AnonID != "" {
		query += fmt.Sprintf(" AND anon_id = $%d", argIdx)
		args = append(args, filter.AnonID)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
		argIdx++
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var anonID sql.NullString
		if err := rows.Scan(&e.ID, &e.EventType, &anonID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: scan audit event: %w", err)
		}
		e.AnonID = anonID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: query audit events: %w", err)
	}
	return events, nil
}
