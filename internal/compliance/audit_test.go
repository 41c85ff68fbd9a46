package compliance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuditService(t *testing.T) (*AuditService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuditService(db), mock
}

func TestLogKeyRotated(t *testing.T) {
	s, mock := newAuditService(t)

	mock.ExpectExec("INSERT INTO privacy_audit_events").
		WithArgs(string(EventKeyRotated), "", []byte(`{"key_id":"key-42"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.LogKeyRotated(context.Background(), "key-42"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogCrisisDetectedOmitsContent(t *testing.T) {
	s, mock := newAuditService(t)

	mock.ExpectExec("INSERT INTO privacy_audit_events").
		WithArgs(string(EventCrisisDetected), "anon_abc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.LogCrisisDetected(context.Background(), "anon_abc", 0.84, "immediate"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogDataErased(t *testing.T) {
	s, mock := newAuditService(t)

	mock.ExpectExec("INSERT INTO privacy_audit_events").
		WithArgs(string(EventDataErased), "anon_abc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	counts := map[string]int64{"conversations": 7, "users": 1}
	require.NoError(t, s.LogDataErased(context.Background(), "anon_abc", counts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryEvents(t *testing.T) {
	s, mock := newAuditService(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "event_type", "anon_id", "detail", "created_at"}).
		AddRow(int64(1), string(EventKeyRotated), nil, []byte(`{"key_id":"key-42"}`), now).
		AddRow(int64(2), string(EventCrisisDetected), "anon_abc", []byte(`{"score":0.84}`), now)

	mock.ExpectQuery("SELECT id, event_type, anon_id, detail, created_at").
		WillReturnRows(rows)

	events, err := s.QueryEvents(context.Background(), AuditFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventKeyRotated, events[0].EventType)
	assert.Empty(t, events[0].AnonID)
	assert.Equal(t, "anon_abc", events[1].AnonID)

	var detail map[string]float64
	require.NoError(t, json.Unmarshal(events[1].Detail, &detail))
	assert.Equal(t, 0.84, detail["score"])
}

func TestQueryEventsWithFilters(t *testing.T) {
	s, mock := newAuditService(t)

	mock.ExpectQuery("SELECT id, event_type, anon_id, detail, created_at").
		WithArgs(string(EventDataErased), "anon_abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "anon_id", "detail", "created_at"}))

	events, err := s.QueryEvents(context.Background(), AuditFilter{
		EventType: EventDataErased,
		AnonID:    "anon_abc",
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}
