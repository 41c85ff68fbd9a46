package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalmind/support-platform/internal/compliance"
	"github.com/globalmind/support-platform/internal/fault"
	"github.com/globalmind/support-platform/internal/privacy"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/pkg/logging"
)

type fakeAdminStore struct {
	erased        []string
	eraseErr      error
	eraseSessions []uuid.UUID
	purgeCutoffs  []time.Time
	purgeErr      error
	convs         []store.ConversationRecord
	convsErr      error
	byUserArgs    []string
}

func (f *fakeAdminStore) EraseUser(_ context.Context, anonID string) (*store.EraseResult, error) {
	if f.eraseErr != nil {
		return nil, f.eraseErr
	}
	f.erased = append(f.erased, anonID)
	return &store.EraseResult{Conversations: 7, Sessions: 2, Users: 1, SessionIDs: f.eraseSessions}, nil
}

func (f *fakeAdminStore) PurgeExpired(_ context.Context, cutoff time.Time) (*store.PurgeResult, error) {
	if f.purgeErr != nil {
		return nil, f.purgeErr
	}
	f.purgeCutoffs = append(f.purgeCutoffs, cutoff)
	return &store.PurgeResult{Conversations: 100, Sessions: 10}, nil
}

func (f *fakeAdminStore) ConversationsSince(_ context.Context, since time.Time, limit int) ([]store.ConversationRecord, error) {
	return f.convs, f.convsErr
}

func (f *fakeAdminStore) ConversationsByUser(_ context.Context, anonID string, from, to time.Time, limit int) ([]store.ConversationRecord, error) {
	f.byUserArgs = append(f.byUserArgs, anonID)
	return f.convs, f.convsErr
}

type fakeAdminAuditor struct {
	erasures  []string
	purges    int
	rotations []string
	events    []compliance.AuditEvent
	lastQuery compliance.AuditFilter
	queryErr  error
}

func (f *fakeAdminAuditor) LogDataErased(_ context.Context, anonID string, _ any) error {
	f.erasures = append(f.erasures, anonID)
	return nil
}

func (f *fakeAdminAuditor) LogRetentionPurge(_ context.Context, _ any) error {
	f.purges++
	return nil
}

func (f *fakeAdminAuditor) LogKeyRotated(_ context.Context, keyID string) error {
	f.rotations = append(f.rotations, keyID)
	return nil
}

func (f *fakeAdminAuditor) QueryEvents(_ context.Context, filter compliance.AuditFilter) ([]compliance.AuditEvent, error) {
	f.lastQuery = filter
	return f.events, f.queryErr
}

type fakeHistoryClearer struct {
	cleared []string
}

func (f *fakeHistoryClearer) Clear(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

type adminFakeS3 struct {
	keys []string
}

func (f *adminFakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.keys = append(f.keys, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

func newAdminRouter(t *testing.T, h *AdminHandler) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	r.Delete("/admin/users/{anonID}", h.EraseUser)
	r.Get("/admin/users/{anonID}/conversations", h.UserConversations)
	r.Post("/admin/retention/purge", h.RunPurge)
	r.Post("/admin/keys/rotate", h.RotateKey)
	r.Post("/admin/backup", h.RunBackup)
	r.Get("/admin/audit", h.Audit)
	return r
}

func TestAdminEraseUser(t *testing.T) {
	st := &fakeAdminStore{}
	audit := &fakeAdminAuditor{}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: audit, Logger: logging.Default()})
	r := newAdminRouter(t, h)
	anonID := "anon_0123456789abcdef01234567"

	req := httptest.NewRequest(http.MethodDelete, "/admin/users/"+anonID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{anonID}, st.erased)
	assert.Equal(t, []string{anonID}, audit.erasures)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["conversations"])
}

func TestAdminEraseClearsSessionHistory(t *testing.T) {
	sessions := []uuid.UUID{uuid.New(), uuid.New()}
	st := &fakeAdminStore{eraseSessions: sessions}
	history := &fakeHistoryClearer{}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: &fakeAdminAuditor{}, History: history})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/admin/users/anon_0123456789abcdef01234567", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{sessions[0].String(), sessions[1].String()}, history.cleared)
}

func TestAdminUserConversations(t *testing.T) {
	st := &fakeAdminStore{convs: []store.ConversationRecord{
		{ID: uuid.New(), AnonID: "anon_0123456789abcdef01234567", MessageEncrypted: "gm1:k:secret", CrisisScore: 0.84, Urgency: "immediate"},
	}}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: &fakeAdminAuditor{}})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/admin/users/anon_0123456789abcdef01234567/conversations?limit=5", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"anon_0123456789abcdef01234567"}, st.byUserArgs)
	// Reporting rows carry metadata only, never payloads.
	assert.NotContains(t, rec.Body.String(), "gm1:k:secret")
	assert.Contains(t, rec.Body.String(), "0.84")
}

func TestAdminUserConversationsBadRange(t *testing.T) {
	h := NewAdminHandler(AdminConfig{Store: &fakeAdminStore{}, Audit: &fakeAdminAuditor{}})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/admin/users/anon_0123456789abcdef01234567/conversations?from=yesterday", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ_008", decodeBody(t, rec)["error_code"])
}

func TestAdminEraseRejectsRawID(t *testing.T) {
	st := &fakeAdminStore{}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: &fakeAdminAuditor{}})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/admin/users/alice@example.com", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, st.erased)
}

func TestAdminEraseFailure(t *testing.T) {
	st := &fakeAdminStore{
		eraseErr: fault.New(fault.KindPrivacy, fault.CodeErasure, "store: erase conversations"),
	}
	audit := &fakeAdminAuditor{}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: audit})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/admin/users/anon_0123456789abcdef01234567", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, audit.erasures)
}

func TestAdminPurgeDefaultRetention(t *testing.T) {
	st := &fakeAdminStore{}
	audit := &fakeAdminAuditor{}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: audit, RetentionDays: 30})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/retention/purge", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, st.purgeCutoffs, 1)
	want := time.Now().UTC().AddDate(0, 0, -30)
	assert.WithinDuration(t, want, st.purgeCutoffs[0], time.Minute)
	assert.Equal(t, 1, audit.purges)
}

func TestAdminPurgeDaysOverride(t *testing.T) {
	st := &fakeAdminStore{}
	h := NewAdminHandler(AdminConfig{Store: st, Audit: &fakeAdminAuditor{}, RetentionDays: 365})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/retention/purge?days=7", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, st.purgeCutoffs, 1)
	want := time.Now().UTC().AddDate(0, 0, -7)
	assert.WithinDuration(t, want, st.purgeCutoffs[0], time.Minute)

	req = httptest.NewRequest(http.MethodPost, "/admin/retention/purge?days=zero", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRotateKey(t *testing.T) {
	kr, err := privacy.LoadKeyring(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, err)
	defer kr.Close()

	audit := &fakeAdminAuditor{}
	h := NewAdminHandler(AdminConfig{Store: &fakeAdminStore{}, Audit: audit, Keyring: kr})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/keys/rotate", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["key_id"])
	assert.Equal(t, 1, kr.RetiredCount())
	require.Len(t, audit.rotations, 1)
	assert.Equal(t, body["key_id"], audit.rotations[0])
}

func TestAdminRotateWithoutKeyring(t *testing.T) {
	h := NewAdminHandler(AdminConfig{Store: &fakeAdminStore{}, Audit: &fakeAdminAuditor{}})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/keys/rotate", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminBackup(t *testing.T) {
	s3c := &adminFakeS3{}
	st := &fakeAdminStore{convs: []store.ConversationRecord{
		{AnonID: "anon_x", MessageEncrypted: "gm1:k:abc"},
	}}
	h := NewAdminHandler(AdminConfig{
		Store:  st,
		Audit:  &fakeAdminAuditor{},
		Backup: store.NewBackup(s3c, "gm-backups", nil),
	})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/backup", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s3c.keys, 1)
	body := decodeBody(t, rec)
	assert.Equal(t, s3c.keys[0], body["s3_key"])
	assert.Equal(t, float64(1), body["conversations"])
}

func TestAdminBackupUnconfigured(t *testing.T) {
	h := NewAdminHandler(AdminConfig{Store: &fakeAdminStore{}, Audit: &fakeAdminAuditor{}})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/backup", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminAuditQuery(t *testing.T) {
	audit := &fakeAdminAuditor{events: []compliance.AuditEvent{
		{ID: 1, EventType: compliance.EventKeyRotated},
	}}
	h := NewAdminHandler(AdminConfig{Store: &fakeAdminStore{}, Audit: audit})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/admin/audit?event_type=privacy.key_rotated&limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, compliance.EventKeyRotated, audit.lastQuery.EventType)
	assert.Equal(t, 10, audit.lastQuery.Limit)
}

func TestAdminAuditEmptyList(t *testing.T) {
	h := NewAdminHandler(AdminConfig{Store: &fakeAdminStore{}, Audit: &fakeAdminAuditor{}})
	r := newAdminRouter(t, h)

	req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
