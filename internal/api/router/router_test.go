package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalmind/support-platform/internal/http/handlers"
	"github.com/globalmind/support-platform/internal/pipeline"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/pkg/logging"
)

type stubProcessor struct{}

func (stubProcessor) Process(_ context.Context, _ pipeline.Request) (*pipeline.Result, error) {
	return &pipeline.Result{Message: "ok"}, nil
}

type stubStore struct{}

func (stubStore) RecordFeedback(_ context.Context, _ store.FeedbackRecord) error { return nil }
func (stubStore) RecordProgress(_ context.Context, _ store.ProgressRecord) error { return nil }
func (stubStore) ProgressForUser(_ context.Context, _ string) (*store.ProgressSummary, error) {
	return &store.ProgressSummary{}, nil
}
func (stubStore) Health(_ context.Context) error { return nil }

type stubEncryptor struct{}

func (stubEncryptor) Encrypt(plaintext []byte) (string, error) { return "gm1:k:x", nil }
func (stubEncryptor) Anonymize(userID string) string           { return "anon_" + userID }

func newTestRouter() http.Handler {
	support := handlers.NewSupportHandler(stubProcessor{}, stubStore{}, stubEncryptor{}, logging.Default())
	return New(&Config{
		SupportHandler:  support,
		AdminHandler:    handlers.NewAdminHandler(handlers.AdminConfig{}),
		AdminAuthSecret: "test-secret",
		MetricsHandler:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	})
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter()

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/v1/chat", `{"user_id":"u1","text":"hi"}`, http.StatusOK},
		{http.MethodPost, "/v1/feedback", `{"user_id":"u1","rating":5}`, http.StatusCreated},
		{http.MethodPost, "/v1/progress", `{"user_id":"u1","mood_score":7}`, http.StatusCreated},
		{http.MethodGet, "/v1/progress/anon_0123456789abcdef01234567", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAdminRoutesRequireJWT(t *testing.T) {
	r := newTestRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/admin/users/anon_0123456789abcdef01234567"},
		{http.MethodGet, "/admin/users/anon_0123456789abcdef01234567/conversations"},
		{http.MethodPost, "/admin/retention/purge"},
		{http.MethodPost, "/admin/keys/rotate"},
		{http.MethodPost, "/admin/backup"},
		{http.MethodGet, "/admin/audit"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
