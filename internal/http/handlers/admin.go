package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/globalmind/support-platform/internal/compliance"
	"github.com/globalmind/support-platform/internal/privacy"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/pkg/logging"
)

// AdminStore is the persistence surface the privileged endpoints need.
type AdminStore interface {
	EraseUser(ctx context.Context, anonID string) (*store.EraseResult, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (*store.PurgeResult, error)
	ConversationsSince(ctx context.Context, since time.Time, limit int) ([]store.ConversationRecord, error)
	ConversationsByUser(ctx context.Context, anonID string, from, to time.Time, limit int) ([]store.ConversationRecord, error)
}

// SessionHistory drops cached session state, called when the backing rows are
// erased.
type SessionHistory interface {
	Clear(ctx context.Context, sessionID string) error
}

// AdminAuditor is the audit surface the privileged endpoints need.
type AdminAuditor interface {
	LogDataErased(ctx context.Context, anonID string, counts any) error
	LogRetentionPurge(ctx context.Context, counts any) error
	LogKeyRotated(ctx context.Context, keyID string) error
	QueryEvents(ctx context.Context, filter compliance.AuditFilter) ([]compliance.AuditEvent, error)
}

// AdminHandler hosts privileged privacy operations behind admin JWT auth.
type AdminHandler struct {
	store         AdminStore
	audit         AdminAuditor
	keyring       *privacy.Keyring
	backup        *store.Backup
	history       SessionHistory
	logger        *logging.Logger
	retentionDays int
}

type AdminConfig struct {
	Store         AdminStore
	Audit         AdminAuditor
	Keyring       *privacy.Keyring
	Backup        *store.Backup
	History       SessionHistory
	Logger        *logging.Logger
	RetentionDays int
}

func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 365
	}
	return &AdminHandler{
		store:         cfg.Store,
		audit:         cfg.Audit,
		keyring:       cfg.Keyring,
		backup:        cfg.Backup,
		history:       cfg.History,
		logger:        logger.Component("admin"),
		retentionDays: retention,
	}
}

// EraseUser handles DELETE /admin/users/{anonID}: full erasure of one user's
// rows.
func (h *AdminHandler) EraseUser(w http.ResponseWriter, r *http.Request) {
	anonID := chi.URLParam(r, "anonID")
	if !privacy.IsAnonymizedID(anonID) {
		writeError(w, http.StatusBadRequest, "invalid anonymized id", "REQ_006")
		return
	}

	res, err := h.store.EraseUser(r.Context(), anonID)
	if err != nil {
		h.logger.Error("erasure failed", "error", err, "anon_id", anonID)
		writeError(w, http.StatusInternalServerError, "erasure failed", "PRIVACY_003")
		return
	}
	h.logger.Info("user data erased", "anon_id", anonID, "conversations", res.Conversations)
	if h.history != nil {
		// Cached session turns hold only theme metadata, but erasure means
		// erasure.
		for _, id := range res.SessionIDs {
			if err := h.history.Clear(r.Context(), id.String()); err != nil {
				h.logger.Warn("session history clear failed", "error", err, "session_id", id)
			}
		}
	}
	if h.audit != nil {
		if err := h.audit.LogDataErased(r.Context(), anonID, res); err != nil {
			h.logger.Error("erasure audit failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// conversationSummary is one reporting row. Message bodies stay encrypted at
// rest and are never returned here.
type conversationSummary struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	CrisisScore    float64   `json:"crisis_score"`
	CrisisDetected bool      `json:"crisis_detected"`
	Urgency        string    `json:"urgency"`
	Language       string    `json:"language"`
	CulturalRegion string    `json:"cultural_region"`
	Approach       string    `json:"approach"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserConversations handles GET /admin/users/{anonID}/conversations:
// date-range reporting over one user's rows. Defaults to the last 30 days.
func (h *AdminHandler) UserConversations(w http.ResponseWriter, r *http.Request) {
	anonID := chi.URLParam(r, "anonID")
	if !privacy.IsAnonymizedID(anonID) {
		writeError(w, http.StatusBadRequest, "invalid anonymized id", "REQ_006")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp", "REQ_008")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp", "REQ_008")
			return
		}
		to = parsed
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	recs, err := h.store.ConversationsByUser(r.Context(), anonID, from, to, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "conversation query failed", "DB_002")
		return
	}
	out := make([]conversationSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, conversationSummary{
			ID:             rec.ID,
			SessionID:      rec.SessionID,
			CrisisScore:    rec.CrisisScore,
			CrisisDetected: rec.CrisisDetected,
			Urgency:        rec.Urgency,
			Language:       rec.Language,
			CulturalRegion: rec.CulturalRegion,
			Approach:       rec.Approach,
			CreatedAt:      rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// RunPurge handles POST /admin/retention/purge: an on-demand retention purge.
func (h *AdminHandler) RunPurge(w http.ResponseWriter, r *http.Request) {
	days := h.retentionDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer", "REQ_007")
			return
		}
		days = parsed
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	res, err := h.store.PurgeExpired(r.Context(), cutoff)
	if err != nil {
		h.logger.Error("manual purge failed", "error", err)
		writeError(w, http.StatusInternalServerError, "purge failed", "PRIVACY_002")
		return
	}
	h.logger.Info("manual retention purge complete", "cutoff", cutoff)
	if h.audit != nil {
		if err := h.audit.LogRetentionPurge(r.Context(), res); err != nil {
			h.logger.Error("purge audit failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// RotateKey handles POST /admin/keys/rotate: an immediate key rotation.
func (h *AdminHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	if h.keyring == nil {
		writeError(w, http.StatusServiceUnavailable, "key management unavailable", "SEC_001")
		return
	}
	keyID, err := h.keyring.Rotate()
	if err != nil {
		h.logger.Error("manual key rotation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "rotation failed", "SEC_001")
		return
	}
	h.logger.Info("encryption key rotated", "key_id", keyID)
	if h.audit != nil {
		if err := h.audit.LogKeyRotated(r.Context(), keyID); err != nil {
			h.logger.Error("rotation audit failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"key_id": keyID})
}

// RunBackup handles POST /admin/backup: an on-demand snapshot of recent
// conversations.
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if !h.backup.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backup not configured", "OPS_001")
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -1)
	recs, err := h.store.ConversationsSince(r.Context(), since, 10000)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "backup query failed", "DB_002")
		return
	}
	key, err := h.backup.Write(r.Context(), &store.Snapshot{Conversations: recs})
	if err != nil {
		h.logger.Error("manual backup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed", "OPS_002")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"s3_key": key, "conversations": len(recs)})
}

// Audit handles GET /admin/audit with optional event_type, anon_id, and
// limit filters.
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	filter := compliance.AuditFilter{
		EventType: compliance.AuditEventType(r.URL.Query().Get("event_type")),
		AnonID:    r.URL.Query().Get("anon_id"),
		Limit:     100,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			filter.Limit = parsed
		}
	}

	events, err := h.audit.QueryEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit query failed", "DB_002")
		return
	}
	if events == nil {
		events = []compliance.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
