// Package handlers hosts the HTTP endpoints for the support platform.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/globalmind/support-platform/internal/culture"
	"github.com/globalmind/support-platform/internal/fault"
	"github.com/globalmind/support-platform/internal/pipeline"
	"github.com/globalmind/support-platform/internal/privacy"
	"github.com/globalmind/support-platform/internal/store"
	"github.com/globalmind/support-platform/pkg/logging"
)

const maxMessageBytes = 16 * 1024

// Processor runs one request through the support pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// SupportStore is the persistence surface the public handlers need.
type SupportStore interface {
	RecordFeedback(ctx context.Context, rec store.FeedbackRecord) error
	RecordProgress(ctx context.Context, rec store.ProgressRecord) error
	ProgressForUser(ctx context.Context, anonID string) (*store.ProgressSummary, error)
	Health(ctx context.Context) error
}

// Encryptor seals free-text fields before they reach the store.
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Anonymize(userID string) string
}

// SupportHandler hosts the public chat, feedback, and progress endpoints.
type SupportHandler struct {
	processor Processor
	store     SupportStore
	guard     Encryptor
	logger    *logging.Logger
}

func NewSupportHandler(processor Processor, st SupportStore, guard Encryptor, logger *logging.Logger) *SupportHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SupportHandler{processor: processor, store: st, guard: guard, logger: logger.Component("http")}
}

type chatRequest struct {
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id,omitempty"`
	Text      string            `json:"text"`
	Language  string            `json:"language,omitempty"`
	Profile   *profilePayload   `json:"profile,omitempty"`
}

type profilePayload struct {
	CulturalBackground string `json:"cultural_background,omitempty"`
	PreferredApproach  string `json:"preferred_approach,omitempty"`
}

// Chat handles POST /v1/chat.
func (h *SupportHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "REQ_001")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "REQ_002")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required", "REQ_003")
		return
	}

	preq := pipeline.Request{
		UserID:   req.UserID,
		Text:     req.Text,
		Language: req.Language,
	}
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "session_id must be a UUID", "REQ_004")
			return
		}
		preq.SessionID = id
	}
	if req.Profile != nil {
		preq.Profile = &culture.Profile{
			CulturalBackground: req.Profile.CulturalBackground,
			PreferredApproach:  req.Profile.PreferredApproach,
		}
	}

	res, err := h.processor.Process(r.Context(), preq)
	if err != nil {
		// A scorer failure still carries a safe reply; the caller gets it
		// rather than an error page.
		if res != nil {
			h.logger.Error("pipeline degraded, serving safe reply", "error", err)
			writeJSON(w, http.StatusOK, res)
			return
		}
		h.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type feedbackRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
}

// Feedback handles POST /v1/feedback.
func (h *SupportHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "REQ_001")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "REQ_002")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5", "REQ_005")
		return
	}

	rec := store.FeedbackRecord{
		AnonID: h.guard.Anonymize(req.UserID),
		Rating: req.Rating,
	}
	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "conversation_id must be a UUID", "REQ_004")
			return
		}
		rec.ConversationID = &id
	}
	if req.Comment != "" {
		blob, err := h.guard.Encrypt([]byte(req.Comment))
		if err != nil {
			h.writeFault(w, err)
			return
		}
		rec.CommentEncrypted = blob
	}

	if err := h.store.RecordFeedback(r.Context(), rec); err != nil {
		h.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

type progressRequest struct {
	UserID    string   `json:"user_id"`
	MoodScore *float64 `json:"mood_score,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// RecordProgress handles POST /v1/progress.
func (h *SupportHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "REQ_001")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", "REQ_002")
		return
	}
	if req.MoodScore != nil && (*req.MoodScore < 0 || *req.MoodScore > 10) {
		writeError(w, http.StatusBadRequest, "mood_score must be between 0 and 10", "REQ_005")
		return
	}

	rec := store.ProgressRecord{
		AnonID:    h.guard.Anonymize(req.UserID),
		MoodScore: req.MoodScore,
	}
	if req.Note != "" {
		blob, err := h.guard.Encrypt([]byte(req.Note))
		if err != nil {
			h.writeFault(w, err)
			return
		}
		rec.NoteEncrypted = blob
	}

	if err := h.store.RecordProgress(r.Context(), rec); err != nil {
		h.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// Progress handles GET /v1/progress/{anonID}.
func (h *SupportHandler) Progress(w http.ResponseWriter, r *http.Request) {
	anonID := chi.URLParam(r, "anonID")
	if !privacy.IsAnonymizedID(anonID) {
		writeError(w, http.StatusBadRequest, "invalid anonymized id", "REQ_006")
		return
	}

	sum, err := h.store.ProgressForUser(r.Context(), anonID)
	if err != nil {
		h.writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Health handles GET /health.
func (h *SupportHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SupportHandler) writeFault(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err, "code", fault.CodeOf(err))
	status := http.StatusInternalServerError
	if fault.IsKind(err, fault.KindDatabase) {
		status = http.StatusServiceUnavailable
	}
	// Callers get the code, never internal detail.
	writeError(w, status, "request could not be processed", fault.CodeOf(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, map[string]string{"message": message, "error_code": code})
}
