package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/globalmind/support-platform/internal/culture"
	"github.com/globalmind/support-platform/internal/fault"
	"github.com/globalmind/support-platform/internal/pipeline"
	"github.com/globalmind/support-platform/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = maxMessageBytes
)

// wsInbound is one client frame on the chat socket.
type wsInbound struct {
	Type     string          `json:"type"`
	UserID   string          `json:"user_id,omitempty"`
	Text     string          `json:"text,omitempty"`
	Language string          `json:"language,omitempty"`
	Profile  *profilePayload `json:"profile,omitempty"`
}

// wsOutbound is one server frame on the chat socket.
type wsOutbound struct {
	Type      string           `json:"type"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Message   string           `json:"message,omitempty"`
	ErrorCode string           `json:"error_code,omitempty"`
}

// SessionEnder marks a session finished once its socket closes.
type SessionEnder interface {
	EndSession(ctx context.Context, sessionID uuid.UUID) error
}

// WSHandler streams chat turns over a websocket. One socket is one session;
// the session ID is minted at upgrade and reused for every turn, and the
// session is closed when the socket goes away.
type WSHandler struct {
	processor Processor
	sessions  SessionEnder
	logger    *logging.Logger
}

func NewWSHandler(processor Processor, sessions SessionEnder, logger *logging.Logger) *WSHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WSHandler{processor: processor, sessions: sessions, logger: logger.Component("ws")}
}

// Chat handles GET /ws/chat.
func (h *WSHandler) Chat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	sessionID := uuid.New()
	turns := 0
	defer func() {
		if h.sessions == nil || turns == 0 {
			return
		}
		// The request context is going away with the socket.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.sessions.EndSession(ctx, sessionID); err != nil {
			h.logger.Warn("session close failed", "error", err, "session_id", sessionID)
		}
	}()

	h.send(conn, wsOutbound{Type: "session", Message: sessionID.String()})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.send(conn, wsOutbound{Type: "error", Message: "invalid frame", ErrorCode: "REQ_001"})
			continue
		}

		switch in.Type {
		case "chat":
			if h.handleTurn(conn, r, sessionID, in) {
				turns++
			}
		case "ping":
			h.send(conn, wsOutbound{Type: "pong"})
		default:
			h.send(conn, wsOutbound{Type: "error", Message: "unknown frame type", ErrorCode: "REQ_001"})
		}
	}
}

// handleTurn reports whether the turn reached the pipeline, so the caller
// knows a session row may exist.
func (h *WSHandler) handleTurn(conn *websocket.Conn, r *http.Request, sessionID uuid.UUID, in wsInbound) bool {
	if strings.TrimSpace(in.UserID) == "" {
		h.send(conn, wsOutbound{Type: "error", Message: "user_id is required", ErrorCode: "REQ_002"})
		return false
	}
	if strings.TrimSpace(in.Text) == "" {
		h.send(conn, wsOutbound{Type: "error", Message: "text is required", ErrorCode: "REQ_003"})
		return false
	}

	preq := pipeline.Request{
		UserID:    in.UserID,
		SessionID: sessionID,
		Text:      in.Text,
		Language:  in.Language,
	}
	if in.Profile != nil {
		preq.Profile = &culture.Profile{
			CulturalBackground: in.Profile.CulturalBackground,
			PreferredApproach:  in.Profile.PreferredApproach,
		}
	}

	res, err := h.processor.Process(r.Context(), preq)
	if err != nil {
		if res != nil {
			h.logger.Error("pipeline degraded, serving safe reply", "error", err)
			h.send(conn, wsOutbound{Type: "reply", Result: res})
			return true
		}
		h.logger.Error("websocket turn failed", "error", err, "code", fault.CodeOf(err))
		h.send(conn, wsOutbound{Type: "error", Message: "request could not be processed", ErrorCode: fault.CodeOf(err)})
		return false
	}
	h.send(conn, wsOutbound{Type: "reply", Result: res})
	return true
}

func (h *WSHandler) send(conn *websocket.Conn, out wsOutbound) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(out); err != nil {
		h.logger.Warn("websocket write failed", "error", err)
	}
}
