package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalmind/support-platform/internal/pipeline"
	"github.com/globalmind/support-platform/pkg/logging"
)

type fakeSessionEnder struct {
	mu    sync.Mutex
	ended []uuid.UUID
}

func (f *fakeSessionEnder) EndSession(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
	return nil
}

func (f *fakeSessionEnder) endedIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.ended...)
}

func dialWS(t *testing.T, proc *fakeProcessor, sessions SessionEnder) (*websocket.Conn, func()) {
	t.Helper()
	h := NewWSHandler(proc, sessions, logging.Default())
	r := chi.NewRouter()
	r.Get("/ws/chat", h.Chat)
	srv := httptest.NewServer(r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsOutbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out wsOutbound
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWSChatTurn(t *testing.T) {
	proc := &fakeProcessor{result: &pipeline.Result{
		AnonID:  "anon_u1",
		Message: "Thank you for sharing.",
		Urgency: "low",
	}}
	conn, done := dialWS(t, proc, nil)
	defer done()

	hello := readFrame(t, conn)
	require.Equal(t, "session", hello.Type)
	sessionID, err := uuid.Parse(hello.Message)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "chat", UserID: "u1", Text: "hello"}))
	reply := readFrame(t, conn)
	require.Equal(t, "reply", reply.Type)
	require.NotNil(t, reply.Result)
	assert.Equal(t, "Thank you for sharing.", reply.Result.Message)
	assert.Equal(t, sessionID, proc.lastReq.SessionID)

	// Session ID sticks across turns on the same socket.
	require.NoError(t, conn.WriteJSON(wsInbound{Type: "chat", UserID: "u1", Text: "still here"}))
	_ = readFrame(t, conn)
	assert.Equal(t, sessionID, proc.lastReq.SessionID)
}

func TestWSSessionEndedOnClose(t *testing.T) {
	proc := &fakeProcessor{result: &pipeline.Result{Message: "ok"}}
	sessions := &fakeSessionEnder{}
	conn, done := dialWS(t, proc, sessions)
	defer done()

	hello := readFrame(t, conn)
	sessionID, err := uuid.Parse(hello.Message)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "chat", UserID: "u1", Text: "hello"}))
	_ = readFrame(t, conn)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return len(sessions.endedIDs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, sessionID, sessions.endedIDs()[0])
}

func TestWSNoTurnsNoSessionClose(t *testing.T) {
	sessions := &fakeSessionEnder{}
	conn, done := dialWS(t, &fakeProcessor{}, sessions)

	_ = readFrame(t, conn)
	require.NoError(t, conn.Close())
	defer done()

	require.Never(t, func() bool { return len(sessions.endedIDs()) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWSValidation(t *testing.T) {
	conn, done := dialWS(t, &fakeProcessor{}, nil)
	defer done()
	_ = readFrame(t, conn) // session frame

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "chat", Text: "hi"}))
	out := readFrame(t, conn)
	assert.Equal(t, "error", out.Type)
	assert.Equal(t, "REQ_002", out.ErrorCode)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "chat", UserID: "u1"}))
	out = readFrame(t, conn)
	assert.Equal(t, "REQ_003", out.ErrorCode)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{bad json")))
	out = readFrame(t, conn)
	assert.Equal(t, "REQ_001", out.ErrorCode)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "unknown"}))
	out = readFrame(t, conn)
	assert.Equal(t, "REQ_001", out.ErrorCode)
}

func TestWSPing(t *testing.T) {
	conn, done := dialWS(t, &fakeProcessor{}, nil)
	defer done()
	_ = readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "ping"}))
	out := readFrame(t, conn)
	assert.Equal(t, "pong", out.Type)
}
