package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/auth"
	"folioforge/internal/errcode"
	"folioforge/internal/worker"
)

func TestExportFrame(t *testing.T) {
	completed := `{"status":"completed","document_id":4,"format":"pdf","object_key":"exports/7/4/0190a.pdf","correlation_id":"c-1","error_code":0,"error_message":""}`
	msg, err := exportFrame(7, completed)
	require.NoError(t, err)
	assert.Equal(t, worker.NotifyCompleted, msg.Status)
	assert.Equal(t, uint(4), msg.DocumentID)
	assert.Equal(t, "c-1", msg.CorrelationID)

	failed := fmt.Sprintf(`{"status":"error","document_id":4,"format":"docx","correlation_id":"c-2","error_code":%d,"error_message":"export failed"}`, errcode.ExportFailed)
	msg, err = exportFrame(7, failed)
	require.NoError(t, err)
	assert.Equal(t, errcode.ExportFailed, msg.ErrorCode)

	rejected := map[string]string{
		"not json":        `export done`,
		"foreign user":    `{"status":"completed","document_id":4,"object_key":"exports/8/4/x.pdf"}`,
		"foreign doc":     `{"status":"completed","document_id":4,"object_key":"exports/7/5/x.pdf"}`,
		"no document":     `{"status":"completed","object_key":"exports/7/0/x.pdf"}`,
		"unknown status":  `{"status":"queued","document_id":4}`,
		"error with key":  `{"status":"error","document_id":4,"object_key":"exports/7/4/x.pdf"}`,
		"unexpected keys": `{"status":"error","document_id":4,"user_id":8}`,
	}
	for name, payload := range rejected {
		_, err := exportFrame(7, payload)
		assert.Error(t, err, name)
	}
}

func TestWsAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	u, access := env.user("alice", "free", 0)
	h := NewWsHandler(nil, env.auth, nil, nil)

	id, err := h.authenticate([]byte(`{"type":"auth","token":"` + access + `"}`))
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	pair, err := env.auth.GenerateTokenPair(auth.Identity{UserID: u.ID})
	require.NoError(t, err)
	locked, err := env.auth.GenerateTokenPair(auth.Identity{UserID: u.ID, MustChangePassword: true})
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":         `{`,
		"wrong type":      `{"type":"hello","token":"` + access + `"}`,
		"missing token":   `{"type":"auth"}`,
		"bad token":       `{"type":"auth","token":"nope"}`,
		"refresh token":   `{"type":"auth","token":"` + pair.RefreshToken + `"}`,
		"password change": `{"type":"auth","token":"` + locked.AccessToken + `"}`,
	}
	for name, frame := range cases {
		_, err := h.authenticate([]byte(frame))
		var closeErr *wsCloseError
		require.True(t, errors.As(err, &closeErr), name)
		assert.Equal(t, websocket.ClosePolicyViolation, closeErr.code, name)
	}
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://app.example.com/v1/ws", nil)

	sameHost := originChecker(nil)
	assert.True(t, sameHost(req))
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, sameHost(req))
	req.Header.Set("Origin", "https://evil.example.net")
	assert.False(t, sameHost(req))

	listed := originChecker([]string{"https://evil.example.net"})
	assert.True(t, listed(req))
	req.Header.Set("Origin", "https://app.example.com")
	assert.False(t, listed(req))
}

func TestWsHandler_RejectsBadTokenWithPolicyClose(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsAuthMessage{Type: "auth", Token: "forged"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "unauthorized", closeErr.Text)
}
