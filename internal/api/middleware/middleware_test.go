package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/auth"
	"folioforge/internal/database"
)

func newAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	svc, err := auth.NewAuthService(priv, pub, time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func newEngine(svc *auth.AuthService, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(svc)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(UserIDKey), "role": c.GetString(RoleKey)})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	svc := newAuthService(t)
	r := newEngine(svc)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "garbage").Code)

	pair, err := svc.GenerateTokenPair(auth.Identity{UserID: 7, Role: database.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, pair.RefreshToken).Code, "refresh token must not authenticate")

	w := do(r, pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"user"}`, w.Body.String())
}

func TestRequireAdminMiddleware(t *testing.T) {
	svc := newAuthService(t)
	r := newEngine(svc, RequireAdminMiddleware())

	user, err := svc.GenerateTokenPair(auth.Identity{UserID: 1, Role: database.RoleUser})
	require.NoError(t, err)
	w := do(r, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"admin_only"`)

	admin, err := svc.GenerateTokenPair(auth.Identity{UserID: 2, Role: database.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(r, admin.AccessToken).Code)
}

func TestPasswordGate(t *testing.T) {
	svc := newAuthService(t)
	r := newEngine(svc, RequirePasswordChangeCompletedMiddleware())

	pending, err := svc.GenerateTokenPair(auth.Identity{UserID: 3, Role: database.RoleAdmin, MustChangePassword: true})
	require.NoError(t, err)
	w := do(r, pending.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "password_change_required")

	done, err := svc.GenerateTokenPair(auth.Identity{UserID: 3, Role: database.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(r, done.AccessToken).Code)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware())
	r.GET("/c", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/c", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("X-Correlation-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/c", nil))
	assert.NotEmpty(t, w.Body.String())
}
