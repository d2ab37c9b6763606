package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"folioforge/internal/admin"
	"folioforge/internal/ai"
	"folioforge/internal/assets"
	"folioforge/internal/ats"
	"folioforge/internal/auth"
	"folioforge/internal/config"
	"folioforge/internal/credits"
	"folioforge/internal/database"
	"folioforge/internal/dbtest"
	"folioforge/internal/documents"
	"folioforge/internal/export"
	"folioforge/internal/payments"
	"folioforge/internal/render"
	"folioforge/internal/storage"
)

const testWebhookSecret = "whsec_test"

type stubPrinter struct {
	err error
}

func (p *stubPrinter) PrintHTML(_ context.Context, html string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-stub\n" + html), nil
}

type stubStamper struct {
	mu    sync.Mutex
	calls int
}

func (s *stubStamper) Stamp(pdf []byte, text string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return append(append([]byte(nil), pdf...), []byte("\n%WATERMARK "+text)...), nil
}

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (c *stubCompleter) Complete(context.Context, string, string) (string, error) {
	c.calls++
	return c.reply, c.err
}

var _ ai.Completer = (*stubCompleter)(nil)

type fakeQueue struct {
	tasks []*asynq.Task
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

// fakeObjects 的时钟每次上传前进一秒，LastModified 因此严格递增。
type fakeObjects struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	modified map[string]time.Time
	clock    time.Time
	deleted  []string
	params   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		uploaded: map[string][]byte{},
		modified: map[string]time.Time{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *fakeObjects) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Second)
	s.uploaded[objectName] = b
	s.modified[objectName] = s.clock
	return &minio.UploadInfo{Key: objectName, Size: int64(len(b))}, nil
}

func (s *fakeObjects) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://objects.invalid/" + objectKey, nil
}

func (s *fakeObjects) GeneratePresignedURLWithParams(_ context.Context, objectKey string, _ time.Duration, params map[string]string) (string, error) {
	s.mu.Lock()
	s.params = params
	s.mu.Unlock()
	return "https://objects.invalid/" + objectKey + "?signed=1", nil
}

func (s *fakeObjects) ListObjects(_ context.Context, prefix string) ([]storage.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ObjectMeta
	for key, data := range s.uploaded {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectMeta{Key: key, Size: int64(len(data)), LastModified: s.modified[key]})
		}
	}
	return out, nil
}

func (s *fakeObjects) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.uploaded {
		if strings.HasPrefix(key, prefix) {
			s.deleted = append(s.deleted, key)
			delete(s.uploaded, key)
		}
	}
	return nil
}

func (s *fakeObjects) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

// testEnv 是装配好全部路由的 API，外部依赖均为内存实现。
type testEnv struct {
	t         *testing.T
	db        *gorm.DB
	router    *gin.Engine
	auth      *auth.AuthService
	store     *documents.Store
	printer   *stubPrinter
	stamper   *stubStamper
	completer *stubCompleter
	queue     *fakeQueue
	objects   *fakeObjects
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	authService, err := auth.NewAuthService(priv, pub, time.Minute, time.Hour)
	require.NoError(t, err)

	dispatcher, err := render.NewDispatcher()
	require.NoError(t, err)
	printer := &stubPrinter{}
	stamper := &stubStamper{}
	store := documents.NewStore(db)
	exporter := export.NewExporter(dispatcher, printer, stamper, logger)
	exports := export.NewService(store, exporter, assets.NewInliner(nil, logger), "Made with FolioForge")

	creditService := credits.NewService(db)
	completer := &stubCompleter{}
	queue := &fakeQueue{}
	objects := newFakeObjects()

	cfg := &config.Config{}
	cfg.Auth = config.AuthConfig{LoginRateLimitPerHour: 10, LoginLockThreshold: 5, LoginLockTTL: time.Minute}
	cfg.Credits = config.CreditsConfig{SignupGrant: 10, ATSCost: 2}
	cfg.Export.LinkTTL = time.Minute

	router := NewRouter(logger)
	RegisterRoutes(router, Deps{
		Config:    cfg,
		DB:        db,
		Auth:      authService,
		Redis:     redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}),
		Queue:     queue,
		Objects:   objects,
		Documents: store,
		Exports:   exports,
		Analyzer:  ats.NewAnalyzer(completer, creditService, cfg.Credits.ATSCost, logger),
		Credits:   creditService,
		Payments:  payments.NewProcessor(db, testWebhookSecret, logger),
		Admin:     admin.NewService(db),
		Logger:    logger,
	})

	return &testEnv{
		t:         t,
		db:        db,
		router:    router,
		auth:      authService,
		store:     store,
		printer:   printer,
		stamper:   stamper,
		completer: completer,
		queue:     queue,
		objects:   objects,
	}
}

// user 创建用户并返回访问令牌。
func (e *testEnv) user(username, plan string, creditBalance int) (database.User, string) {
	e.t.Helper()
	u := dbtest.User(e.t, e.db, username, plan, creditBalance)
	return u, e.token(u)
}

func (e *testEnv) token(u database.User) string {
	e.t.Helper()
	pair, err := e.auth.GenerateTokenPair(auth.Identity{UserID: u.ID, Role: u.Role, MustChangePassword: u.MustChangePassword})
	require.NoError(e.t, err)
	return pair.AccessToken
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
