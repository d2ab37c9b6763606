package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/database"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

func (e *testEnv) upload(token, filename string, content []byte) *httptest.ResponseRecorder {
	e.t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(e.t, err)
	_, err = part.Write(content)
	require.NoError(e.t, err)
	require.NoError(e.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/assets/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAssets_UploadListViewDelete(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.user("alice", "free", 0)
	_, other := env.user("mallory", "free", 0)

	w := env.upload(token, "avatar.png", pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	key := decode(t, w)["objectKey"].(string)
	assert.Contains(t, env.objects.uploaded, key)

	var count int64
	require.NoError(t, env.db.Model(&database.Asset{}).Where("user_id = ?", u.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	w = env.do(http.MethodGet, "/v1/assets", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, key, items[0].(map[string]any)["objectKey"])

	w = env.do(http.MethodGet, "/v1/assets/view?key="+url.QueryEscape(key), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["url"], key)

	w = env.do(http.MethodGet, "/v1/assets/view?key="+url.QueryEscape(key), other, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_owner", decode(t, w)["reason"])

	w = env.do(http.MethodDelete, "/v1/assets?key="+url.QueryEscape(key), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{key}, env.objects.deleted)

	w = env.do(http.MethodDelete, "/v1/assets?key="+url.QueryEscape(key), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssets_UploadValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice", "free", 0)

	w := env.upload(token, "notes.txt", []byte("hello"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file", decode(t, w)["field"])

	w = env.upload(token, "fake.png", []byte("<html>not an image</html>"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file", decode(t, w)["field"])

	assert.Empty(t, env.objects.uploaded)
}
