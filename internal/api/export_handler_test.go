package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/database"
	"folioforge/internal/export"
	"folioforge/internal/pdf"
	"folioforge/internal/tasks"
	"folioforge/internal/worker"
)

func seedResume(t *testing.T, env *testEnv, token string) (string, uint) {
	t.Helper()
	w := env.do(http.MethodPost, "/v1/documents", token, map[string]any{
		"title":    "Jane Doe CV",
		"settings": map[string]any{"template_id": "ats", "hidden_sections": []string{"skills"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := uint(decode(t, w)["id"].(float64))
	doc := fmt.Sprintf("/v1/documents/%d", id)

	for typ, data := range map[string]string{
		"personal_info": `{"fullName":"Jane Doe","email":"jane@example.com"}`,
		"summary":       `{"text":"X"}`,
		"experience":    `{"items":[{"company":"Acme","position":"Dev","startDate":"2020","endDate":"2022"}]}`,
		"skills":        `{"items":[{"name":"Go"}]}`,
	} {
		w := env.do(http.MethodPut, doc+"/sections/"+typ, token, `{"section_data": `+data+`}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	return doc, id
}

func TestExport_WatermarkFollowsPlan(t *testing.T) {
	env := newTestEnv(t)
	_, freeToken := env.user("free", "free", 0)
	_, proToken := env.user("pro", "pro", 0)
	_, freeDoc := seedResume(t, env, freeToken)
	_, proDoc := seedResume(t, env, proToken)

	w := env.do(http.MethodPost, "/v1/export", freeToken, map[string]any{"resumeId": freeDoc, "format": "pdf"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Jane_Doe_CV.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "%WATERMARK Made with FolioForge")

	// 客户端无法通过请求体关闭水印
	w = env.do(http.MethodPost, "/v1/export", freeToken, `{"resumeId": `+fmt.Sprint(freeDoc)+`, "watermark": false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "%WATERMARK")

	w = env.do(http.MethodPost, "/v1/export", proToken, map[string]any{"resumeId": proDoc, "format": "pdf"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "%WATERMARK")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-stub"))
}

func TestExport_Docx(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("free", "free", 0)
	_, id := seedResume(t, env, token)

	w := env.do(http.MethodPost, "/v1/export", token, map[string]any{"resumeId": id, "format": "docx"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Jane_Doe_CV.docx"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
	assert.Zero(t, env.stamper.calls)
}

func TestExport_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("free", "free", 0)
	_, other := env.user("other", "free", 0)
	_, id := seedResume(t, env, token)

	w := env.do(http.MethodPost, "/v1/export", token, map[string]any{"format": "pdf"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "resumeId", decode(t, w)["field"])

	w = env.do(http.MethodPost, "/v1/export", token, map[string]any{"resumeId": id, "format": "odt"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "format", decode(t, w)["field"])

	w = env.do(http.MethodPost, "/v1/export", other, map[string]any{"resumeId": id})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_owner", decode(t, w)["reason"])

	w = env.do(http.MethodPost, "/v1/export", "", map[string]any{"resumeId": id})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPreview_MatchesExportResolution(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("pro", "pro", 0)
	_, id := seedResume(t, env, token)

	w := env.do(http.MethodPost, "/v1/preview", token, map[string]any{"resumeId": id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	preview := w.Body.String()

	body := preview[strings.Index(preview, "<body"):]
	last := -1
	for _, want := range []string{"X", "Acme", "Dev", "2020", "2022"} {
		idx := strings.Index(body[last+1:], want)
		require.GreaterOrEqual(t, idx, 0, want)
		last += idx + 1
	}
	assert.NotContains(t, body, "Skills")

	w = env.do(http.MethodPost, "/v1/export", token, map[string]any{"resumeId": id})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-stub\n"+preview, w.Body.String())
}

func TestPreview_InlineDataWithOverrides(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice", "free", 0)

	w := env.do(http.MethodPost, "/v1/preview", token, `{
		"resumeData": {"title": "Draft", "sections": [
			{"section_type": "summary", "section_data": {"text": "Unsaved summary"}},
			{"section_type": "skills", "section_data": "Go, Rust"}
		]},
		"template": "minimal",
		"themeColor": "#FF0000"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Unsaved summary")
	assert.Contains(t, w.Body.String(), "#FF0000")
}

func TestEnqueueExportAndDownloadLink(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice", "free", 0)
	doc, id := seedResume(t, env, token)

	w := env.do(http.MethodGet, doc+"/exports/latest", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, doc+"/exports", token, map[string]any{"format": "docx"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, env.queue.tasks, 1)
	payload, err := tasks.ParseExportPayload(env.queue.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, id, payload.DocumentID)
	assert.Equal(t, "docx", payload.Format)
	assert.NotEmpty(t, payload.CorrelationID)

	var saved database.Document
	require.NoError(t, env.db.First(&saved, id).Error)
	assert.Equal(t, database.StatusExporting, saved.Status)

	require.NoError(t, env.store.SetStatus(t.Context(), id, database.StatusExported, "exports/1/1/export.docx"))
	w = env.do(http.MethodGet, doc+"/exports/latest", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w)["url"], "signed=1")
	assert.Equal(t, `attachment; filename="Jane_Doe_CV.docx"`, env.objects.params["response-content-disposition"])
}

func TestListExportsAndDeleteCleansUp(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.user("alice", "pro", 0)
	doc, id := seedResume(t, env, token)

	key := worker.ExportObjectKey(u.ID, id, export.FormatPDF)
	_, err := env.objects.UploadFile(t.Context(), key, strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	_, err = env.objects.UploadFile(t.Context(), "exports/999/1/other.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	require.NoError(t, err)
	require.NoError(t, env.store.SetStatus(t.Context(), id, database.StatusExported, key))

	w := env.do(http.MethodGet, doc+"/exports", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, key, item["object_key"])
	assert.Equal(t, "pdf", item["format"])
	assert.Equal(t, true, item["is_latest"])

	w = env.do(http.MethodDelete, doc, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{key}, env.objects.deleted)
	assert.Contains(t, env.objects.uploaded, "exports/999/1/other.pdf")
}

func TestListExports_KeepsNewestWhenHistoryOverflows(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.user("alice", "pro", 0)
	doc, id := seedResume(t, env, token)

	const total = maxExportHistory + 5
	keys := make([]string, 0, total)
	for i := 0; i < total; i++ {
		format := export.FormatPDF
		if i%2 == 1 {
			format = export.FormatDOCX
		}
		key := worker.ExportObjectKey(u.ID, id, format)
		_, err := env.objects.UploadFile(t.Context(), key, strings.NewReader("x"), 1, format.MIME())
		require.NoError(t, err)
		keys = append(keys, key)
	}
	latest := keys[total-1]
	require.NoError(t, env.store.SetStatus(t.Context(), id, database.StatusExported, latest))

	w := env.do(http.MethodGet, doc+"/exports", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, maxExportHistory)

	for i, raw := range items {
		item := raw.(map[string]any)
		assert.Equal(t, keys[total-1-i], item["object_key"], "item %d", i)
		assert.Equal(t, i == 0, item["is_latest"], "item %d", i)
	}
}

func TestExport_BrowserFailureIsInternalError(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("alice", "free", 0)
	_, id := seedResume(t, env, token)
	env.printer.err = fmt.Errorf("%w: launch chromium: not found", pdf.ErrBrowser)

	w := env.do(http.MethodPost, "/v1/export", token, map[string]any{"resumeId": id, "format": "pdf"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "export failed", decode(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "chromium")
	assert.Zero(t, env.stamper.calls)

	w = env.do(http.MethodPost, "/v1/export", token, map[string]any{"resumeId": id, "format": "docx"})
	assert.Equal(t, http.StatusOK, w.Code)
}
