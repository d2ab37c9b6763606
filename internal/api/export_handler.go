package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"folioforge/internal/api/middleware"
	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/docx"
	"folioforge/internal/export"
	"folioforge/internal/pdf"
	"folioforge/internal/render"
	"folioforge/internal/section"
	"folioforge/internal/storage"
	"folioforge/internal/tasks"
	"folioforge/internal/worker"
)

// TaskEnqueuer 是 asynq.Client 的入队能力。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportObjects 访问对象存储中已生成的导出文件。
type ExportObjects interface {
	GeneratePresignedURLWithParams(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error)
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectMeta, error)
}

// ExportHandler 负责预览、同步导出与后台导出。
type ExportHandler struct {
	store   *documents.Store
	service *export.Service
	queue   TaskEnqueuer
	links   ExportObjects
	linkTTL time.Duration
}

// NewExportHandler 构造 ExportHandler。queue 与 links 为空时对应的后台接口返回 503。
func NewExportHandler(store *documents.Store, service *export.Service, queue TaskEnqueuer, links ExportObjects, linkTTL time.Duration) *ExportHandler {
	if linkTTL <= 0 {
		linkTTL = 5 * time.Minute
	}
	return &ExportHandler{store: store, service: service, queue: queue, links: links, linkTTL: linkTTL}
}

// exportRequest 是 /preview 与 /export 共用的请求体。
// resumeId 指向已保存的文档；resumeData 直接携带未保存的文档。其余字段覆盖文档设置。
type exportRequest struct {
	ResumeID       uint              `json:"resumeId"`
	ResumeData     *render.Document  `json:"resumeData"`
	Format         string            `json:"format"`
	Template       string            `json:"template"`
	ThemeColor     string            `json:"themeColor"`
	Font           string            `json:"font"`
	Sections       []section.Section `json:"sections"`
	HiddenSections []section.Type    `json:"hiddenSections"`
	SectionOrder   []section.Type    `json:"sectionOrder"`
}

// Preview 返回与导出完全一致的 HTML。
func (h *ExportHandler) Preview(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	req, ok := bindExportRequest(c)
	if !ok {
		return
	}
	doc, ok := h.documentFor(c, userID, req)
	if !ok {
		return
	}

	html, err := h.service.Preview(c.Request.Context(), userID, doc)
	if err != nil {
		requestLogger(c).Error("render preview failed", slog.Any("error", err))
		Internal(c, "failed to render preview")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Export 同步导出 PDF 或 DOCX 并以附件形式返回。水印由服务端按套餐决定。
func (h *ExportHandler) Export(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	req, ok := bindExportRequest(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		Invalid(c, "format", "format must be pdf or docx")
		return
	}
	doc, ok := h.documentFor(c, userID, req)
	if !ok {
		return
	}

	logger := requestLogger(c).With(slog.String("format", string(format)))
	res, err := h.service.ExportData(c.Request.Context(), userID, doc, format)
	if err != nil {
		switch {
		case errors.Is(err, export.ErrUserNotFound):
			Unauthorized(c)
		case errors.Is(err, pdf.ErrBrowser):
			logger.Error("pdf renderer failed", slog.Any("error", err))
			Internal(c, "export failed")
		case errors.Is(err, docx.ErrBuild):
			logger.Error("docx build failed", slog.Any("error", err))
			Internal(c, "export failed")
		default:
			logger.Error("export failed", slog.Any("error", err))
			Internal(c, "export failed")
		}
		return
	}

	logger.Info("export completed", slog.String("template", res.TemplateID), slog.Int("bytes", len(res.Data)))
	c.Header("Content-Disposition", contentDisposition(res.Filename))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

type enqueueExportRequest struct {
	Format string `json:"format"`
}

// EnqueueExport 将文档导出任务入队并立即返回 202，结果通过 WebSocket 推送。
func (h *ExportHandler) EnqueueExport(c *gin.Context) {
	if h.queue == nil {
		Error(c, http.StatusServiceUnavailable, "background export unavailable")
		return
	}
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}

	var req enqueueExportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Invalid(c, "format", err.Error())
			return
		}
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		Invalid(c, "format", "format must be pdf or docx")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c).With(slog.Uint64("document_id", uint64(doc.ID)))

	task, err := tasks.NewExportTask(tasks.ExportPayload{
		DocumentID:    doc.ID,
		UserID:        doc.UserID,
		Format:        string(format),
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		logger.Error("create export task failed", slog.Any("error", err))
		Internal(c, "failed to create task")
		return
	}

	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		logger.Error("enqueue export task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue export")
		return
	}
	if err := h.store.SetStatus(ctx, doc.ID, database.StatusExporting, ""); err != nil {
		logger.Warn("mark document exporting failed", slog.Any("error", err))
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "export request accepted",
		"task_id": info.ID,
	})
}

// DownloadLink 返回最近一次后台导出的预签名下载链接。
func (h *ExportHandler) DownloadLink(c *gin.Context) {
	if h.links == nil {
		Error(c, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}
	if doc.LastExportKey == "" {
		Conflict(c, "export not ready")
		return
	}

	format := export.FormatPDF
	if strings.HasSuffix(doc.LastExportKey, export.FormatDOCX.Extension()) {
		format = export.FormatDOCX
	}
	params := map[string]string{
		"response-content-disposition": contentDisposition(export.Filename(doc.Title, format)),
		"response-content-type":        format.MIME(),
	}
	signedURL, err := h.links.GeneratePresignedURLWithParams(c.Request.Context(), doc.LastExportKey, h.linkTTL, params)
	if err != nil {
		requestLogger(c).Error("generate download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": signedURL, "expires_in": int(h.linkTTL.Seconds())})
}

const maxExportHistory = 20

// ListExports 列出文档最近生成的导出文件，按生成时间倒序。
func (h *ExportHandler) ListExports(c *gin.Context) {
	if h.links == nil {
		Error(c, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}

	objects, err := h.links.ListObjects(c.Request.Context(), worker.ExportPrefix(doc.UserID, doc.ID))
	if err != nil {
		requestLogger(c).Error("list exports failed", slog.Any("error", err))
		Internal(c, "failed to list exports")
		return
	}
	// 同一时刻写入的对象按键（UUIDv7）倒序
	slices.SortFunc(objects, func(a, b storage.ObjectMeta) int {
		if c := b.LastModified.Compare(a.LastModified); c != 0 {
			return c
		}
		return strings.Compare(b.Key, a.Key)
	})
	if len(objects) > maxExportHistory {
		objects = objects[:maxExportHistory]
	}

	items := make([]gin.H, 0, len(objects))
	for _, obj := range objects {
		format := export.FormatPDF
		if strings.HasSuffix(obj.Key, export.FormatDOCX.Extension()) {
			format = export.FormatDOCX
		}
		items = append(items, gin.H{
			"object_key": obj.Key,
			"format":     format,
			"size":       obj.Size,
			"created_at": obj.LastModified,
			"is_latest":  obj.Key == doc.LastExportKey,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func bindExportRequest(c *gin.Context) (exportRequest, bool) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return req, false
	}
	if req.ResumeID == 0 && req.ResumeData == nil {
		Invalid(c, "resumeId", "resumeId or resumeData is required")
		return req, false
	}
	return req, true
}

// documentFor 组装渲染用的文档：先取已保存的文档或请求体数据，再叠加请求中的覆盖项。
func (h *ExportHandler) documentFor(c *gin.Context, userID uint, req exportRequest) (render.Document, bool) {
	var doc render.Document
	if req.ResumeID != 0 {
		saved, err := h.store.Get(c.Request.Context(), userID, req.ResumeID)
		if err != nil {
			writeDocumentError(c, requestLogger(c), err)
			return doc, false
		}
		doc, err = h.store.RenderDocument(c.Request.Context(), saved)
		if err != nil {
			writeDocumentError(c, requestLogger(c), err)
			return doc, false
		}
	} else {
		doc = *req.ResumeData
		doc.Sections = append([]section.Section(nil), req.ResumeData.Sections...)
	}

	if len(req.Sections) > 0 {
		doc.Sections = req.Sections
	}
	if req.Template != "" {
		doc.Settings.TemplateID = req.Template
	}
	if req.ThemeColor != "" {
		doc.Settings.ThemeColor = req.ThemeColor
	}
	if req.Font != "" {
		doc.Settings.Font = req.Font
	}
	if req.HiddenSections != nil {
		doc.Settings.HiddenSections = req.HiddenSections
	}
	if req.SectionOrder != nil {
		doc.Settings.SectionOrder = req.SectionOrder
	}
	return doc, true
}

func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(filename, `"`, ""))
}
