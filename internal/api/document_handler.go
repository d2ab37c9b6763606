package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/entitlement"
	"folioforge/internal/errcode"
	"folioforge/internal/prefs"
	"folioforge/internal/render"
	"folioforge/internal/section"
	"folioforge/internal/worker"
)

// EntitlementSource 按用户返回当前套餐权益。
type EntitlementSource interface {
	Entitlement(ctx context.Context, userID uint) (entitlement.Entitlement, error)
}

// exportCleaner 删除文档遗留的导出文件。
type exportCleaner interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// DocumentHandler 负责文档的增删查与设置读写。
type DocumentHandler struct {
	store        *documents.Store
	entitlements EntitlementSource
	exports      exportCleaner
}

// NewDocumentHandler 构造 DocumentHandler。exports 为空时删除文档不清理导出文件。
func NewDocumentHandler(store *documents.Store, entitlements EntitlementSource, exports exportCleaner) *DocumentHandler {
	return &DocumentHandler{store: store, entitlements: entitlements, exports: exports}
}

type createDocumentRequest struct {
	Title    string          `json:"title" binding:"max=255"`
	Kind     string          `json:"kind"`
	Settings *prefs.Settings `json:"settings"`
}

type documentListItem struct {
	ID         uint      `json:"id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	TemplateID string    `json:"template_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type documentResponse struct {
	ID        uint              `json:"id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Status    string            `json:"status"`
	Settings  prefs.Settings    `json:"settings"`
	Sections  []section.Section `json:"sections"`
	HasExport bool              `json:"has_export"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ListDocuments 返回当前用户的全部文档。
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	docs, err := h.store.List(c.Request.Context(), userID)
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}

	items := make([]documentListItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentListItem{
			ID:         d.ID,
			Kind:       d.Kind,
			Title:      d.Title,
			Status:     d.Status,
			TemplateID: d.Settings.Data().Normalize().TemplateID,
			UpdatedAt:  d.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateDocument 新建文档，超过套餐上限时返回 plan_limit_reached。
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "title", err.Error())
		return
	}
	kind := strings.TrimSpace(req.Kind)
	if kind != "" && kind != render.KindResume && kind != render.KindPortfolio {
		Invalid(c, "kind", "kind must be resume or portfolio")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c).With(slog.Uint64("user_id", uint64(userID)))

	ent, err := h.entitlements.Entitlement(ctx, userID)
	if err != nil {
		logger.Error("resolve entitlement failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	count, err := h.store.Count(ctx, userID)
	if err != nil {
		logger.Error("count documents failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if !ent.CanCreate(count) {
		ForbiddenReason(c, errcode.ReasonPlanLimitReached, "document limit reached for current plan")
		return
	}

	settings := prefs.Default()
	if req.Settings != nil {
		settings = *req.Settings
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}

	doc, err := h.store.Create(ctx, userID, kind, title, settings)
	if err != nil {
		writeDocumentError(c, logger, err)
		return
	}
	logger.Info("document created", slog.Uint64("document_id", uint64(doc.ID)))
	c.JSON(http.StatusCreated, newDocumentResponse(doc, nil))
}

// GetDocument 返回文档、设置与章节。
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	rows, err := h.store.Sections(c.Request.Context(), doc.ID)
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(doc, rows))
}

// DeleteDocument 删除文档及其章节。
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), doc); err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	if h.exports != nil && doc.LastExportKey != "" {
		// 文档已删除，清理失败只记录
		if err := h.exports.DeletePrefix(c.Request.Context(), worker.ExportPrefix(doc.UserID, doc.ID)); err != nil {
			requestLogger(c).Warn("delete document exports failed",
				slog.Uint64("document_id", uint64(doc.ID)),
				slog.Any("error", err),
			)
		}
	}
	c.Status(http.StatusNoContent)
}

// GetSettings 返回规范化后的文档设置。
func (h *DocumentHandler) GetSettings(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc.Settings.Data().Normalize())
}

// UpdateSettings 覆盖文档设置。非法颜色、字体与章节类型会被规范化丢弃。
func (h *DocumentHandler) UpdateSettings(c *gin.Context) {
	doc, ok := h.loadDocument(c)
	if !ok {
		return
	}
	var req prefs.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "settings", err.Error())
		return
	}
	if err := h.store.UpdateSettings(c.Request.Context(), &doc, req); err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, doc.Settings.Data())
}

// loadDocument 解析路径中的 id 并校验归属，失败时已写入响应。
func (h *DocumentHandler) loadDocument(c *gin.Context) (database.Document, bool) {
	return loadOwnedDocument(c, h.store)
}

func loadOwnedDocument(c *gin.Context, store *documents.Store) (database.Document, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return database.Document{}, false
	}
	docID, err := parseID(c.Param("id"))
	if err != nil {
		Invalid(c, "id", "invalid document id")
		return database.Document{}, false
	}
	doc, err := store.Get(c.Request.Context(), userID, docID)
	if err != nil {
		writeDocumentError(c, requestLogger(c).With(slog.Uint64("document_id", uint64(docID))), err)
		return database.Document{}, false
	}
	return doc, true
}

func newDocumentResponse(doc database.Document, rows []database.Section) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		Kind:      doc.Kind,
		Title:     doc.Title,
		Status:    doc.Status,
		Settings:  doc.Settings.Data().Normalize(),
		Sections:  database.ToSections(rows),
		HasExport: doc.LastExportKey != "",
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
