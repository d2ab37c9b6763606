package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"folioforge/internal/ats"
	"folioforge/internal/credits"
	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/errcode"
	"folioforge/internal/prefs"
	"folioforge/internal/section"
)

// ATSHandler 负责关键词差距分析与建议的自动应用。
type ATSHandler struct {
	store    *documents.Store
	analyzer *ats.Analyzer
}

// NewATSHandler 构造 ATSHandler。analyzer 为空表示未配置 AI，分析接口返回 503。
func NewATSHandler(store *documents.Store, analyzer *ats.Analyzer) *ATSHandler {
	return &ATSHandler{store: store, analyzer: analyzer}
}

type analyzeRequest struct {
	ResumeID       uint   `json:"resumeId"`
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

// Analyze 对比简历与职位描述。先检查余额，成功后扣减积分。
func (h *ATSHandler) Analyze(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	if h.analyzer == nil {
		Error(c, http.StatusServiceUnavailable, "ai features are not configured")
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	resumeText := req.ResumeText
	if req.ResumeID != 0 {
		doc, err := h.store.Get(c.Request.Context(), userID, req.ResumeID)
		if err != nil {
			writeDocumentError(c, requestLogger(c), err)
			return
		}
		rd, err := h.store.RenderDocument(c.Request.Context(), doc)
		if err != nil {
			writeDocumentError(c, requestLogger(c), err)
			return
		}
		resumeText = section.PlainText(section.ExtractAll(prefs.Resolve(rd.Sections, rd.Settings.Normalize())))
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), userID, resumeText, req.JobDescription)
	if err != nil {
		switch {
		case errors.Is(err, ats.ErrEmptyInput):
			field := "jobDescription"
			if resumeText == "" {
				field = "resumeText"
			}
			Invalid(c, field, err.Error())
		case errors.Is(err, credits.ErrInsufficientCredits):
			ForbiddenReason(c, errcode.ReasonInsufficientCredits, "not enough credits for ats analysis")
		case errors.Is(err, credits.ErrUserNotFound):
			Unauthorized(c)
		case errors.Is(err, ats.ErrAIFailed):
			requestLogger(c).Error("ai service failed", slog.Any("error", err))
			Internal(c, "analysis failed, no credits were charged")
		default:
			requestLogger(c).Error("ats analysis failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

type applyRequest struct {
	Suggestions []ats.Suggestion `json:"suggestions"`
}

// Apply 把 AI 建议按 section_type 合并到文档章节中。
func (h *ATSHandler) Apply(c *gin.Context) {
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "suggestions", err.Error())
		return
	}
	if len(req.Suggestions) == 0 {
		Invalid(c, "suggestions", "at least one suggestion is required")
		return
	}

	ctx := c.Request.Context()
	rows, err := h.store.Sections(ctx, doc.ID)
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	changes := ats.AutoApply(database.ToSections(rows), req.Suggestions)
	updated := make([]section.Section, 0, len(changes))
	created := 0
	for _, ch := range changes {
		updated = append(updated, ch.Section)
		if ch.Created {
			created++
		}
	}
	if err := h.store.ApplyChanges(ctx, doc.ID, updated); err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}

	requestLogger(c).Info("ats suggestions applied",
		slog.Uint64("document_id", uint64(doc.ID)),
		slog.Int("changed", len(changes)),
		slog.Int("created", created),
	)
	c.JSON(http.StatusOK, gin.H{"changed": len(changes), "created": created})
}
