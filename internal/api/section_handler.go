package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/section"
)

// SectionHandler 负责单个章节的读写。章节按 section_type 寻址，同类型多条时取第一条。
type SectionHandler struct {
	store *documents.Store
}

// NewSectionHandler 构造 SectionHandler。
func NewSectionHandler(store *documents.Store) *SectionHandler {
	return &SectionHandler{store: store}
}

type putSectionRequest struct {
	SectionData json.RawMessage `json:"section_data"`
	OrderIndex  *int            `json:"order_index"`
	IsVisible   *bool           `json:"is_visible"`
}

// ListSections 返回文档的全部章节。
func (h *SectionHandler) ListSections(c *gin.Context) {
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}
	rows, err := h.store.Sections(c.Request.Context(), doc.ID)
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}

	var buf bytes.Buffer
	buf.WriteString(`{"items":[`)
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeSectionJSON(&buf, row)
	}
	buf.WriteString(`]}`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}

// GetSection 返回该类型的第一条章节。
func (h *SectionHandler) GetSection(c *gin.Context) {
	t, ok := sectionTypeParam(c)
	if !ok {
		return
	}
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}
	row, err := h.store.Section(c.Request.Context(), doc.ID, t)
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	respondSection(c, http.StatusOK, row)
}

// PutSection 写入该类型的第一条章节，不存在时创建。section_data 原样保存。
func (h *SectionHandler) PutSection(c *gin.Context) {
	t, ok := sectionTypeParam(c)
	if !ok {
		return
	}
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}

	var req putSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "section_data", err.Error())
		return
	}
	if len(bytes.TrimSpace(req.SectionData)) == 0 {
		Invalid(c, "section_data", "section_data is required")
		return
	}
	if req.OrderIndex != nil && *req.OrderIndex < 0 {
		Invalid(c, "order_index", "order_index must not be negative")
		return
	}

	row, created, err := h.store.PutSection(c.Request.Context(), doc.ID, t, documents.SectionPatch{
		Data:       req.SectionData,
		OrderIndex: req.OrderIndex,
		IsVisible:  req.IsVisible,
	})
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondSection(c, status, row)
}

// CreateCustomSection 追加一条 custom 章节。
func (h *SectionHandler) CreateCustomSection(c *gin.Context) {
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}
	var req putSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "section_data", err.Error())
		return
	}
	row, err := h.store.CreateCustom(c.Request.Context(), doc.ID, req.SectionData)
	if err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	respondSection(c, http.StatusCreated, row)
}

// DeleteSection 删除该类型的第一条章节。
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	t, ok := sectionTypeParam(c)
	if !ok {
		return
	}
	doc, ok := loadOwnedDocument(c, h.store)
	if !ok {
		return
	}
	if err := h.store.DeleteSection(c.Request.Context(), doc.ID, t); err != nil {
		writeDocumentError(c, requestLogger(c), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sectionTypeParam(c *gin.Context) (section.Type, bool) {
	t, ok := section.ParseType(c.Param("type"))
	if !ok {
		Invalid(c, "section_type", "unknown section type")
		return "", false
	}
	return t, true
}

type sectionEnvelope struct {
	ID          uint   `json:"id"`
	SectionType string `json:"section_type"`
	OrderIndex  int    `json:"order_index"`
	IsVisible   bool   `json:"is_visible"`
}

// writeSectionJSON 输出章节，section_data 直接拼接存储的原始字节，保证读回与写入逐字节一致。
func writeSectionJSON(buf *bytes.Buffer, row database.Section) {
	head, _ := json.Marshal(sectionEnvelope{
		ID:          row.ID,
		SectionType: row.SectionType,
		OrderIndex:  row.OrderIndex,
		IsVisible:   row.Visible(),
	})
	buf.Write(head[:len(head)-1])
	buf.WriteString(`,"section_data":`)
	if len(row.SectionData) == 0 {
		buf.WriteString("null")
	} else {
		buf.Write(row.SectionData)
	}
	buf.WriteByte('}')
}

func respondSection(c *gin.Context, status int, row database.Section) {
	var buf bytes.Buffer
	writeSectionJSON(&buf, row)
	c.Data(status, "application/json; charset=utf-8", buf.Bytes())
}
