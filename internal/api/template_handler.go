package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"folioforge/internal/prefs"
	"folioforge/internal/templates"
)

// TemplateHandler 暴露静态模板库与可选字体。
type TemplateHandler struct{}

// NewTemplateHandler 构造 TemplateHandler。
func NewTemplateHandler() *TemplateHandler {
	return &TemplateHandler{}
}

// ListTemplates 返回模板库，可按 category 过滤（ATS、MODERN、CREATIVE）。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	category := strings.ToUpper(strings.TrimSpace(c.Query("category")))
	all := templates.All()
	items := make([]templates.Descriptor, 0, len(all))
	for _, d := range all {
		if category != "" && string(d.Category) != category {
			continue
		}
		items = append(items, d)
	}
	c.JSON(http.StatusOK, gin.H{
		"items":   items,
		"default": templates.FallbackID,
		"fonts":   prefs.Fonts(),
		"layouts": templates.Layouts,
	})
}

// GetTemplate 返回单个模板描述。
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	d, ok := templates.Get(c.Param("id"))
	if !ok {
		NotFound(c, "template not found")
		return
	}
	c.JSON(http.StatusOK, d)
}
