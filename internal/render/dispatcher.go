package render

import (
	"fmt"
	"strings"

	"folioforge/internal/prefs"
	"folioforge/internal/section"
	"folioforge/internal/templates"
)

const (
	KindResume    = "resume"
	KindPortfolio = "portfolio"
)

// Document 是渲染所需的完整文档状态。
type Document struct {
	Title    string            `json:"title"`
	Kind     string            `json:"kind"`
	Sections []section.Section `json:"sections"`
	Settings prefs.Settings    `json:"settings"`
}

// Output 是一次渲染的结果。
// Sections 是实际参与渲染的章节（已排序、过滤），DOCX 导出复用它以保持一致。
type Output struct {
	HTML     string
	Template templates.Descriptor
	Settings prefs.Settings
	Sections []section.Section
}

// Dispatcher 按模板 ID 选择模板并执行。
type Dispatcher struct {
	engine *templates.Engine
}

// NewDispatcher 解析全部模板。
func NewDispatcher() (*Dispatcher, error) {
	engine, err := templates.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("init template engine: %w", err)
	}
	return &Dispatcher{engine: engine}, nil
}

// Render 解析章节顺序与可见性后渲染 HTML。预览与导出共用此入口。
func (d *Dispatcher) Render(doc Document) (Output, error) {
	settings := doc.Settings.Normalize()
	descriptor := templates.Lookup(settings.TemplateID)
	resolved := prefs.Resolve(doc.Sections, settings)

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Untitled"
	}
	kind := doc.Kind
	if kind != KindPortfolio {
		kind = KindResume
	}

	view := templates.NewView(title, kind, descriptor, settings, resolved)
	html, err := d.engine.Execute(view)
	if err != nil {
		return Output{}, err
	}
	return Output{
		HTML:     html,
		Template: descriptor,
		Settings: settings,
		Sections: resolved,
	}, nil
}
