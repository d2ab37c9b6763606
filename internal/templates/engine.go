package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed tmpl/*.tmpl
var files embed.FS

var shared = []string{
	"tmpl/page.html.tmpl",
	"tmpl/sections.html.tmpl",
	"tmpl/styles.css.tmpl",
}

// Engine 持有每个版式家族解析好的模板集，解析后只读，可并发使用。
type Engine struct {
	layouts map[Layout]*template.Template
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"join": strings.Join,
	}
}

// NewEngine 解析内嵌模板文件。
func NewEngine() (*Engine, error) {
	base, err := template.New("folio").Funcs(funcMap()).ParseFS(files, shared...)
	if err != nil {
		return nil, fmt.Errorf("parse shared templates: %w", err)
	}

	e := &Engine{layouts: make(map[Layout]*template.Template, len(Layouts))}
	for _, l := range Layouts {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone templates for %s: %w", l, err)
		}
		if _, err := t.ParseFS(files, "tmpl/layout_"+string(l)+".html.tmpl"); err != nil {
			return nil, fmt.Errorf("parse layout %s: %w", l, err)
		}
		e.layouts[l] = t
	}
	return e, nil
}

// Execute 渲染完整 HTML 文档。
func (e *Engine) Execute(v View) (string, error) {
	t, ok := e.layouts[v.Template.Layout]
	if !ok {
		return "", fmt.Errorf("unknown layout %q for template %q", v.Template.Layout, v.Template.ID)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "page", v); err != nil {
		return "", fmt.Errorf("execute template %q: %w", v.Template.ID, err)
	}
	return buf.String(), nil
}
