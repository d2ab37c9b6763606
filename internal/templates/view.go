package templates

import (
	"fmt"
	"html/template"
	"strings"

	"folioforge/internal/prefs"
	"folioforge/internal/section"
)

// sideTypes 在侧栏版式中放进侧栏的章节。
var sideTypes = map[section.Type]bool{
	section.Skills:         true,
	section.Languages:      true,
	section.Certifications: true,
}

// View 是模板执行时的数据，所有字段在构造后只读。
type View struct {
	Title       string
	Kind        string
	Template    Descriptor
	RootCSS     template.CSS
	Classes     string
	HasPersonal bool
	Personal    section.Personal
	Photo       template.URL
	Sections    []section.Content
	Main        []section.Content
	Side        []section.Content
}

// NewView 由已解析（排序、过滤后）的章节构造视图。
// 空章节在这里被丢弃，模板无需判断。
func NewView(title, kind string, d Descriptor, settings prefs.Settings, resolved []section.Section) View {
	settings = settings.Normalize()
	v := View{
		Title:    title,
		Kind:     kind,
		Template: d,
		RootCSS:  rootCSS(settings),
		Classes:  d.Style.Classes(),
	}

	for _, c := range section.ExtractAll(resolved) {
		if c.Empty() {
			continue
		}
		if c.Type == section.PersonalInfo {
			if !v.HasPersonal {
				v.HasPersonal = true
				v.Personal = c.Personal
				if d.Style.Photo {
					v.Photo = safePhoto(c.Personal.Photo)
				}
			}
			continue
		}
		v.Sections = append(v.Sections, c)
		if sideTypes[c.Type] {
			v.Side = append(v.Side, c)
		} else {
			v.Main = append(v.Main, c)
		}
	}
	return v
}

// rootCSS 只拼接经过 Normalize 校验的颜色与白名单字体。
func rootCSS(s prefs.Settings) template.CSS {
	return template.CSS(fmt.Sprintf(
		":root{--primary:%s;--secondary:%s;--font:%s;}",
		s.ThemeColor, s.SecondaryColor, s.FontStack(),
	))
}

// safePhoto 只接受内联图片或 https 地址。
func safePhoto(raw string) template.URL {
	switch {
	case strings.HasPrefix(raw, "data:image/"):
		return template.URL(raw)
	case strings.HasPrefix(raw, "https://"):
		return template.URL(raw)
	}
	return ""
}
