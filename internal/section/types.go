package section

import (
	"encoding/json"
	"strings"
)

// Type 表示章节类型。
type Type string

const (
	PersonalInfo   Type = "personal_info"
	Summary        Type = "summary"
	Experience     Type = "experience"
	Education      Type = "education"
	Skills         Type = "skills"
	Projects       Type = "projects"
	Certifications Type = "certifications"
	Languages      Type = "languages"
	Declaration    Type = "declaration"
	Custom         Type = "custom"
)

// AllTypes 按默认展示顺序列出全部章节类型。
var AllTypes = []Type{
	PersonalInfo,
	Summary,
	Experience,
	Education,
	Skills,
	Projects,
	Certifications,
	Languages,
	Declaration,
	Custom,
}

var defaultHeadings = map[Type]string{
	Summary:        "Summary",
	Experience:     "Experience",
	Education:      "Education",
	Skills:         "Skills",
	Projects:       "Projects",
	Certifications: "Certifications",
	Languages:      "Languages",
	Declaration:    "Declaration",
	Custom:         "Additional Information",
}

// ParseType 解析章节类型，大小写与首尾空白不敏感。
func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// Valid 判断是否为已知类型。
func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Unique 返回该类型在同一文档中是否唯一（custom 可重复）。
func (t Type) Unique() bool {
	return t.Valid() && t != Custom
}

// DefaultHeading 返回章节默认标题；personal_info 没有标题。
func (t Type) DefaultHeading() string {
	return defaultHeadings[t]
}

// Section 是与模板无关的章节数据。
// Data 保留原始 JSON，形状由 Type 决定且可能是旧格式，读取统一走 Extract。
type Section struct {
	ID         uint            `json:"id,omitempty"`
	Type       Type            `json:"section_type"`
	Data       json.RawMessage `json:"section_data"`
	OrderIndex int             `json:"order_index"`
	IsVisible  *bool           `json:"is_visible,omitempty"`
}

// Visible 缺省视为可见。
func (s Section) Visible() bool {
	return s.IsVisible == nil || *s.IsVisible
}

// First 返回列表中第一个指定类型的章节。
func First(sections []Section, t Type) (Section, bool) {
	for _, s := range sections {
		if s.Type == t {
			return s, true
		}
	}
	return Section{}, false
}

// Bool 返回指向 v 的指针，便于构造 IsVisible。
func Bool(v bool) *bool {
	return &v
}
