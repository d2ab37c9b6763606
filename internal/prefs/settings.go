package prefs

import (
	"regexp"
	"slices"
	"strings"

	"folioforge/internal/section"
)

const (
	DefaultTemplateID     = "modern"
	DefaultThemeColor     = "#2563EB"
	DefaultSecondaryColor = "#1F2937"
	DefaultFont           = "Inter"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// fontStacks 是允许使用的字体及其回退栈，未知字体回落到默认字体。
var fontStacks = map[string]string{
	"Inter":            `"Inter", "Helvetica Neue", Arial, sans-serif`,
	"Roboto":           `"Roboto", "Helvetica Neue", Arial, sans-serif`,
	"Open Sans":        `"Open Sans", "Helvetica Neue", Arial, sans-serif`,
	"Lato":             `"Lato", "Helvetica Neue", Arial, sans-serif`,
	"Montserrat":       `"Montserrat", "Helvetica Neue", Arial, sans-serif`,
	"Poppins":          `"Poppins", "Helvetica Neue", Arial, sans-serif`,
	"Source Sans Pro":  `"Source Sans Pro", "Helvetica Neue", Arial, sans-serif`,
	"Arial":            `Arial, Helvetica, sans-serif`,
	"Calibri":          `Calibri, Carlito, Arial, sans-serif`,
	"Georgia":          `Georgia, "Times New Roman", serif`,
	"Merriweather":     `"Merriweather", Georgia, serif`,
	"Playfair Display": `"Playfair Display", Georgia, serif`,
	"Times New Roman":  `"Times New Roman", Times, serif`,
	"Garamond":         `"EB Garamond", Garamond, Georgia, serif`,
}

// Settings 是文档的设计与章节偏好，每个文档一份。
type Settings struct {
	TemplateID     string         `json:"template_id"`
	ThemeColor     string         `json:"theme_color"`
	SecondaryColor string         `json:"secondary_color"`
	Font           string         `json:"font"`
	HiddenSections []section.Type `json:"hidden_sections"`
	SectionOrder   []section.Type `json:"section_order"`
}

// Default 返回新文档的默认设置。
func Default() Settings {
	return Settings{
		TemplateID:     DefaultTemplateID,
		ThemeColor:     DefaultThemeColor,
		SecondaryColor: DefaultSecondaryColor,
		Font:           DefaultFont,
	}
}

// Normalize 填充缺省值并丢弃非法颜色、字体与章节类型，不修改接收者。
func (s Settings) Normalize() Settings {
	out := Settings{
		TemplateID:     strings.ToLower(strings.TrimSpace(s.TemplateID)),
		ThemeColor:     strings.TrimSpace(s.ThemeColor),
		SecondaryColor: strings.TrimSpace(s.SecondaryColor),
		Font:           strings.TrimSpace(s.Font),
		HiddenSections: validTypes(s.HiddenSections),
		SectionOrder:   validTypes(s.SectionOrder),
	}
	if out.TemplateID == "" {
		out.TemplateID = DefaultTemplateID
	}
	if !hexColor.MatchString(out.ThemeColor) {
		out.ThemeColor = DefaultThemeColor
	}
	if !hexColor.MatchString(out.SecondaryColor) {
		out.SecondaryColor = DefaultSecondaryColor
	}
	if _, ok := fontStacks[out.Font]; !ok {
		out.Font = DefaultFont
	}
	return out
}

// FontStack 返回 CSS font-family 值。
func (s Settings) FontStack() string {
	if stack, ok := fontStacks[s.Font]; ok {
		return stack
	}
	return fontStacks[DefaultFont]
}

// Fonts 列出可选字体名。
func Fonts() []string {
	names := make([]string, 0, len(fontStacks))
	for name := range fontStacks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Hidden 判断某类型是否被隐藏。
func (s Settings) Hidden(t section.Type) bool {
	for _, h := range s.HiddenSections {
		if h == t {
			return true
		}
	}
	return false
}

func validTypes(in []section.Type) []section.Type {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[section.Type]struct{}, len(in))
	out := make([]section.Type, 0, len(in))
	for _, raw := range in {
		t, ok := section.ParseType(string(raw))
		if !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
