package templates

import "strings"

// Category 是模板在模板库中的分组。
type Category string

const (
	CategoryATS      Category = "ATS"
	CategoryModern   Category = "MODERN"
	CategoryCreative Category = "CREATIVE"
)

// Layout 是模板的版式家族，决定章节如何排布。
type Layout string

const (
	LayoutSingle   Layout = "single"
	LayoutSidebar  Layout = "sidebar"
	LayoutGrid     Layout = "grid"
	LayoutTimeline Layout = "timeline"
)

// Layouts 列出全部版式家族。
var Layouts = []Layout{LayoutSingle, LayoutSidebar, LayoutGrid, LayoutTimeline}

// Style 是同一版式家族内区分模板的样式参数。
type Style struct {
	CenterHeader bool `json:"center_header"`
	Uppercase    bool `json:"uppercase"`
	Rule         bool `json:"rule"`
	Dense        bool `json:"dense"`
	Serif        bool `json:"serif"`
	SideRight    bool `json:"side_right"`
	AccentFill   bool `json:"accent_fill"`
	Photo        bool `json:"photo"`
}

// Descriptor 描述一个静态模板，构建期确定，运行期不可变。
type Descriptor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	ATSSafe  bool     `json:"is_ats_safe"`
	Layout   Layout   `json:"layout"`
	Style    Style    `json:"style"`
}

// FallbackID 是未知模板 ID 的回退模板。
const FallbackID = "modern"

var registry = []Descriptor{
	{ID: "ats", Name: "ATS Classic", Category: CategoryATS, ATSSafe: true, Layout: LayoutSingle, Style: Style{Uppercase: true, Rule: true}},
	{ID: "classic", Name: "Classic", Category: CategoryATS, ATSSafe: true, Layout: LayoutSingle, Style: Style{CenterHeader: true, Rule: true, Serif: true}},
	{ID: "minimal", Name: "Minimal", Category: CategoryATS, ATSSafe: true, Layout: LayoutSingle},
	{ID: "professional", Name: "Professional", Category: CategoryATS, ATSSafe: true, Layout: LayoutSingle, Style: Style{Rule: true}},
	{ID: "compact", Name: "Compact", Category: CategoryATS, ATSSafe: true, Layout: LayoutSingle, Style: Style{Dense: true, Uppercase: true}},
	{ID: "academic", Name: "Academic", Category: CategoryATS, ATSSafe: true, Layout: LayoutSingle, Style: Style{CenterHeader: true, Serif: true}},
	{ID: "executive", Name: "Executive", Category: CategoryModern, ATSSafe: true, Layout: LayoutSingle, Style: Style{CenterHeader: true, Uppercase: true, AccentFill: true}},
	{ID: "corporate", Name: "Corporate", Category: CategoryModern, ATSSafe: true, Layout: LayoutSingle, Style: Style{AccentFill: true, Rule: true}},
	{ID: "modern", Name: "Modern", Category: CategoryModern, Layout: LayoutSidebar, Style: Style{AccentFill: true, Photo: true}},
	{ID: "elegant", Name: "Elegant", Category: CategoryModern, Layout: LayoutSidebar, Style: Style{SideRight: true, Serif: true, Photo: true}},
	{ID: "tech", Name: "Tech", Category: CategoryModern, Layout: LayoutSidebar, Style: Style{Dense: true, Uppercase: true}},
	{ID: "bold", Name: "Bold", Category: CategoryCreative, Layout: LayoutSidebar, Style: Style{AccentFill: true, Uppercase: true, Photo: true}},
	{ID: "creative", Name: "Creative", Category: CategoryCreative, Layout: LayoutSidebar, Style: Style{SideRight: true, AccentFill: true, Photo: true}},
	{ID: "grid", Name: "Grid", Category: CategoryCreative, Layout: LayoutGrid, Style: Style{Rule: true}},
	{ID: "portfolio", Name: "Portfolio", Category: CategoryCreative, Layout: LayoutGrid, Style: Style{AccentFill: true, Photo: true}},
	{ID: "designer", Name: "Designer", Category: CategoryCreative, Layout: LayoutGrid, Style: Style{Uppercase: true, Photo: true}},
	{ID: "studio", Name: "Studio", Category: CategoryCreative, Layout: LayoutGrid, Style: Style{CenterHeader: true, Serif: true}},
	{ID: "timeline", Name: "Timeline", Category: CategoryModern, Layout: LayoutTimeline, Style: Style{Rule: true}},
	{ID: "chronicle", Name: "Chronicle", Category: CategoryModern, Layout: LayoutTimeline, Style: Style{Serif: true, CenterHeader: true}},
	{ID: "journey", Name: "Journey", Category: CategoryCreative, Layout: LayoutTimeline, Style: Style{AccentFill: true, Uppercase: true, Photo: true}},
}

var byID = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(registry))
	for _, d := range registry {
		m[d.ID] = d
	}
	return m
}()

// All 返回模板库副本，顺序固定。
func All() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Get 精确查找模板。
func Get(id string) (Descriptor, bool) {
	d, ok := byID[strings.ToLower(strings.TrimSpace(id))]
	return d, ok
}

// Lookup 查找模板，找不到时回退到 modern。
func Lookup(id string) Descriptor {
	if d, ok := Get(id); ok {
		return d
	}
	return byID[FallbackID]
}

// Classes 返回挂在 <body> 上的样式类。
func (s Style) Classes() string {
	var classes []string
	add := func(on bool, name string) {
		if on {
			classes = append(classes, name)
		}
	}
	add(s.CenterHeader, "hdr-center")
	add(s.Uppercase, "caps")
	add(s.Rule, "rule")
	add(s.Dense, "dense")
	add(s.Serif, "serif")
	add(s.SideRight, "side-right")
	add(s.AccentFill, "accent-fill")
	return strings.Join(classes, " ")
}
