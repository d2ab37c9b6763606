package prefs

import (
	"sort"

	"folioforge/internal/section"
)

// Resolve 根据保存的偏好计算最终渲染的章节列表。
// 预览、同步导出、异步导出与命令行渲染都必须经过这里，保证所见即所得：
//  1. 按 section_order 中的位置稳定排序，未列出的类型排在其后并保持原相对顺序；
//  2. 去掉 hidden_sections 中的类型以及 is_visible=false 的章节。
//
// 输入切片不会被修改。
func Resolve(sections []section.Section, settings Settings) []section.Section {
	settings = settings.Normalize()

	rank := make(map[section.Type]int, len(settings.SectionOrder))
	for i, t := range settings.SectionOrder {
		rank[t] = i
	}
	unordered := len(settings.SectionOrder)

	type keyed struct {
		s    section.Section
		rank int
	}
	kept := make([]keyed, 0, len(sections))
	for _, s := range sections {
		if settings.Hidden(s.Type) || !s.Visible() {
			continue
		}
		r, ok := rank[s.Type]
		if !ok {
			r = unordered
		}
		kept = append(kept, keyed{s: s, rank: r})
	}

	// 同 rank 保持输入顺序；存储层读出时已按 order_index 排好
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].rank < kept[j].rank
	})

	out := make([]section.Section, 0, len(kept))
	for _, k := range kept {
		out = append(out, k.s)
	}
	return out
}
