package ats

import (
	"encoding/json"

	"folioforge/internal/section"
)

// Suggestion 是 AI 建议对某类章节覆盖的字段。
type Suggestion struct {
	SectionType string          `json:"section_type"`
	Data        json.RawMessage `json:"data"`
}

// Change 是自动应用产生的一条章节变更。ID 为 0 表示需要新建。
type Change struct {
	Section section.Section
	Created bool
}

// AutoApply 按 section_type 把建议浅合并进已有章节。
// 同类型有多条时只改第一条；不存在时新建并排在末尾。未涉及的章节不出现在结果中。
func AutoApply(existing []section.Section, suggestions []Suggestion) []Change {
	var changes []Change
	index := map[section.Type]int{}
	nextOrder := 0
	for _, s := range existing {
		if s.OrderIndex >= nextOrder {
			nextOrder = s.OrderIndex + 1
		}
	}

	for _, sug := range suggestions {
		typ, ok := section.ParseType(sug.SectionType)
		if !ok {
			continue
		}
		patch, ok := asObject(sug.Data)
		if !ok {
			continue
		}

		if i, seen := index[typ]; seen {
			merged := merge(changes[i].Section.Data, patch)
			changes[i].Section.Data = merged
			continue
		}

		if target, found := firstOf(existing, typ); found {
			target.Data = merge(target.Data, patch)
			changes = append(changes, Change{Section: target})
		} else {
			data, _ := json.Marshal(patch)
			changes = append(changes, Change{
				Section: section.Section{Type: typ, Data: data, OrderIndex: nextOrder, IsVisible: section.Bool(true)},
				Created: true,
			})
			nextOrder++
		}
		index[typ] = len(changes) - 1
	}
	return changes
}

func firstOf(sections []section.Section, t section.Type) (section.Section, bool) {
	for _, s := range sections {
		if s.Type == t {
			s.Data = append(json.RawMessage(nil), s.Data...)
			return s, true
		}
	}
	return section.Section{}, false
}

// merge 用 patch 的顶层键覆盖 base；base 不是对象时直接被替换。
func merge(base json.RawMessage, patch map[string]json.RawMessage) json.RawMessage {
	out, ok := asObject(base)
	if !ok {
		out = map[string]json.RawMessage{}
	}
	for k, v := range patch {
		out[k] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return base
	}
	return data
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil || m == nil {
		return nil, false
	}
	return m, true
}
