package entitlement

import "strings"

// Plan 是用户套餐。
type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanLifetime Plan = "lifetime"
)

// WatermarkText 是免费套餐导出时叠加的文字。
const WatermarkText = "Made with FolioForge"

// Entitlement 是套餐对应的权益。
type Entitlement struct {
	Plan         Plan   `json:"plan"`
	Watermark    bool   `json:"watermark"`
	MaxDocuments int    `json:"max_documents"` // 0 表示不限
	Text         string `json:"-"`
}

// ParsePlan 解析套餐名，未知值视为免费套餐。
func ParsePlan(raw string) Plan {
	switch p := Plan(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlanPro, PlanLifetime:
		return p
	default:
		return PlanFree
	}
}

// Valid 判断是否为已知套餐。
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro || p == PlanLifetime
}

// Paid 判断是否为付费套餐。
func (p Plan) Paid() bool {
	return p == PlanPro || p == PlanLifetime
}

// Resolve 返回套餐权益。水印只由服务端按套餐决定。
func Resolve(plan string) Entitlement {
	p := ParsePlan(plan)
	if p.Paid() {
		return Entitlement{Plan: p}
	}
	return Entitlement{Plan: p, Watermark: true, MaxDocuments: 3, Text: WatermarkText}
}

// CanCreate 判断在已有 count 份文档时能否再创建。
func (e Entitlement) CanCreate(count int64) bool {
	return e.MaxDocuments == 0 || count < int64(e.MaxDocuments)
}
