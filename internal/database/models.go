package database

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"folioforge/internal/prefs"
	"folioforge/internal/section"
)

// 用户角色。
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 文档导出状态。
const (
	StatusDraft     = "draft"
	StatusExporting = "exporting"
	StatusExported  = "exported"
	StatusFailed    = "failed"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username           string     `gorm:"uniqueIndex;size:64"`
	PasswordHash       string     `gorm:"size:255"`
	Role               string     `gorm:"size:16;default:user"`
	Plan               string     `gorm:"size:16;default:free"`
	Credits            int        `gorm:"not null;default:0"`
	MustChangePassword bool       `gorm:"default:false"`
	Documents          []Document `gorm:"constraint:OnDelete:CASCADE"`
}

// IsAdmin 判断是否为管理员。
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Document 是一份简历或作品集。Settings 以 jsonb 存储。
type Document struct {
	gorm.Model
	UserID        uint                               `gorm:"index"`
	User          User                               `gorm:"constraint:OnDelete:CASCADE"`
	Kind          string                             `gorm:"size:16;default:resume"`
	Title         string                             `gorm:"size:255"`
	Settings      datatypes.JSONType[prefs.Settings] `gorm:"type:jsonb"`
	LastExportKey string                             `gorm:"size:512"`
	Status        string                             `gorm:"size:32;default:draft"`
	Sections      []Section                          `gorm:"constraint:OnDelete:CASCADE"`
}

// Section 是文档中的一个章节。
// section_data 使用 json 而不是 jsonb，保证读回的字节与写入时完全一致。
type Section struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DocumentID  uint           `gorm:"index"`
	SectionType string         `gorm:"size:32;index"`
	SectionData datatypes.JSON `gorm:"type:json"`
	OrderIndex  int            `gorm:"default:0"`
	IsVisible   *bool          `gorm:"default:true"`
}

// ToSection 转换为渲染层使用的值类型。
func (s Section) ToSection() section.Section {
	return section.Section{
		ID:         s.ID,
		Type:       section.Type(s.SectionType),
		Data:       append(json.RawMessage(nil), s.SectionData...),
		OrderIndex: s.OrderIndex,
		IsVisible:  section.Bool(s.Visible()),
	}
}

// Visible 返回章节是否可见，未设置时视为可见。
func (s Section) Visible() bool { return s.IsVisible == nil || *s.IsVisible }

// ToSections 批量转换。
func ToSections(rows []Section) []section.Section {
	out := make([]section.Section, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToSection())
	}
	return out
}

// CreditLedger 记录每一次积分变动，只追加不修改。
type CreditLedger struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UserID    uint   `gorm:"index"`
	Delta     int    `gorm:"not null"`
	Reason    string `gorm:"size:64"`
	Ref       string `gorm:"size:128"`
}

// WebhookEvent 用于支付回调去重。
type WebhookEvent struct {
	ID              uint `gorm:"primarykey"`
	CreatedAt       time.Time
	ProviderEventID string         `gorm:"uniqueIndex;size:128"`
	EventType       string         `gorm:"size:64"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
}

// Asset 是用户上传的图片。
type Asset struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UserID    uint   `gorm:"index"`
	ObjectKey string `gorm:"uniqueIndex;size:512"`
	MimeType  string `gorm:"size:64"`
	Size      int64
}

// Models 返回需要迁移的全部模型。
func Models() []any {
	return []any{&User{}, &Document{}, &Section{}, &CreditLedger{}, &WebhookEvent{}, &Asset{}}
}

// Migrate 执行自动迁移。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
