package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"folioforge/internal/database"
	"folioforge/internal/prefs"
	"folioforge/internal/render"
	"folioforge/internal/section"
)

var (
	// ErrNotFound 表示文档或章节不存在。
	ErrNotFound = errors.New("not found")
	// ErrNotOwner 表示文档属于其他用户。
	ErrNotOwner = errors.New("not owner")
	// ErrInvalidSection 表示章节类型或数据非法。
	ErrInvalidSection = errors.New("invalid section")
)

// Store 封装文档与章节的持久化。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB 暴露底层连接，供需要事务的调用方使用。
func (s *Store) DB() *gorm.DB { return s.db }

// Get 读取文档并校验归属。
func (s *Store) Get(ctx context.Context, userID, docID uint) (database.Document, error) {
	var doc database.Document
	if err := s.db.WithContext(ctx).First(&doc, docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Document{}, ErrNotFound
		}
		return database.Document{}, fmt.Errorf("load document: %w", err)
	}
	if doc.UserID != userID {
		return database.Document{}, ErrNotOwner
	}
	return doc, nil
}

// List 返回用户的文档，按更新时间倒序。
func (s *Store) List(ctx context.Context, userID uint) ([]database.Document, error) {
	var docs []database.Document
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Count 返回用户文档数量。
func (s *Store) Count(ctx context.Context, userID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&database.Document{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Create 新建文档，Settings 先经过 Normalize。
func (s *Store) Create(ctx context.Context, userID uint, kind, title string, settings prefs.Settings) (database.Document, error) {
	if kind != render.KindPortfolio {
		kind = render.KindResume
	}
	doc := database.Document{
		UserID:   userID,
		Kind:     kind,
		Title:    title,
		Settings: datatypes.NewJSONType(settings.Normalize()),
		Status:   database.StatusDraft,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return database.Document{}, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// UpdateSettings 保存规范化后的设置。
func (s *Store) UpdateSettings(ctx context.Context, doc *database.Document, settings prefs.Settings) error {
	doc.Settings = datatypes.NewJSONType(settings.Normalize())
	if err := s.db.WithContext(ctx).Model(doc).Update("settings", doc.Settings).Error; err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

// Delete 删除文档及其章节。
func (s *Store) Delete(ctx context.Context, doc database.Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", doc.ID).Delete(&database.Section{}).Error; err != nil {
			return fmt.Errorf("delete sections: %w", err)
		}
		if err := tx.Delete(&doc).Error; err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

// SetStatus 更新导出状态，objectKey 非空时同时记录最近一次导出的对象键。
func (s *Store) SetStatus(ctx context.Context, docID uint, status, objectKey string) error {
	update := map[string]any{"status": status}
	if strings.TrimSpace(objectKey) != "" {
		update["last_export_key"] = objectKey
	}
	if err := s.db.WithContext(ctx).Model(&database.Document{}).Where("id = ?", docID).Updates(update).Error; err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// Sections 按 order_index、id 顺序返回章节。
func (s *Store) Sections(ctx context.Context, docID uint) ([]database.Section, error) {
	var rows []database.Section
	err := s.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("order_index ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	return rows, nil
}

// RenderDocument 组装渲染所需的文档状态。
func (s *Store) RenderDocument(ctx context.Context, doc database.Document) (render.Document, error) {
	rows, err := s.Sections(ctx, doc.ID)
	if err != nil {
		return render.Document{}, err
	}
	return render.Document{
		Title:    doc.Title,
		Kind:     doc.Kind,
		Sections: database.ToSections(rows),
		Settings: doc.Settings.Data(),
	}, nil
}

// Section 返回该类型的第一条章节。
func (s *Store) Section(ctx context.Context, docID uint, t section.Type) (database.Section, error) {
	var row database.Section
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND section_type = ?", docID, string(t)).
		Order("id ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Section{}, ErrNotFound
		}
		return database.Section{}, fmt.Errorf("load section: %w", err)
	}
	return row, nil
}

// SectionPatch 是一次章节写入。nil 字段保持原值。
type SectionPatch struct {
	Data       json.RawMessage
	OrderIndex *int
	IsVisible  *bool
}

// PutSection 写入该类型的第一条章节，不存在时创建。section_data 原样保存。
func (s *Store) PutSection(ctx context.Context, docID uint, t section.Type, patch SectionPatch) (database.Section, bool, error) {
	if !t.Valid() {
		return database.Section{}, false, ErrInvalidSection
	}
	if len(patch.Data) == 0 || !json.Valid(patch.Data) {
		return database.Section{}, false, fmt.Errorf("%w: section_data must be valid JSON", ErrInvalidSection)
	}

	var (
		row     database.Section
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("document_id = ? AND section_type = ?", docID, string(t)).Order("id ASC").First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			row = database.Section{DocumentID: docID, SectionType: string(t), IsVisible: section.Bool(true)}
			if patch.OrderIndex != nil {
				row.OrderIndex = *patch.OrderIndex
			} else {
				next, err := nextOrder(tx, docID)
				if err != nil {
					return err
				}
				row.OrderIndex = next
			}
		case err != nil:
			return fmt.Errorf("load section: %w", err)
		default:
			if patch.OrderIndex != nil {
				row.OrderIndex = *patch.OrderIndex
			}
		}
		row.SectionData = datatypes.JSON(append([]byte(nil), patch.Data...))
		if patch.IsVisible != nil {
			row.IsVisible = section.Bool(*patch.IsVisible)
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("save section: %w", err)
		}
		return nil
	})
	return row, created, err
}

// CreateCustom 追加一条 custom 章节。
func (s *Store) CreateCustom(ctx context.Context, docID uint, data json.RawMessage) (database.Section, error) {
	if len(data) == 0 || !json.Valid(data) {
		return database.Section{}, fmt.Errorf("%w: section_data must be valid JSON", ErrInvalidSection)
	}
	var row database.Section
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := nextOrder(tx, docID)
		if err != nil {
			return err
		}
		row = database.Section{
			DocumentID:  docID,
			SectionType: string(section.Custom),
			SectionData: datatypes.JSON(append([]byte(nil), data...)),
			OrderIndex:  next,
			IsVisible:   section.Bool(true),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create section: %w", err)
		}
		return nil
	})
	return row, err
}

// DeleteSection 删除该类型的第一条章节。
func (s *Store) DeleteSection(ctx context.Context, docID uint, t section.Type) error {
	row, err := s.Section(ctx, docID, t)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&row).Error; err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// ApplyChanges 在一个事务中保存自动应用产生的章节变更。
func (s *Store) ApplyChanges(ctx context.Context, docID uint, changes []section.Section) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			row := database.Section{
				ID:          c.ID,
				DocumentID:  docID,
				SectionType: string(c.Type),
				SectionData: datatypes.JSON(c.Data),
				OrderIndex:  c.OrderIndex,
				IsVisible:   section.Bool(c.Visible()),
			}
			if c.ID == 0 {
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("create section: %w", err)
				}
				continue
			}
			res := tx.Model(&database.Section{}).
				Where("id = ? AND document_id = ?", c.ID, docID).
				Update("section_data", row.SectionData)
			if res.Error != nil {
				return fmt.Errorf("update section: %w", res.Error)
			}
		}
		return nil
	})
}

func nextOrder(tx *gorm.DB, docID uint) (int, error) {
	var max int
	row := tx.Model(&database.Section{}).Where("document_id = ?", docID).Select("COALESCE(MAX(order_index), -1)").Row()
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("next order index: %w", err)
	}
	return max + 1, nil
}
