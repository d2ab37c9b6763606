package export

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"folioforge/internal/assets"
	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/entitlement"
	"folioforge/internal/render"
)

// ErrUserNotFound 表示导出请求的用户不存在。
var ErrUserNotFound = errors.New("user not found")

// Service 按用户身份导出已保存的文档，水印由套餐决定。
type Service struct {
	store         *documents.Store
	exporter      *Exporter
	inliner       *assets.Inliner
	watermarkText string
}

// NewService 创建导出服务。
func NewService(store *documents.Store, exporter *Exporter, inliner *assets.Inliner, watermarkText string) *Service {
	return &Service{store: store, exporter: exporter, inliner: inliner, watermarkText: watermarkText}
}

// Exporter 返回底层 Exporter，供预览复用。
func (s *Service) Exporter() *Exporter { return s.exporter }

// Entitlement 从数据库读取用户当前套餐。
func (s *Service) Entitlement(ctx context.Context, userID uint) (entitlement.Entitlement, error) {
	var user database.User
	if err := s.store.DB().WithContext(ctx).Select("id", "plan").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entitlement.Entitlement{}, ErrUserNotFound
		}
		return entitlement.Entitlement{}, fmt.Errorf("load user plan: %w", err)
	}
	return entitlement.Resolve(user.Plan), nil
}

// ExportDocument 读取文档、内联头像并导出。
func (s *Service) ExportDocument(ctx context.Context, userID, docID uint, format Format) (Result, database.Document, error) {
	doc, err := s.store.Get(ctx, userID, docID)
	if err != nil {
		return Result{}, database.Document{}, err
	}
	rd, err := s.store.RenderDocument(ctx, doc)
	if err != nil {
		return Result{}, doc, err
	}
	res, err := s.ExportData(ctx, userID, rd, format)
	return res, doc, err
}

// ExportData 导出请求体中直接提供的文档数据。
func (s *Service) ExportData(ctx context.Context, userID uint, doc render.Document, format Format) (Result, error) {
	ent, err := s.Entitlement(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if doc.Sections, err = s.inliner.Inline(ctx, userID, doc.Sections); err != nil {
		return Result{}, err
	}

	text := ent.Text
	if s.watermarkText != "" {
		text = s.watermarkText
	}
	return s.exporter.Export(ctx, Request{
		Document:      doc,
		Format:        format,
		Watermark:     ent.Watermark,
		WatermarkText: text,
	})
}

// Preview 渲染 HTML 预览，与导出使用相同的头像内联与解析逻辑。
func (s *Service) Preview(ctx context.Context, userID uint, doc render.Document) (string, error) {
	sections, err := s.inliner.Inline(ctx, userID, doc.Sections)
	if err != nil {
		return "", err
	}
	doc.Sections = sections
	return s.exporter.Preview(doc)
}
