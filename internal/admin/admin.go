package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"folioforge/internal/auth"
	"folioforge/internal/credits"
	"folioforge/internal/database"
	"folioforge/internal/entitlement"
)

var (
	// ErrUserExists 表示用户名已被占用。
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidPlan 表示未知套餐。
	ErrInvalidPlan = errors.New("invalid plan")
)

// Service 提供后台管理操作，HTTP 管理接口与命令行工具共用。
type Service struct {
	db *gorm.DB
}

// NewService 创建管理服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// UserSummary 是用户列表中的一行。
type UserSummary struct {
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	Role          string    `json:"role"`
	Plan          string    `json:"plan"`
	Credits       int       `json:"credits"`
	DocumentCount int64     `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListUsers 分页返回用户及其文档数量。
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]UserSummary, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&database.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []database.User
	if err := db.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return []UserSummary{}, total, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	type docCount struct {
		UserID uint
		N      int64
	}
	var counts []docCount
	if err := db.Model(&database.Document{}).
		Select("user_id, COUNT(*) AS n").
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&counts).Error; err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}
	byUser := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byUser[c.UserID] = c.N
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{
			ID:            u.ID,
			Username:      u.Username,
			Role:          u.Role,
			Plan:          string(entitlement.ParsePlan(u.Plan)),
			Credits:       u.Credits,
			DocumentCount: byUser[u.ID],
			CreatedAt:     u.CreatedAt,
		})
	}
	return out, total, nil
}

// SetPlan 修改用户套餐。
func (s *Service) SetPlan(ctx context.Context, userID uint, raw string) (entitlement.Plan, error) {
	plan := entitlement.Plan(strings.ToLower(strings.TrimSpace(raw)))
	if !plan.Valid() {
		return "", ErrInvalidPlan
	}
	res := s.db.WithContext(ctx).Model(&database.User{}).Where("id = ?", userID).Update("plan", string(plan))
	if res.Error != nil {
		return "", fmt.Errorf("update plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", credits.ErrUserNotFound
	}
	return plan, nil
}

// FindUser 按用户名查找用户。
func (s *Service) FindUser(ctx context.Context, username string) (database.User, error) {
	var user database.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.User{}, credits.ErrUserNotFound
	}
	if err != nil {
		return database.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// CreateAdmin 创建管理员账号，返回一次性初始密码。账号首次登录必须改密。
func (s *Service) CreateAdmin(ctx context.Context, username string) (database.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return database.User{}, "", errors.New("username is required")
	}
	if _, err := s.FindUser(ctx, username); err == nil {
		return database.User{}, "", ErrUserExists
	} else if !errors.Is(err, credits.ErrUserNotFound) {
		return database.User{}, "", err
	}

	password, err := RandomPassword(24)
	if err != nil {
		return database.User{}, "", err
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return database.User{}, "", err
	}

	user := database.User{
		Username:           username,
		PasswordHash:       hashed,
		Role:               database.RoleAdmin,
		Plan:               string(entitlement.PlanLifetime),
		MustChangePassword: true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return database.User{}, "", fmt.Errorf("create user: %w", err)
	}
	return user, password, nil
}

// RandomPassword 生成 URL 安全的随机口令。
func RandomPassword(bytesLen int) (string, error) {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Stats 是管理后台首页的汇总数据。
type Stats struct {
	Users           int64            `json:"users"`
	UsersByPlan     map[string]int64 `json:"users_by_plan"`
	Documents       int64            `json:"documents"`
	ExportedDocs    int64            `json:"exported_documents"`
	CreditsGranted  int64            `json:"credits_granted"`
	CreditsConsumed int64            `json:"credits_consumed"`
	WebhookEvents   int64            `json:"webhook_events"`
}

// Stats 并发执行各项统计查询，任一失败即返回错误。
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&database.User{}).Count(&st.Users).Error
	})
	g.Go(func() error {
		type row struct {
			Plan string
			N    int64
		}
		var rows []row
		if err := s.db.WithContext(ctx).Model(&database.User{}).
			Select("plan, COUNT(*) AS n").Group("plan").Scan(&rows).Error; err != nil {
			return err
		}
		st.UsersByPlan = make(map[string]int64, len(rows))
		for _, r := range rows {
			st.UsersByPlan[string(entitlement.ParsePlan(r.Plan))] += r.N
		}
		return nil
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&database.Document{}).Count(&st.Documents).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&database.Document{}).
			Where("last_export_key <> ''").Count(&st.ExportedDocs).Error
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&database.CreditLedger{}).
			Select("COALESCE(SUM(delta), 0)").Where("delta > 0").Row().Scan(&st.CreditsGranted)
	})
	g.Go(func() error {
		var consumed int64
		if err := s.db.WithContext(ctx).Model(&database.CreditLedger{}).
			Select("COALESCE(SUM(delta), 0)").Where("delta < 0").Row().Scan(&consumed); err != nil {
			return err
		}
		st.CreditsConsumed = -consumed
		return nil
	})
	g.Go(func() error {
		return s.db.WithContext(ctx).Model(&database.WebhookEvent{}).Count(&st.WebhookEvents).Error
	})

	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("collect stats: %w", err)
	}
	return st, nil
}
