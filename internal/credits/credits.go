package credits

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"folioforge/internal/database"
)

var (
	// ErrInsufficientCredits 表示余额不足以支付本次操作。
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrUserNotFound 表示用户不存在。
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidAmount 表示积分数量非法。
	ErrInvalidAmount = errors.New("credit amount must be positive")
)

// 积分变动原因。
const (
	ReasonSignup      = "signup_bonus"
	ReasonATSAnalysis = "ats_analysis"
	ReasonPurchase    = "purchase"
	ReasonAdminGrant  = "admin_grant"
)

// Service 管理用户积分，所有变动都会写入流水。
type Service struct {
	db *gorm.DB
}

// NewService 创建积分服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Balance 返回当前余额。
func (s *Service) Balance(ctx context.Context, userID uint) (int, error) {
	var user database.User
	if err := s.db.WithContext(ctx).Select("id", "credits").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return user.Credits, nil
}

// Ensure 在调用昂贵操作前检查余额，不扣减。
func (s *Service) Ensure(ctx context.Context, userID uint, cost int) error {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance < cost {
		return ErrInsufficientCredits
	}
	return nil
}

// Deduct 扣减积分。条件更新保证并发请求不会把余额扣成负数。
func (s *Service) Deduct(ctx context.Context, userID uint, cost int, reason, ref string) (int, error) {
	if cost <= 0 {
		return s.Balance(ctx, userID)
	}
	var remaining int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.User{}).
			Where("id = ? AND credits >= ?", userID, cost).
			UpdateColumn("credits", gorm.Expr("credits - ?", cost))
		if res.Error != nil {
			return fmt.Errorf("deduct credits: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&database.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return fmt.Errorf("check user: %w", err)
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientCredits
		}
		if err := appendLedger(tx, userID, -cost, reason, ref); err != nil {
			return err
		}
		var user database.User
		if err := tx.Select("id", "credits").First(&user, userID).Error; err != nil {
			return fmt.Errorf("reload balance: %w", err)
		}
		remaining = user.Credits
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// Grant 增加积分并返回新余额。
func (s *Service) Grant(ctx context.Context, userID uint, amount int, reason, ref string) (int, error) {
	var balance int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := GrantWithin(tx, userID, amount, reason, ref); err != nil {
			return err
		}
		var user database.User
		if err := tx.Select("id", "credits").First(&user, userID).Error; err != nil {
			return fmt.Errorf("reload balance: %w", err)
		}
		balance = user.Credits
		return nil
	})
	return balance, err
}

// GrantWithin 在调用方的事务中增加积分，供支付回调等需要原子提交的场景使用。
func GrantWithin(tx *gorm.DB, userID uint, amount int, reason, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	res := tx.Model(&database.User{}).
		Where("id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("grant credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return appendLedger(tx, userID, amount, reason, ref)
}

// History 返回最近的积分流水。
func (s *Service) History(ctx context.Context, userID uint, limit int) ([]database.CreditLedger, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []database.CreditLedger
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return rows, nil
}

func appendLedger(tx *gorm.DB, userID uint, delta int, reason, ref string) error {
	entry := database.CreditLedger{UserID: userID, Delta: delta, Reason: reason, Ref: ref}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}
