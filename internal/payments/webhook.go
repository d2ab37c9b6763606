package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"folioforge/internal/credits"
	"folioforge/internal/database"
	"folioforge/internal/entitlement"
)

var (
	// ErrBadSignature 表示签名缺失或不匹配。
	ErrBadSignature = errors.New("invalid webhook signature")
	// ErrBadPayload 表示回调内容无法解析。
	ErrBadPayload = errors.New("invalid webhook payload")
)

// EventPaymentCaptured 是会产生业务副作用的事件类型。
const EventPaymentCaptured = "payment.captured"

// Outcome 描述一次回调的处理结果。
type Outcome struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
	Applied   bool   `json:"applied"`
}

// Processor 校验并应用支付回调。
type Processor struct {
	db     *gorm.DB
	secret string
	logger *slog.Logger
}

// NewProcessor 创建回调处理器。
func NewProcessor(db *gorm.DB, secret string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{db: db, secret: secret, logger: logger}
}

// Sign 计算 body 的十六进制 HMAC-SHA256。
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 以常量时间比较签名。未配置密钥时拒绝一切回调。
func Verify(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return ErrBadSignature
	}
	expected, err := hex.DecodeString(Sign(secret, body))
	if err != nil {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil || !hmac.Equal(expected, got) {
		return ErrBadSignature
	}
	return nil
}

// Handle 先校验签名，再在一个事务中记录事件并应用副作用。重复事件只确认不重放。
// 事件 ID 只取自已签名的 body。
func (p *Processor) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if err := Verify(p.secret, body, signature); err != nil {
		return Outcome{}, err
	}
	if !gjson.ValidBytes(body) {
		return Outcome{}, ErrBadPayload
	}
	doc := gjson.ParseBytes(body)

	out := Outcome{
		EventID:   eventID(doc),
		EventType: doc.Get("event").String(),
	}
	if out.EventID == "" || out.EventType == "" {
		return Outcome{}, ErrBadPayload
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := database.WebhookEvent{
			ProviderEventID: out.EventID,
			EventType:       out.EventType,
			Payload:         datatypes.JSON(body),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if res.Error != nil {
			return fmt.Errorf("record webhook event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			out.Duplicate = true
			return nil
		}
		if out.EventType != EventPaymentCaptured {
			return nil
		}
		applied, err := applyCaptured(tx, doc, out.EventID)
		out.Applied = applied
		return err
	})
	if err != nil {
		return Outcome{}, err
	}

	p.logger.Info("payment webhook processed",
		slog.String("event_id", out.EventID),
		slog.String("event_type", out.EventType),
		slog.Bool("duplicate", out.Duplicate),
		slog.Bool("applied", out.Applied),
	)
	return out, nil
}

// applyCaptured 根据 notes 升级套餐或发放积分。
func applyCaptured(tx *gorm.DB, doc gjson.Result, ref string) (bool, error) {
	notes := doc.Get("payload.payment.entity.notes")
	userID := uint(notes.Get("user_id").Uint())
	if userID == 0 {
		return false, fmt.Errorf("%w: notes.user_id missing", ErrBadPayload)
	}

	applied := false
	if raw := notes.Get("plan").String(); raw != "" {
		plan := entitlement.Plan(strings.ToLower(strings.TrimSpace(raw)))
		if !plan.Valid() {
			return false, fmt.Errorf("%w: unknown plan %q", ErrBadPayload, raw)
		}
		res := tx.Model(&database.User{}).Where("id = ?", userID).Update("plan", string(plan))
		if res.Error != nil {
			return false, fmt.Errorf("update plan: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return false, credits.ErrUserNotFound
		}
		applied = true
	}
	if amount := int(notes.Get("credits").Int()); amount > 0 {
		if err := credits.GrantWithin(tx, userID, amount, credits.ReasonPurchase, ref); err != nil {
			return false, err
		}
		applied = true
	}
	return applied, nil
}

func eventID(doc gjson.Result) string {
	if id := strings.TrimSpace(doc.Get("id").String()); id != "" {
		return id
	}
	if pay := doc.Get("payload.payment.entity.id").String(); pay != "" {
		return doc.Get("event").String() + ":" + pay
	}
	return ""
}
