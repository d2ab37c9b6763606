package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ExportNotifyMessage 是通过 Redis Pub/Sub 转发给前端的导出结果。
// 字段名与前端解析保持一致。
type ExportNotifyMessage struct {
	Status        string `json:"status"`
	DocumentID    uint   `json:"document_id"`
	Format        string `json:"format"`
	ObjectKey     string `json:"object_key,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// 导出通知状态。
const (
	NotifyCompleted = "completed"
	NotifyError     = "error"
)

// Validate 校验通知属于 userID：成功通知必须指向该用户该文档前缀下的对象。
func (m ExportNotifyMessage) Validate(userID uint) error {
	if m.DocumentID == 0 {
		return errors.New("notification without document id")
	}
	switch m.Status {
	case NotifyCompleted:
		if !strings.HasPrefix(m.ObjectKey, ExportPrefix(userID, m.DocumentID)) {
			return fmt.Errorf("object key %q outside export prefix", m.ObjectKey)
		}
	case NotifyError:
		if m.ObjectKey != "" {
			return errors.New("failed export carries object key")
		}
	default:
		return fmt.Errorf("unknown notification status %q", m.Status)
	}
	return nil
}

// Notifier 向用户推送消息。
type Notifier interface {
	Notify(ctx context.Context, userID uint, msg ExportNotifyMessage) error
}

// NotifyChannel 返回用户的通知频道名。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// RedisNotifier 通过 Redis 发布通知，由 API 的 WebSocket 连接订阅转发。
type RedisNotifier struct {
	client redis.UniversalClient
}

// NewRedisNotifier 创建 RedisNotifier。
func NewRedisNotifier(client redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Notify 实现 Notifier。
func (n *RedisNotifier) Notify(ctx context.Context, userID uint, msg ExportNotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
