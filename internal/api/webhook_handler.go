package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"folioforge/internal/credits"
	"folioforge/internal/payments"
)

const (
	webhookSignatureHeader = "X-Webhook-Signature"
	maxWebhookBody         = 1 << 20
)

// WebhookHandler 接收支付服务商的回调。
type WebhookHandler struct {
	processor *payments.Processor
}

// NewWebhookHandler 构造 WebhookHandler。
func NewWebhookHandler(processor *payments.Processor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandlePayment 校验签名后处理事件。签名不匹配时在任何副作用之前返回 400。
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		BadRequest(c, "invalid body")
		return
	}

	logger := requestLogger(c)
	out, err := h.processor.Handle(c.Request.Context(), body, c.GetHeader(webhookSignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrBadSignature):
			logger.Warn("payment webhook rejected: bad signature", slog.String("client_ip", c.ClientIP()))
			BadRequest(c, "invalid signature")
		case errors.Is(err, payments.ErrBadPayload):
			logger.Warn("payment webhook rejected: bad payload", slog.Any("error", err))
			BadRequest(c, "invalid payload")
		case errors.Is(err, credits.ErrUserNotFound):
			logger.Warn("payment webhook rejected: unknown user", slog.Any("error", err))
			BadRequest(c, "unknown user")
		default:
			logger.Error("payment webhook failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}
	c.JSON(http.StatusOK, out)
}
