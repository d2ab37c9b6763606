package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"folioforge/internal/credits"
)

// CreditsHandler 返回当前用户的积分余额与流水。
type CreditsHandler struct {
	credits *credits.Service
}

// NewCreditsHandler 构造 CreditsHandler。
func NewCreditsHandler(service *credits.Service) *CreditsHandler {
	return &CreditsHandler{credits: service}
}

// GetCredits GET /v1/credits?limit=
func (h *CreditsHandler) GetCredits(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	balance, err := h.credits.Balance(ctx, userID)
	if err != nil {
		if errors.Is(err, credits.ErrUserNotFound) {
			Unauthorized(c)
			return
		}
		requestLogger(c).Error("load credits failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history, err := h.credits.History(ctx, userID, limit)
	if err != nil {
		requestLogger(c).Error("load credit history failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	items := make([]gin.H, 0, len(history))
	for _, e := range history {
		items = append(items, gin.H{
			"delta":      e.Delta,
			"reason":     e.Reason,
			"created_at": e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance, "history": items})
}
