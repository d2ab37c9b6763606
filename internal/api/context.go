package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"folioforge/internal/api/middleware"
	"folioforge/internal/documents"
	"folioforge/internal/errcode"
)

var errInvalidID = errors.New("invalid id")

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidID
	}
	return uint(id), nil
}

func requestLogger(c *gin.Context) *slog.Logger {
	return middleware.LoggerFromContext(c)
}

// writeDocumentError 把文档仓储的错误映射为 HTTP 响应。
func writeDocumentError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		NotFound(c, "document not found")
	case errors.Is(err, documents.ErrNotOwner):
		ForbiddenReason(c, errcode.ReasonNotOwner, "document belongs to another user")
	case errors.Is(err, documents.ErrInvalidSection):
		Invalid(c, "section_data", err.Error())
	default:
		logger.Error("document operation failed", slog.Any("error", err))
		Internal(c, "internal error")
	}
}
