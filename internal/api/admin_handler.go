package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"folioforge/internal/admin"
	"folioforge/internal/credits"
)

// AdminHandler 提供后台管理接口，路由层负责管理员鉴权。
type AdminHandler struct {
	admin   *admin.Service
	credits *credits.Service
}

// NewAdminHandler 构造 AdminHandler。
func NewAdminHandler(adminService *admin.Service, creditService *credits.Service) *AdminHandler {
	return &AdminHandler{admin: adminService, credits: creditService}
}

// ListUsers GET /v1/admin/users?limit=&offset=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, total, err := h.admin.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		requestLogger(c).Error("admin list users failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users, "total": total})
}

type grantCreditsRequest struct {
	Amount int    `json:"amount"`
	Note   string `json:"note" binding:"max=100"`
}

// GrantCredits POST /v1/admin/users/:id/credits
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		Invalid(c, "id", "invalid user id")
		return
	}
	var req grantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "note", err.Error())
		return
	}
	if req.Amount <= 0 {
		Invalid(c, "amount", "amount must be positive")
		return
	}

	adminID, _ := userIDFromContext(c)
	ref := fmt.Sprintf("admin:%d", adminID)
	if req.Note != "" {
		ref += ":" + req.Note
	}

	balance, err := h.credits.Grant(c.Request.Context(), userID, req.Amount, credits.ReasonAdminGrant, ref)
	if err != nil {
		if errors.Is(err, credits.ErrUserNotFound) {
			NotFound(c, "user not found")
			return
		}
		requestLogger(c).Error("admin grant credits failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	requestLogger(c).Info("admin granted credits",
		slog.Uint64("admin_id", uint64(adminID)),
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("amount", req.Amount),
	)
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "credits": balance})
}

type setPlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// SetPlan PUT /v1/admin/users/:id/plan
func (h *AdminHandler) SetPlan(c *gin.Context) {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		Invalid(c, "id", "invalid user id")
		return
	}
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Invalid(c, "plan", err.Error())
		return
	}

	plan, err := h.admin.SetPlan(c.Request.Context(), userID, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrInvalidPlan):
			Invalid(c, "plan", "plan must be free, pro or lifetime")
		case errors.Is(err, credits.ErrUserNotFound):
			NotFound(c, "user not found")
		default:
			requestLogger(c).Error("admin set plan failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "plan": plan})
}

// Stats GET /v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		requestLogger(c).Error("admin stats failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, st)
}
