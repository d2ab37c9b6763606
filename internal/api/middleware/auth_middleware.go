package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"folioforge/internal/auth"
	"folioforge/internal/database"
	"folioforge/internal/errcode"
)

// 上下文键，handler 通过同名键读取身份信息。
const (
	UserIDKey             = "userID"
	RoleKey               = "role"
	MustChangePasswordKey = "mustChangePassword"
)

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验访问令牌并将 userID、角色与改密标记注入上下文。
func AuthMiddleware(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(rawToken)
		if err != nil || claims.TokenType != "access" {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Set(MustChangePasswordKey, claims.MustChangePassword)
		c.Next()
	}
}

// RequireAdminMiddleware 只放行 admin 角色。角色取自令牌声明。
func RequireAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != database.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  "admin access required",
				"reason": errcode.ReasonAdminOnly,
			})
			return
		}
		c.Next()
	}
}
