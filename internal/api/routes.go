package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"folioforge/internal/admin"
	"folioforge/internal/api/middleware"
	"folioforge/internal/assets"
	"folioforge/internal/ats"
	"folioforge/internal/auth"
	"folioforge/internal/config"
	"folioforge/internal/credits"
	"folioforge/internal/documents"
	"folioforge/internal/export"
	"folioforge/internal/payments"
)

// ObjectStore 是 API 层用到的对象存储能力，*storage.Client 实现了它。
type ObjectStore interface {
	assetStorage
	ExportObjects
	DeletePrefix(ctx context.Context, prefix string) error
}

// Deps 汇总路由所需的依赖，由 cmd/api 组装。
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Auth      *auth.AuthService
	Redis     redis.UniversalClient
	Queue     TaskEnqueuer
	Objects   ObjectStore
	Scanner   assets.Scanner
	Documents *documents.Store
	Exports   *export.Service
	Analyzer  *ats.Analyzer
	Credits   *credits.Service
	Payments  *payments.Processor
	Admin     *admin.Service
	Logger    *slog.Logger
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, d Deps) {
	cfg := d.Config
	var linkTTL time.Duration
	var allowedOrigins []string
	if cfg != nil {
		linkTTL = cfg.Export.LinkTTL
		allowedOrigins = cfg.API.AllowedOrigins
	}

	authHandler := NewAuthHandler(d.DB, d.Auth, d.Redis, d.Logger, authConfig(cfg), signupGrant(cfg), cookieDomain(cfg))
	wsHandler := NewWsHandler(d.Redis, d.Auth, d.Logger, allowedOrigins)
	documentHandler := NewDocumentHandler(d.Documents, d.Exports, d.Objects)
	sectionHandler := NewSectionHandler(d.Documents)
	exportHandler := NewExportHandler(d.Documents, d.Exports, d.Queue, d.Objects, linkTTL)
	templateHandler := NewTemplateHandler()
	atsHandler := NewATSHandler(d.Documents, d.Analyzer)
	webhookHandler := NewWebhookHandler(d.Payments)
	creditsHandler := NewCreditsHandler(d.Credits)
	adminHandler := NewAdminHandler(d.Admin, d.Credits)
	assetHandler := NewAssetHandler(d.DB, d.Objects, d.Scanner, d.Logger)

	authMiddleware := middleware.AuthMiddleware(d.Auth)
	passwordGate := middleware.RequirePasswordChangeCompletedMiddleware()

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
			authGroup.GET("/me", authMiddleware, authHandler.Me)
		}

		v1.GET("/templates", templateHandler.ListTemplates)
		v1.GET("/templates/:id", templateHandler.GetTemplate)
		v1.POST("/webhooks/payments", webhookHandler.HandlePayment)

		protected := v1.Group("")
		protected.Use(authMiddleware, passwordGate)
		{
			protected.POST("/preview", exportHandler.Preview)
			protected.POST("/export", exportHandler.Export)
			protected.POST("/ats/analyze", atsHandler.Analyze)
			protected.GET("/credits", creditsHandler.GetCredits)

			docs := protected.Group("/documents")
			{
				docs.GET("", documentHandler.ListDocuments)
				docs.POST("", documentHandler.CreateDocument)
				docs.GET("/:id", documentHandler.GetDocument)
				docs.DELETE("/:id", documentHandler.DeleteDocument)
				docs.GET("/:id/settings", documentHandler.GetSettings)
				docs.PUT("/:id/settings", documentHandler.UpdateSettings)

				docs.GET("/:id/sections", sectionHandler.ListSections)
				docs.POST("/:id/sections", sectionHandler.CreateCustomSection)
				docs.GET("/:id/sections/:type", sectionHandler.GetSection)
				docs.PUT("/:id/sections/:type", sectionHandler.PutSection)
				docs.DELETE("/:id/sections/:type", sectionHandler.DeleteSection)

				docs.POST("/:id/exports", exportHandler.EnqueueExport)
				docs.GET("/:id/exports", exportHandler.ListExports)
				docs.GET("/:id/exports/latest", exportHandler.DownloadLink)
				docs.POST("/:id/ats/apply", atsHandler.Apply)
			}

			assetGroup := protected.Group("/assets")
			{
				assetGroup.GET("", assetHandler.ListAssets)
				assetGroup.POST("/upload", assetHandler.UploadAsset)
				assetGroup.GET("/view", assetHandler.GetAssetURL)
				assetGroup.DELETE("", assetHandler.DeleteAsset)
			}

			adminGroup := protected.Group("/admin")
			adminGroup.Use(middleware.RequireAdminMiddleware())
			{
				adminGroup.GET("/users", adminHandler.ListUsers)
				adminGroup.POST("/users/:id/credits", adminHandler.GrantCredits)
				adminGroup.PUT("/users/:id/plan", adminHandler.SetPlan)
				adminGroup.GET("/stats", adminHandler.Stats)
			}
		}
	}
}

func authConfig(cfg *config.Config) config.AuthConfig {
	if cfg == nil {
		return config.AuthConfig{LoginRateLimitPerHour: 10, LoginLockThreshold: 5, LoginLockTTL: 15 * time.Minute}
	}
	return cfg.Auth
}

func signupGrant(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	return cfg.Credits.SignupGrant
}

func cookieDomain(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.API.CookieDomain
}
