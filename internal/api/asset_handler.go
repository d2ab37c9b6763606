package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"folioforge/internal/assets"
	"folioforge/internal/database"
	"folioforge/internal/errcode"
)

// assetStorage 是资产接口用到的对象存储能力。
type assetStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

const defaultMaxAssetsPerUser = 20

// AssetHandler 负责头像等图片的上传与访问。
type AssetHandler struct {
	db               *gorm.DB
	storage          assetStorage
	scanner          assets.Scanner
	logger           *slog.Logger
	maxAssetsPerUser int
	linkTTL          time.Duration
}

// NewAssetHandler 返回 AssetHandler 实例。scanner 为空时跳过病毒扫描。
func NewAssetHandler(db *gorm.DB, storageClient assetStorage, scanner assets.Scanner, logger *slog.Logger) *AssetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetHandler{
		db:               db,
		storage:          storageClient,
		scanner:          scanner,
		logger:           logger,
		maxAssetsPerUser: defaultMaxAssetsPerUser,
		linkTTL:          15 * time.Minute,
	}
}

// UploadAsset 处理受保护的图片上传，并在上传前扫描病毒。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		Invalid(c, "file", "missing file")
		return
	}
	if file.Size <= 0 || file.Size > assets.MaxPhotoBytes {
		Invalid(c, "file", "file must be between 1 byte and 5 MiB")
		return
	}
	objectKey, ok := assets.NewKey(userID, file.Filename)
	if !ok {
		Invalid(c, "file", "only png, jpg and webp images are allowed")
		return
	}

	ctx := c.Request.Context()
	logger := requestLogger(c).With(slog.Uint64("user_id", uint64(userID)))

	var count int64
	if err := h.db.WithContext(ctx).Model(&database.Asset{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		logger.Error("count assets failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if count >= int64(h.maxAssetsPerUser) {
		ForbiddenReason(c, errcode.ReasonPlanLimitReached, "asset limit reached")
		return
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(fileReader, assets.MaxPhotoBytes+1))
	fileReader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}

	contentType := assets.ContentType(objectKey)
	if sniffed := http.DetectContentType(data); sniffed != contentType {
		Invalid(c, "file", "file content does not match its extension")
		return
	}

	if h.scanner != nil {
		if err := h.scanner.Scan(bytes.NewReader(data)); err != nil {
			if errors.Is(err, assets.ErrInfected) {
				logger.Warn("upload rejected by virus scan", slog.Any("error", err))
				Invalid(c, "file", "malicious file detected")
				return
			}
			logger.Error("scan file", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		logger.Error("upload file", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	asset := database.Asset{UserID: userID, ObjectKey: objectKey, MimeType: contentType, Size: int64(len(data))}
	if err := h.db.WithContext(ctx).Create(&asset).Error; err != nil {
		logger.Error("record asset failed", slog.Any("error", err))
		if err := h.storage.DeleteObject(ctx, objectKey); err != nil {
			logger.Warn("cleanup orphan object failed", slog.String("objectKey", objectKey), slog.Any("error", err))
		}
		Internal(c, "failed to upload file")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// ListAssets 列出用户上传的资产，附带短期预览链接。
func (h *AssetHandler) ListAssets(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var rows []database.Asset
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&rows).Error; err != nil {
		requestLogger(c).Error("list assets", slog.Any("error", err))
		Internal(c, "failed to list assets")
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		url, err := h.storage.GeneratePresignedURL(c.Request.Context(), row.ObjectKey, h.linkTTL)
		if err != nil {
			requestLogger(c).Error("generate asset url", slog.String("objectKey", row.ObjectKey), slog.Any("error", err))
			continue
		}
		items = append(items, gin.H{
			"objectKey":  row.ObjectKey,
			"previewUrl": url,
			"size":       row.Size,
			"createdAt":  row.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetAssetURL 返回资产的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		Invalid(c, "key", "missing key")
		return
	}
	if !assets.ValidKey(userID, objectKey) {
		ForbiddenReason(c, errcode.ReasonNotOwner, "access denied")
		return
	}

	signedURL, err := h.storage.GeneratePresignedURL(c.Request.Context(), objectKey, h.linkTTL)
	if err != nil {
		requestLogger(c).Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DeleteAsset 删除资产记录与对象。
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if !assets.ValidKey(userID, objectKey) {
		ForbiddenReason(c, errcode.ReasonNotOwner, "access denied")
		return
	}

	ctx := c.Request.Context()
	res := h.db.WithContext(ctx).Where("user_id = ? AND object_key = ?", userID, objectKey).Delete(&database.Asset{})
	if res.Error != nil {
		requestLogger(c).Error("delete asset record", slog.Any("error", res.Error))
		Internal(c, "failed to delete asset")
		return
	}
	if res.RowsAffected == 0 {
		NotFound(c, "asset not found")
		return
	}
	if err := h.storage.DeleteObject(ctx, objectKey); err != nil {
		requestLogger(c).Warn("delete asset object", slog.String("objectKey", objectKey), slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}
