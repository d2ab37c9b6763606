package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"folioforge/internal/database"
	"folioforge/internal/documents"
	"folioforge/internal/errcode"
	"folioforge/internal/export"
	"folioforge/internal/tasks"
)

// Uploader 上传导出产物。
type Uploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// ExportTaskHandler 负责消费后台导出任务。
type ExportTaskHandler struct {
	service  *export.Service
	store    *documents.Store
	uploader Uploader
	notifier Notifier
	logger   *slog.Logger
}

// NewExportTaskHandler 创建任务处理器。
func NewExportTaskHandler(service *export.Service, store *documents.Store, uploader Uploader, notifier Notifier, logger *slog.Logger) *ExportTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportTaskHandler{service: service, store: store, uploader: uploader, notifier: notifier, logger: logger}
}

// ExportObjectKey 返回导出文件在存储中的位置。UUIDv7 让同一文档的键按生成时间字典序递增。
func ExportObjectKey(userID, docID uint, format export.Format) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return fmt.Sprintf("%s%s%s", ExportPrefix(userID, docID), id.String(), format.Extension())
}

// ExportPrefix 返回某文档全部导出文件的前缀。
func ExportPrefix(userID, docID uint) string {
	return fmt.Sprintf("exports/%d/%d/", userID, docID)
}

// ProcessTask 实现 asynq.Handler。
func (h *ExportTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseExportPayload(t)
	if err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("document_id", uint64(payload.DocumentID)),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	format, err := export.ParseFormat(payload.Format)
	if err != nil {
		log.Warn("unsupported export format, skipping task", slog.String("format", payload.Format))
		return nil
	}
	log.Info("starting document export task", slog.String("format", string(format)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}
		h.markStatus(ctx, payload.DocumentID, database.StatusFailed, "")
		notify := ExportNotifyMessage{
			Status:        NotifyError,
			DocumentID:    payload.DocumentID,
			Format:        string(format),
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.ExportFailed,
			ErrorMessage:  "export failed",
		}
		if err := h.notifier.Notify(ctx, payload.UserID, notify); err != nil {
			log.Error("publish export error notification failed", slog.Any("error", err))
		}
	}()

	res, doc, err := h.service.ExportDocument(ctx, payload.UserID, payload.DocumentID, format)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) || errors.Is(err, documents.ErrNotOwner) {
			log.Warn("document not exportable, skipping task", slog.Any("error", err))
			return nil
		}
		log.Error("export document failed", slog.Any("error", err))
		return err
	}

	objectName := ExportObjectKey(doc.UserID, doc.ID, format)
	if _, err := h.uploader.UploadFile(ctx, objectName, bytes.NewReader(res.Data), int64(len(res.Data)), res.ContentType); err != nil {
		log.Error("upload export to storage failed", slog.Any("error", err))
		return err
	}

	if err := h.markStatus(ctx, doc.ID, database.StatusExported, objectName); err != nil {
		log.Error("update document failed", slog.Any("error", err))
		return err
	}

	notify := ExportNotifyMessage{
		Status:        NotifyCompleted,
		DocumentID:    doc.ID,
		Format:        string(format),
		ObjectKey:     objectName,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if err := h.notifier.Notify(ctx, doc.UserID, notify); err != nil {
		// 文件已经生成，通知失败不重试整个任务
		log.Warn("publish export notification failed", slog.Any("error", err))
	}

	log.Info("document export task completed", slog.String("object_key", objectName), slog.Int("bytes", len(res.Data)))
	return nil
}

func (h *ExportTaskHandler) markStatus(ctx context.Context, docID uint, status, objectKey string) error {
	return h.store.SetStatus(ctx, docID, status, objectKey)
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
