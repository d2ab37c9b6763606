package assets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"folioforge/internal/section"
	"folioforge/internal/storage"
)

// ObjectReader 读取存储中的对象。
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string, maxBytes int64) ([]byte, string, error)
}

var photoKeys = []string{"photo", "photoUrl", "photo_url", "avatar"}

// Inliner 把个人信息里的头像对象键替换为 data URI，让无头浏览器无需访问网络。
type Inliner struct {
	reader ObjectReader
	logger *slog.Logger
}

// NewInliner 创建 Inliner。reader 为 nil 时不做任何替换。
func NewInliner(reader ObjectReader, logger *slog.Logger) *Inliner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inliner{reader: reader, logger: logger}
}

// Inline 返回替换后的章节副本。头像已删除或超限时去掉该字段，存储故障时返回错误。
func (in *Inliner) Inline(ctx context.Context, userID uint, sections []section.Section) ([]section.Section, error) {
	out := make([]section.Section, len(sections))
	copy(out, sections)
	if in == nil || in.reader == nil {
		return out, nil
	}

	for i, s := range out {
		if s.Type != section.PersonalInfo {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(s.Data, &m); err != nil || m == nil {
			continue
		}
		changed := false
		for _, k := range photoKeys {
			key, ok := m[k].(string)
			if !ok || !ValidKey(userID, key) {
				continue
			}
			data, contentType, err := in.reader.ReadObject(ctx, key, MaxPhotoBytes)
			switch {
			case err == nil:
				m[k] = DataURI(contentType, key, data)
			case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, storage.ErrObjectTooLarge):
				in.logger.Warn("photo dropped from export", slog.String("object_key", key), slog.Any("error", err))
				delete(m, k)
			default:
				return nil, fmt.Errorf("inline photo %q: %w", key, err)
			}
			changed = true
		}
		if !changed {
			continue
		}
		if raw, err := json.Marshal(m); err == nil {
			out[i].Data = raw
		}
	}
	return out, nil
}

// DataURI 编码图片，contentType 不是图片时按扩展名推断。
func DataURI(contentType, key string, data []byte) string {
	if !strings.HasPrefix(contentType, "image/") {
		contentType = ContentType(key)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
