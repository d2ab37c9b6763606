package assets

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxPhotoBytes 是头像上传与内联的大小上限。
const MaxPhotoBytes = 5 << 20

var allowedExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// UserPrefix 返回用户资源的对象前缀。
func UserPrefix(userID uint) string {
	return fmt.Sprintf("user-assets/%d/", userID)
}

// NewKey 为上传文件生成对象键，扩展名不被允许时返回 false。
func NewKey(userID uint, filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := allowedExt[ext]; !ok {
		return "", false
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return UserPrefix(userID) + uuid.NewString() + ext, true
}

// ContentType 按扩展名返回图片 MIME 类型。
func ContentType(key string) string {
	return allowedExt[strings.ToLower(path.Ext(key))]
}

// ValidKey 判断 key 是否属于该用户且格式安全。
func ValidKey(userID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, UserPrefix(userID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > 200 {
		return false
	}
	return ContentType(strings.TrimSpace(key)) != ""
}
