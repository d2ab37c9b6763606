package export

import (
	"errors"
	"strings"
)

// ErrUnsupportedFormat 表示请求了未知的导出格式。
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format 是导出格式。
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// ParseFormat 解析格式，空值默认 PDF。
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatPDF, nil
	case FormatPDF, FormatDOCX:
		return f, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// MIME 返回 Content-Type。
func (f Format) MIME() string {
	switch f {
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/pdf"
	}
}

// Extension 返回带点的扩展名。
func (f Format) Extension() string {
	if f == FormatDOCX {
		return ".docx"
	}
	return ".pdf"
}
