package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"folioforge/internal/entitlement"
)

// ErrStamp 表示水印叠加失败。
var ErrStamp = errors.New("watermark stamp failed")

const pointsPerMM = 72.0 / 25.4

// 水印版式：右下角，Helvetica 8pt 灰色，水平内缩 15mm、垂直内缩 8mm。
const (
	WatermarkFont     = "Helvetica"
	WatermarkPoints   = 8
	WatermarkColor    = "#9CA3AF"
	WatermarkInsetXMM = 15.0
	WatermarkInsetYMM = 8.0
)

func init() {
	// 不读写用户目录下的 pdfcpu 配置
	api.DisableConfigDir()
}

// Stamper 使用 pdfcpu 在每一页叠加文字水印。
type Stamper struct {
	conf *model.Configuration
}

// NewStamper 创建 Stamper。
func NewStamper() *Stamper {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Stamper{conf: conf}
}

// Description 返回 pdfcpu 水印描述串。
func Description() string {
	dx := math.Round(WatermarkInsetXMM * pointsPerMM)
	dy := math.Round(WatermarkInsetYMM * pointsPerMM)
	return fmt.Sprintf(
		"fontname:%s, points:%d, fillcolor:%s, rotation:0, position:br, offset:-%.0f %.0f, scalefactor:1 abs, opacity:1",
		WatermarkFont, WatermarkPoints, WatermarkColor, dx, dy,
	)
}

// Stamp 在 PDF 所有页右下角叠加 text。
func (s *Stamper) Stamp(pdfBytes []byte, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = entitlement.WatermarkText
	}
	wm, err := api.TextWatermark(text, Description(), true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStamp, err)
	}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(pdfBytes), &out, nil, wm, s.conf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStamp, err)
	}
	return out.Bytes(), nil
}
