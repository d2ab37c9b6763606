package export

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"folioforge/internal/docx"
	"folioforge/internal/entitlement"
	"folioforge/internal/metrics"
	"folioforge/internal/render"
	"folioforge/internal/section"
)

// HTMLPrinter 把 HTML 打印为 PDF。
type HTMLPrinter interface {
	PrintHTML(ctx context.Context, html string) ([]byte, error)
}

// Stamper 在 PDF 上叠加水印。
type Stamper interface {
	Stamp(pdf []byte, text string) ([]byte, error)
}

// Request 是一次导出请求。Watermark 必须由服务端按套餐计算。
type Request struct {
	Document      render.Document
	Format        Format
	Watermark     bool
	WatermarkText string
}

// Result 是导出产物。
type Result struct {
	Data        []byte
	Format      Format
	Filename    string
	ContentType string
	TemplateID  string
}

// Exporter 串联渲染、打印与水印。
type Exporter struct {
	dispatcher *render.Dispatcher
	printer    HTMLPrinter
	stamper    Stamper
	logger     *slog.Logger
}

// NewExporter 创建 Exporter。
func NewExporter(dispatcher *render.Dispatcher, printer HTMLPrinter, stamper Stamper, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{dispatcher: dispatcher, printer: printer, stamper: stamper, logger: logger}
}

// Preview 渲染 HTML，与导出使用同一套解析逻辑。
func (e *Exporter) Preview(doc render.Document) (string, error) {
	out, err := e.dispatcher.Render(doc)
	if err != nil {
		return "", err
	}
	return out.HTML, nil
}

// Export 渲染文档并序列化为目标格式。
func (e *Exporter) Export(ctx context.Context, req Request) (res Result, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveExport(string(req.Format), err, req.Watermark, time.Since(start))
	}()

	out, err := e.dispatcher.Render(req.Document)
	if err != nil {
		return Result{}, fmt.Errorf("render document: %w", err)
	}

	text := strings.TrimSpace(req.WatermarkText)
	if text == "" {
		text = entitlement.WatermarkText
	}
	var data []byte
	switch req.Format {
	case FormatPDF:
		data, err = e.printer.PrintHTML(ctx, out.HTML)
		if err != nil {
			return Result{}, err
		}
		if req.Watermark {
			data, err = e.stamper.Stamp(data, text)
			if err != nil {
				return Result{}, err
			}
		}
	case FormatDOCX:
		opts := docx.Options{
			Title:      req.Document.Title,
			ThemeColor: out.Settings.ThemeColor,
			Font:       out.Settings.Font,
		}
		if req.Watermark {
			opts.Watermark = text
		}
		data, err = docx.NewBuilder(opts).Build(section.ExtractAll(out.Sections))
		if err != nil {
			return Result{}, err
		}
	default:
		return Result{}, ErrUnsupportedFormat
	}

	e.logger.Info("document exported",
		slog.String("format", string(req.Format)),
		slog.String("template", out.Template.ID),
		slog.Bool("watermark", req.Watermark),
		slog.Int("bytes", len(data)),
	)

	return Result{
		Data:        data,
		Format:      req.Format,
		Filename:    Filename(req.Document.Title, req.Format),
		ContentType: req.Format.MIME(),
		TemplateID:  out.Template.ID,
	}, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename 由标题生成安全的下载文件名。
func Filename(title string, f Format) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(title), "_"), "_.")
	if name == "" {
		name = "resume"
	}
	if len(name) > 80 {
		name = name[:80]
	}
	return name + f.Extension()
}
