package pdf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// A4 纸张尺寸（英寸）。
const (
	PaperWidthInch  = 8.27
	PaperHeightInch = 11.69
)

const fontsReadyScript = `() => {
  if (document && document.fonts && document.fonts.ready) {
    return Promise.race([
      document.fonts.ready.then(() => true),
      new Promise((resolve) => setTimeout(() => resolve(true), 3000))
    ]);
  }
  return true;
}`

// Printer 把完整 HTML 文档打印为 A4 PDF。
type Printer struct {
	launcher *Launcher
	logger   *slog.Logger
}

// NewPrinter 基于 Launcher 创建打印器。
func NewPrinter(l *Launcher) *Printer {
	return &Printer{launcher: l, logger: l.logger}
}

// PrintHTML 加载 HTML、等待字体就绪后输出 PDF 字节。
func (p *Printer) PrintHTML(ctx context.Context, html string) ([]byte, error) {
	var data []byte
	err := p.launcher.WithPage(ctx, func(page *rod.Page) error {
		if err := page.SetDocumentContent(html); err != nil {
			return fmt.Errorf("set document content: %w", err)
		}
		if err := page.WaitLoad(); err != nil {
			return fmt.Errorf("wait load: %w", err)
		}

		// 字体未就绪时继续打印，避免因 WebFont 超时导致整个导出失败
		if _, err := page.Timeout(5 * time.Second).Eval(fontsReadyScript); err != nil {
			p.logger.Warn("document.fonts.ready wait failed, continue", slog.Any("error", err))
		}

		if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(page); err != nil {
			return fmt.Errorf("set emulated media to print: %w", err)
		}

		out, err := printPage(page)
		if err != nil {
			return err
		}
		data = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PrintParams 返回固定的 A4 零边距打印参数。
func PrintParams() *proto.PagePrintToPDF {
	zero := 0.0
	width, height := PaperWidthInch, PaperHeightInch
	return &proto.PagePrintToPDF{
		PrintBackground:   true,
		PaperWidth:        &width,
		PaperHeight:       &height,
		MarginTop:         &zero,
		MarginBottom:      &zero,
		MarginLeft:        &zero,
		MarginRight:       &zero,
		PreferCSSPageSize: true,
	}
}

func printPage(page *rod.Page) ([]byte, error) {
	reader, err := page.PDF(PrintParams())
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}
