package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"folioforge/internal/entitlement"
	"folioforge/internal/export"
	"folioforge/internal/pdf"
	"folioforge/internal/render"
)

type renderOptions struct {
	input       string
	output      string
	format      string
	watermark   bool
	chromiumBin string
	timeout     time.Duration
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "把 JSON 文档离线渲染为 HTML、PDF 或 DOCX",
		Long: `读取与 /v1/preview 的 resumeData 相同结构的 JSON 文档，
使用线上同一套模板渲染，结果原子写入 --output。

示例:
  folioforge-admin render --input cv.json --format html --output cv.html
  folioforge-admin render --input cv.json --format docx --output cv.docx --watermark`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.input, "input", "", "JSON 文档路径，- 表示标准输入")
	f.StringVar(&opts.output, "output", "", "输出文件路径（必填）")
	f.StringVar(&opts.format, "format", "html", "输出格式：html、pdf、docx")
	f.BoolVar(&opts.watermark, "watermark", false, "添加免费版水印")
	f.StringVar(&opts.chromiumBin, "chromium-bin", os.Getenv("CHROMIUM_BIN"), "Chromium 路径，仅 pdf 需要")
	f.DurationVar(&opts.timeout, "timeout", time.Minute, "pdf 打印超时")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runRender(ctx context.Context, opts *renderOptions, stdout io.Writer) error {
	doc, err := readDocument(opts.input)
	if err != nil {
		return err
	}
	dispatcher, err := render.NewDispatcher()
	if err != nil {
		return errors.Wrap(err, "init templates")
	}

	var data []byte
	switch strings.ToLower(strings.TrimSpace(opts.format)) {
	case "html":
		out, err := dispatcher.Render(doc)
		if err != nil {
			return errors.Wrap(err, "render html")
		}
		data = []byte(out.HTML)
	default:
		format, err := export.ParseFormat(opts.format)
		if err != nil {
			return errors.Wrapf(err, "format %q", opts.format)
		}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		var printer export.HTMLPrinter
		if format == export.FormatPDF {
			printer = pdf.NewPrinter(pdf.NewLauncher(
				pdf.WithBin(opts.chromiumBin),
				pdf.WithTimeout(opts.timeout),
				pdf.WithLogger(logger),
			))
		}
		res, err := export.NewExporter(dispatcher, printer, pdf.NewStamper(), logger).Export(ctx, export.Request{
			Document:      doc,
			Format:        format,
			Watermark:     opts.watermark,
			WatermarkText: entitlement.WatermarkText,
		})
		if err != nil {
			return errors.Wrapf(err, "export %s", format)
		}
		data = res.Data
	}

	if err := atomic.WriteFile(opts.output, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "write %s", opts.output)
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", opts.output, len(data))
	return nil
}

func readDocument(path string) (render.Document, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return render.Document{}, errors.Wrapf(err, "read %s", path)
	}
	var doc render.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return render.Document{}, errors.Wrapf(err, "decode %s", path)
	}
	return doc, nil
}
