package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"folioforge/internal/entitlement"
	"folioforge/internal/pdf"
	"folioforge/internal/prefs"
	"folioforge/internal/render"
	"folioforge/internal/section"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePrinter struct {
	html string
	err  error
}

func (p *fakePrinter) PrintHTML(_ context.Context, html string) ([]byte, error) {
	p.html = html
	if p.err != nil {
		return nil, p.err
	}
	return []byte("%PDF-fake"), nil
}

type fakeStamper struct {
	calls int
	text  string
}

func (s *fakeStamper) Stamp(data []byte, text string) ([]byte, error) {
	s.calls++
	s.text = text
	return append(append([]byte{}, data...), []byte("|"+text)...), nil
}

func newExporter(t *testing.T) (*Exporter, *fakePrinter, *fakeStamper) {
	t.Helper()
	d, err := render.NewDispatcher()
	require.NoError(t, err)
	p, s := &fakePrinter{}, &fakeStamper{}
	return NewExporter(d, p, s, nil), p, s
}

func sampleDoc() render.Document {
	return render.Document{
		Title: "Ada Resume",
		Sections: []section.Section{
			{Type: section.Summary, Data: json.RawMessage(`{"text":"Hello"}`)},
			{Type: section.Skills, Data: json.RawMessage(`{"items":["Go"]}`)},
		},
		Settings: prefs.Settings{TemplateID: "ats", HiddenSections: []section.Type{section.Skills}},
	}
}

func TestExport_PDFWatermarkOnlyForFree(t *testing.T) {
	e, printer, stamper := newExporter(t)

	free, err := e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatPDF, Watermark: true, WatermarkText: "Made with FolioForge"})
	require.NoError(t, err)
	assert.Equal(t, 1, stamper.calls)
	assert.Contains(t, string(free.Data), "Made with FolioForge")
	assert.Equal(t, "application/pdf", free.ContentType)
	assert.Equal(t, "Ada_Resume.pdf", free.Filename)

	paid, err := e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, 1, stamper.calls)
	assert.Equal(t, "%PDF-fake", string(paid.Data))
	assert.NotContains(t, printer.html, `data-section="skills"`)
}

func TestExport_BlankWatermarkTextUsesDefault(t *testing.T) {
	e, _, stamper := newExporter(t)
	_, err := e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatPDF, Watermark: true, WatermarkText: "  "})
	require.NoError(t, err)
	assert.Equal(t, entitlement.WatermarkText, stamper.text)
}

func TestExport_PreviewMatchesExportHTML(t *testing.T) {
	e, printer, _ := newExporter(t)
	html, err := e.Preview(sampleDoc())
	require.NoError(t, err)
	_, err = e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, html, printer.html)
}

func docxDocument(t *testing.T, data []byte) (string, bool) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var body string
	hasFooter := false
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			rc, err := f.Open()
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			_ = rc.Close()
			body = string(b)
		case "word/footer1.xml":
			hasFooter = true
		}
	}
	return body, hasFooter
}

func TestExport_DOCXWatermarkOnlyForFree(t *testing.T) {
	e, _, stamper := newExporter(t)

	free, err := e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatDOCX, Watermark: true})
	require.NoError(t, err)
	body, footer := docxDocument(t, free.Data)
	assert.True(t, footer)
	assert.Contains(t, body, "Hello")
	assert.NotContains(t, body, "SKILLS")
	assert.Equal(t, ".docx", FormatDOCX.Extension())

	paid, err := e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatDOCX})
	require.NoError(t, err)
	_, footer = docxDocument(t, paid.Data)
	assert.False(t, footer)
	assert.Zero(t, stamper.calls)
}

func TestExport_PrinterErrorPropagates(t *testing.T) {
	e, printer, stamper := newExporter(t)
	printer.err = pdf.ErrBrowser
	_, err := e.Export(context.Background(), Request{Document: sampleDoc(), Format: FormatPDF, Watermark: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pdf.ErrBrowser))
	assert.Zero(t, stamper.calls)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	f, err = ParseFormat("DOCX")
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, f)
	_, err = ParseFormat("odt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "resume.pdf", Filename("   ", FormatPDF))
	assert.Equal(t, "My_CV_2024.docx", Filename("My CV/2024", FormatDOCX))
}
