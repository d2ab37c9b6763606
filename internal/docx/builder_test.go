package docx

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/entitlement"
	"folioforge/internal/section"
)

func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func sampleContents() []section.Content {
	return section.ExtractAll([]section.Section{
		{Type: section.PersonalInfo, Data: json.RawMessage(`{"fullName":"Ada Lovelace","email":"ada@example.com","phone":"555-0100"}`)},
		{Type: section.Summary, Data: json.RawMessage(`{"text":"Analyst & engineer <first>"}`)},
		{Type: section.Experience, Data: json.RawMessage(`{"items":[{"company":"Acme","position":"Dev","startDate":"2020","endDate":"2022","highlights":["Shipped it"]}]}`)},
		{Type: section.Skills, Data: json.RawMessage(`"Go, Rust"`)},
	})
}

func TestBuild_WellFormedParts(t *testing.T) {
	data, err := NewBuilder(Options{ThemeColor: "#112233"}).Build(sampleContents())
	require.NoError(t, err)

	files := unzip(t, data)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml", "word/numbering.xml", "word/_rels/document.xml.rels", "docProps/core.xml"} {
		content, ok := files[name]
		require.True(t, ok, name)
		dec := xml.NewDecoder(strings.NewReader(content))
		for {
			_, err := dec.Token()
			if err == io.EOF {
				break
			}
			require.NoError(t, err, name)
		}
	}
	_, hasFooter := files["word/footer1.xml"]
	assert.False(t, hasFooter)
}

func TestBuild_ContentAndTheme(t *testing.T) {
	data, err := NewBuilder(Options{ThemeColor: "#112233"}).Build(sampleContents())
	require.NoError(t, err)
	doc := unzip(t, data)["word/document.xml"]

	assert.Contains(t, doc, "Ada Lovelace")
	assert.Contains(t, doc, "ada@example.com | 555-0100")
	assert.Contains(t, doc, `<w:color w:val="112233"/>`)
	assert.Contains(t, doc, "EXPERIENCE")
	assert.Contains(t, doc, "Analyst &amp; engineer &lt;first&gt;")
	assert.Contains(t, doc, `<w:numId w:val="1"/>`)
	assert.Contains(t, doc, "Shipped it")
	// 字符串形式的 skills 不产生章节
	assert.NotContains(t, doc, "SKILLS")

	acme := strings.Index(doc, "Acme")
	dev := strings.Index(doc, "Dev")
	assert.True(t, acme >= 0 && dev > acme)
}

func TestBuild_WatermarkFooter(t *testing.T) {
	data, err := NewBuilder(Options{Watermark: entitlement.WatermarkText}).Build(sampleContents())
	require.NoError(t, err)
	files := unzip(t, data)

	footer, ok := files["word/footer1.xml"]
	require.True(t, ok)
	assert.Contains(t, footer, entitlement.WatermarkText)
	assert.Contains(t, files["word/document.xml"], `w:footerReference`)
	assert.Contains(t, files["word/_rels/document.xml.rels"], "footer1.xml")
	assert.Contains(t, files["[Content_Types].xml"], "/word/footer1.xml")
}

func TestBuild_EmptyContents(t *testing.T) {
	data, err := NewBuilder(Options{}).Build(nil)
	require.NoError(t, err)
	doc := unzip(t, data)["word/document.xml"]
	assert.Contains(t, doc, "<w:body><w:sectPr>")
}

func parsePart(t *testing.T, content string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(content))
	return doc
}

func TestBuild_BulletParagraphStructure(t *testing.T) {
	data, err := NewBuilder(Options{}).Build(sampleContents())
	require.NoError(t, err)
	doc := parsePart(t, unzip(t, data)["word/document.xml"])

	var bullet *etree.Element
	for _, p := range doc.FindElements("//w:p") {
		if p.FindElement("w:pPr/w:numPr") != nil {
			bullet = p
			break
		}
	}
	require.NotNil(t, bullet)
	pPr := bullet.SelectElement("w:pPr")
	children := pPr.ChildElements()
	require.Len(t, children, 2)
	assert.Equal(t, "pStyle", children[0].Tag)
	assert.Equal(t, "ListBullet", children[0].SelectAttrValue("w:val", ""))
	assert.Equal(t, "1", pPr.FindElement("w:numPr/w:numId").SelectAttrValue("w:val", ""))
	assert.Equal(t, "Shipped it", bullet.FindElement("w:r/w:t").Text())

	body := doc.FindElement("/w:document/w:body")
	require.NotNil(t, body)
	last := body.ChildElements()[len(body.ChildElements())-1]
	assert.Equal(t, "sectPr", last.Tag)
	assert.Nil(t, last.SelectElement("w:footerReference"))
}

func TestBuild_EscapesUserText(t *testing.T) {
	opts := Options{Title: `R&D "lead" <cv>`, Font: `Noto "Sans" & Co`, Watermark: "<free> & clear"}
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	b := NewBuilder(opts)
	b.now = func() time.Time { return fixed }

	data, err := b.Build(sampleContents())
	require.NoError(t, err)
	files := unzip(t, data)

	core := parsePart(t, files["docProps/core.xml"])
	assert.Equal(t, opts.Title, core.FindElement("//dc:title").Text())
	assert.Equal(t, "2026-03-01T09:30:00Z", core.FindElement("//dcterms:created").Text())

	styles := parsePart(t, files["word/styles.xml"])
	assert.Equal(t, opts.Font, styles.FindElement("//w:rPrDefault/w:rPr/w:rFonts").SelectAttrValue("w:ascii", ""))

	footer := parsePart(t, files["word/footer1.xml"])
	assert.Equal(t, opts.Watermark, footer.FindElement("//w:t").Text())
	assert.Equal(t, "9CA3AF", footer.FindElement("//w:rPr/w:color").SelectAttrValue("w:val", ""))

	doc := parsePart(t, files["word/document.xml"])
	ref := doc.FindElement("//w:sectPr/w:footerReference")
	require.NotNil(t, ref)
	assert.Equal(t, footerRelID, ref.SelectAttrValue("r:id", ""))
}
