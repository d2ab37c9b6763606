package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"folioforge/internal/section"
)

// ErrBuild 表示 DOCX 组装失败。失败时不会返回部分内容。
var ErrBuild = errors.New("docx build failed")

// Options 控制文档外观。
type Options struct {
	Title      string
	ThemeColor string // #RRGGBB
	Font       string
	// Watermark 非空时写入页脚。
	Watermark string
}

// Builder 把规范化章节内容写成 WordprocessingML 文档。
type Builder struct {
	opts Options
	body *etree.Element
	now  func() time.Time
}

// NewBuilder 创建 Builder。
func NewBuilder(opts Options) *Builder {
	if opts.Font == "" {
		opts.Font = "Calibri"
	}
	return &Builder{opts: opts, now: time.Now}
}

type part struct {
	name string
	doc  *etree.Document
}

// Build 依次写入章节并打包为 .docx 字节。
func (b *Builder) Build(contents []section.Content) ([]byte, error) {
	document, root := newPart("w:document", "xmlns:w", nsW, "xmlns:r", nsR)
	b.body = root.CreateElement("w:body")
	for _, c := range contents {
		if c.Empty() {
			continue
		}
		b.writeSection(c)
	}
	b.sectionProps()

	withFooter := b.opts.Watermark != ""
	parts := []part{
		{"[Content_Types].xml", contentTypes(withFooter)},
		{"_rels/.rels", rootRels()},
		{"docProps/core.xml", b.coreProps()},
		{"word/_rels/document.xml.rels", documentRels(withFooter)},
		{"word/styles.xml", b.styles()},
		{"word/numbering.xml", numbering()},
		{"word/document.xml", document},
	}
	if withFooter {
		parts = append(parts, part{"word/footer1.xml", b.footer()})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", ErrBuild, p.name, err)
		}
		if _, err := p.doc.WriteTo(w); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrBuild, p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close archive: %v", ErrBuild, err)
	}
	return buf.Bytes(), nil
}

func (b *Builder) writeSection(c section.Content) {
	switch c.Type {
	case section.PersonalInfo:
		p := c.Personal
		if p.FullName != "" {
			b.paragraph("Name", run(p.FullName, runStyle{bold: true, size: 36, color: b.color()}))
		}
		if p.Title != "" {
			b.paragraph("", run(p.Title, runStyle{size: 24}))
		}
		if parts := p.ContactParts(); len(parts) > 0 {
			b.paragraph("", run(strings.Join(parts, " | "), runStyle{size: 18}))
		}
		return
	}

	b.heading(c.Heading)
	switch c.Type {
	case section.Summary:
		b.text(c.Text)
	case section.Experience:
		for _, j := range c.Jobs {
			b.entry(j.Company, j.Position, j.Period())
			if j.Location != "" {
				b.paragraph("", run(j.Location, runStyle{italic: true, size: 18}))
			}
			b.text(j.Description)
			b.bullets(j.Highlights)
		}
	case section.Education:
		for _, s := range c.Schools {
			degree := strings.TrimSpace(strings.Join(nonEmpty(s.Degree, s.Field), ", "))
			b.entry(s.Institution, degree, s.Period())
			if s.Grade != "" {
				b.text(s.Grade)
			}
			b.text(s.Description)
		}
	case section.Skills:
		groups := map[string][]string{}
		var order []string
		for _, s := range c.Skills {
			if _, ok := groups[s.Category]; !ok {
				order = append(order, s.Category)
			}
			name := s.Name
			if s.Level != "" {
				name += " (" + s.Level + ")"
			}
			groups[s.Category] = append(groups[s.Category], name)
		}
		for _, cat := range order {
			line := strings.Join(groups[cat], ", ")
			if cat != "" {
				b.paragraph("", run(cat+": ", runStyle{bold: true}), run(line, runStyle{}))
				continue
			}
			b.text(line)
		}
	case section.Projects:
		for _, p := range c.Projects {
			b.entry(p.Name, p.Role, p.Period())
			if p.URL != "" {
				b.text(p.URL)
			}
			b.text(p.Description)
			if len(p.Technologies) > 0 {
				b.paragraph("", run("Technologies: ", runStyle{bold: true}), run(strings.Join(p.Technologies, ", "), runStyle{}))
			}
			b.bullets(p.Highlights)
		}
	case section.Certifications:
		for _, cert := range c.Certificates {
			b.paragraph("", run(cert.Name, runStyle{bold: true}), run(joinPrefixed(" | ", cert.Issuer, cert.Date), runStyle{}))
		}
	case section.Languages:
		for _, l := range c.Languages {
			b.paragraph("", run(l.Name, runStyle{bold: true}), run(joinPrefixed(" – ", l.Proficiency), runStyle{}))
		}
	case section.Declaration:
		b.text(c.Statement.Text)
		if tail := strings.Join(nonEmpty(c.Statement.Place, c.Statement.Date), ", "); tail != "" {
			b.text(tail)
		}
		if c.Statement.Signature != "" {
			b.paragraph("", run(c.Statement.Signature, runStyle{bold: true}))
		}
	case section.Custom:
		b.text(c.Text)
		for _, e := range c.Entries {
			b.entry(e.Title, e.Subtitle, e.Date)
			b.text(e.Description)
			b.bullets(e.Highlights)
		}
	}
}

// entry 写一行 标题 | 副标题 | 时间。
func (b *Builder) entry(title, subtitle, period string) {
	var runs []*etree.Element
	if title != "" {
		runs = append(runs, run(title, runStyle{bold: true}))
	}
	if rest := joinPrefixed(" | ", subtitle, period); rest != "" {
		if title == "" {
			rest = strings.TrimPrefix(rest, " | ")
		}
		runs = append(runs, run(rest, runStyle{}))
	}
	if len(runs) > 0 {
		b.paragraph("", runs...)
	}
}

func (b *Builder) heading(text string) {
	if text == "" {
		return
	}
	b.paragraph("Heading1", run(strings.ToUpper(text), runStyle{bold: true, size: 24, color: b.color()}))
}

func (b *Builder) text(s string) {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.paragraph("", run(line, runStyle{}))
		}
	}
}

func (b *Builder) bullets(items []string) {
	for _, it := range items {
		if it = strings.TrimSpace(it); it == "" {
			continue
		}
		p := b.paragraph("ListBullet", run(it, runStyle{}))
		numPr := add(p.SelectElement("w:pPr"), "w:numPr")
		add(numPr, "w:ilvl", "w:val", "0")
		add(numPr, "w:numId", "w:val", "1")
	}
}

func (b *Builder) paragraph(style string, runs ...*etree.Element) *etree.Element {
	p := add(b.body, "w:p")
	if style != "" {
		add(add(p, "w:pPr"), "w:pStyle", "w:val", style)
	}
	for _, r := range runs {
		p.AddChild(r)
	}
	return p
}

// sectionProps 写入页面设置，必须是 body 的最后一个子元素。
func (b *Builder) sectionProps() {
	sect := add(b.body, "w:sectPr")
	if b.opts.Watermark != "" {
		add(sect, "w:footerReference", "w:type", "default", "r:id", footerRelID)
	}
	// A4：11906 x 16838 twips
	add(sect, "w:pgSz", "w:w", "11906", "w:h", "16838")
	add(sect, "w:pgMar",
		"w:top", "1134", "w:right", "1134", "w:bottom", "1134", "w:left", "1134",
		"w:header", "567", "w:footer", "454", "w:gutter", "0")
}

// color 返回去掉 # 的主题色。
func (b *Builder) color() string {
	c := strings.TrimPrefix(b.opts.ThemeColor, "#")
	if len(c) != 6 {
		return "2563EB"
	}
	return strings.ToUpper(c)
}

func (b *Builder) footer() *etree.Document {
	doc, ftr := newPart("w:ftr", "xmlns:w", nsW)
	p := add(ftr, "w:p")
	add(add(p, "w:pPr"), "w:jc", "w:val", "right")
	p.AddChild(run(b.opts.Watermark, runStyle{size: 16, color: "9CA3AF", font: "Helvetica"}))
	return doc
}

func (b *Builder) styles() *etree.Document {
	doc, styles := newPart("w:styles", "xmlns:w", nsW)

	defaults := add(styles, "w:docDefaults")
	rPr := add(add(defaults, "w:rPrDefault"), "w:rPr")
	add(rPr, "w:rFonts", "w:ascii", b.opts.Font, "w:hAnsi", b.opts.Font, "w:cs", b.opts.Font)
	add(rPr, "w:sz", "w:val", "20")
	add(add(add(defaults, "w:pPrDefault"), "w:pPr"), "w:spacing", "w:after", "80")

	style := func(id, name, basedOn string) *etree.Element {
		s := add(styles, "w:style", "w:type", "paragraph", "w:styleId", id)
		if basedOn == "" {
			s.CreateAttr("w:default", "1")
		}
		add(s, "w:name", "w:val", name)
		if basedOn != "" {
			add(s, "w:basedOn", "w:val", basedOn)
		}
		return s
	}
	style("Normal", "Normal", "")
	style("Name", "Name", "Normal")
	h1 := add(style("Heading1", "heading 1", "Normal"), "w:pPr")
	add(h1, "w:keepNext")
	add(h1, "w:spacing", "w:before", "240", "w:after", "80")
	add(add(h1, "w:pBdr"), "w:bottom", "w:val", "single", "w:sz", "4", "w:space", "1", "w:color", b.color())
	add(h1, "w:outlineLvl", "w:val", "0")
	style("ListBullet", "List Bullet", "Normal")
	return doc
}

func (b *Builder) coreProps() *etree.Document {
	title := b.opts.Title
	if title == "" {
		title = "Resume"
	}
	doc, props := newPart("cp:coreProperties",
		"xmlns:cp", "http://schemas.openxmlformats.org/package/2006/metadata/core-properties",
		"xmlns:dc", "http://purl.org/dc/elements/1.1/",
		"xmlns:dcterms", "http://purl.org/dc/terms/",
		"xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance",
	)
	add(props, "dc:title").SetText(title)
	add(props, "dc:creator").SetText("FolioForge")
	add(props, "dcterms:created", "xsi:type", "dcterms:W3CDTF").SetText(b.now().UTC().Format(time.RFC3339))
	return doc
}

type runStyle struct {
	bold   bool
	italic bool
	size   int // 半磅
	color  string
	font   string
}

func run(text string, st runStyle) *etree.Element {
	r := etree.NewElement("w:r")
	rPr := etree.NewElement("w:rPr")
	if st.font != "" {
		add(rPr, "w:rFonts", "w:ascii", st.font, "w:hAnsi", st.font)
	}
	if st.bold {
		add(rPr, "w:b")
	}
	if st.italic {
		add(rPr, "w:i")
	}
	if st.color != "" {
		add(rPr, "w:color", "w:val", st.color)
	}
	if st.size > 0 {
		add(rPr, "w:sz", "w:val", strconv.Itoa(st.size))
	}
	if len(rPr.ChildElements()) > 0 {
		r.AddChild(rPr)
	}
	add(r, "w:t", "xml:space", "preserve").SetText(text)
	return r
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// joinPrefixed 连接非空值，结果带前导分隔符；全空时返回空串。
func joinPrefixed(sep string, values ...string) string {
	kept := nonEmpty(values...)
	if len(kept) == 0 {
		return ""
	}
	return sep + strings.Join(kept, sep)
}
