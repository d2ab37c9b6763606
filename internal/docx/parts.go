package docx

import "github.com/beevik/etree"

const (
	nsW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsPkgRels = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsTypes   = "http://schemas.openxmlformats.org/package/2006/content-types"

	relOfficeDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relCoreProps = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relStyles    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relNumbering = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"
	relFooter    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"

	footerRelID = "rIdFooter1"
)

// newPart 创建带 XML 声明的部件，attrs 为键值对。
func newPart(root string, attrs ...string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return doc, add(&doc.Element, root, attrs...)
}

// add 在 parent 下追加子元素，attrs 为键值对。
func add(parent *etree.Element, tag string, attrs ...string) *etree.Element {
	el := parent.CreateElement(tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		el.CreateAttr(attrs[i], attrs[i+1])
	}
	return el
}

type relationship struct {
	id, typ, target string
}

func relationships(rels ...relationship) *etree.Document {
	doc, root := newPart("Relationships", "xmlns", nsPkgRels)
	for _, r := range rels {
		add(root, "Relationship", "Id", r.id, "Type", r.typ, "Target", r.target)
	}
	return doc
}

func rootRels() *etree.Document {
	return relationships(
		relationship{"rId1", relOfficeDoc, "word/document.xml"},
		relationship{"rId2", relCoreProps, "docProps/core.xml"},
	)
}

func documentRels(withFooter bool) *etree.Document {
	rels := []relationship{
		{"rIdStyles", relStyles, "styles.xml"},
		{"rIdNumbering", relNumbering, "numbering.xml"},
	}
	if withFooter {
		rels = append(rels, relationship{footerRelID, relFooter, "footer1.xml"})
	}
	return relationships(rels...)
}

func contentTypes(withFooter bool) *etree.Document {
	doc, types := newPart("Types", "xmlns", nsTypes)
	add(types, "Default", "Extension", "rels", "ContentType", "application/vnd.openxmlformats-package.relationships+xml")
	add(types, "Default", "Extension", "xml", "ContentType", "application/xml")
	overrides := [][2]string{
		{"/word/document.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"},
		{"/word/styles.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"},
		{"/word/numbering.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"},
		{"/docProps/core.xml", "application/vnd.openxmlformats-package.core-properties+xml"},
	}
	if withFooter {
		overrides = append(overrides, [2]string{"/word/footer1.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"})
	}
	for _, o := range overrides {
		add(types, "Override", "PartName", o[0], "ContentType", o[1])
	}
	return doc
}

// numbering 定义唯一的项目符号列表，numId=1。
func numbering() *etree.Document {
	doc, root := newPart("w:numbering", "xmlns:w", nsW)
	abstract := add(root, "w:abstractNum", "w:abstractNumId", "0")
	add(abstract, "w:multiLevelType", "w:val", "singleLevel")
	lvl := add(abstract, "w:lvl", "w:ilvl", "0")
	add(lvl, "w:start", "w:val", "1")
	add(lvl, "w:numFmt", "w:val", "bullet")
	add(lvl, "w:lvlText", "w:val", "•")
	add(lvl, "w:lvlJc", "w:val", "left")
	add(add(lvl, "w:pPr"), "w:ind", "w:left", "360", "w:hanging", "360")
	add(add(root, "w:num", "w:numId", "1"), "w:abstractNumId", "w:val", "0")
	return doc
}
