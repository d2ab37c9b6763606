package section

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Personal 是 personal_info 的规范化形状。
type Personal struct {
	FullName string
	Title    string
	Email    string
	Phone    string
	Location string
	Website  string
	LinkedIn string
	GitHub   string
	Photo    string
}

// Job 是 experience 的单条记录。
type Job struct {
	Company     string
	Position    string
	Location    string
	StartDate   string
	EndDate     string
	Current     bool
	Description string
	Highlights  []string
}

// School 是 education 的单条记录。
type School struct {
	Institution string
	Degree      string
	Field       string
	Location    string
	StartDate   string
	EndDate     string
	Grade       string
	Description string
}

type Skill struct {
	Name     string
	Level    string
	Category string
}

type Project struct {
	Name         string
	Role         string
	URL          string
	Description  string
	Technologies []string
	Highlights   []string
	StartDate    string
	EndDate      string
}

type Certificate struct {
	Name   string
	Issuer string
	Date   string
	URL    string
}

type Language struct {
	Name        string
	Proficiency string
}

// Statement 是 declaration 的规范化形状。
type Statement struct {
	Text      string
	Place     string
	Date      string
	Signature string
}

// Entry 是 custom 章节的通用条目。
type Entry struct {
	Title       string
	Subtitle    string
	Date        string
	Description string
	Highlights  []string
}

// Content 是所有模板共享的章节读取结果。
// 只有与 Type 对应的字段会被填充。
type Content struct {
	Type         Type
	Heading      string
	Personal     Personal
	Text         string
	Jobs         []Job
	Schools      []School
	Skills       []Skill
	Projects     []Project
	Certificates []Certificate
	Languages    []Language
	Statement    Statement
	Entries      []Entry
}

// Empty 判断章节是否没有可渲染的内容。
func (c Content) Empty() bool {
	switch c.Type {
	case PersonalInfo:
		return c.Personal.Empty()
	case Summary:
		return c.Text == ""
	case Experience:
		return len(c.Jobs) == 0
	case Education:
		return len(c.Schools) == 0
	case Skills:
		return len(c.Skills) == 0
	case Projects:
		return len(c.Projects) == 0
	case Certifications:
		return len(c.Certificates) == 0
	case Languages:
		return len(c.Languages) == 0
	case Declaration:
		return c.Statement.Text == ""
	case Custom:
		return c.Text == "" && len(c.Entries) == 0
	default:
		return true
	}
}

// Empty 判断个人信息是否全空。
func (p Personal) Empty() bool {
	return p.FullName == "" && p.Title == "" && len(p.ContactParts()) == 0 && p.Photo == ""
}

// ContactParts 按固定顺序返回非空联系方式。
func (p Personal) ContactParts() []string {
	parts := make([]string, 0, 6)
	for _, v := range []string{p.Email, p.Phone, p.Location, p.Website, p.LinkedIn, p.GitHub} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return parts
}

// Period 拼接起止日期，current 为真时结束日期写作 Present。
func Period(start, end string, current bool) string {
	if current && end == "" {
		end = "Present"
	}
	switch {
	case start != "" && end != "":
		return start + " – " + end
	case start != "":
		return start
	default:
		return end
	}
}

func (j Job) Period() string     { return Period(j.StartDate, j.EndDate, j.Current) }
func (s School) Period() string  { return Period(s.StartDate, s.EndDate, false) }
func (p Project) Period() string { return Period(p.StartDate, p.EndDate, false) }

// Extract 把任意形状的 section_data 解析成规范化内容。
// 缺失或格式错误的数据得到空内容，不返回错误。
func Extract(s Section) Content {
	c := Content{Type: s.Type, Heading: s.Type.DefaultHeading()}
	v := decode(s.Data)

	switch s.Type {
	case PersonalInfo:
		if m, ok := v.(map[string]any); ok {
			c.Personal = personalFrom(m)
		}
	case Summary:
		c.Text = textFrom(v, "text", "summary", "content", "description")
	case Experience:
		for _, it := range items(v, "experience", "jobs") {
			if j, ok := jobFrom(it); ok {
				c.Jobs = append(c.Jobs, j)
			}
		}
	case Education:
		for _, it := range items(v, "education", "schools") {
			if e, ok := schoolFrom(it); ok {
				c.Schools = append(c.Schools, e)
			}
		}
	case Skills:
		for _, it := range items(v, "skills") {
			c.Skills = append(c.Skills, skillsFrom(it, "")...)
		}
	case Projects:
		for _, it := range items(v, "projects") {
			if p, ok := projectFrom(it); ok {
				c.Projects = append(c.Projects, p)
			}
		}
	case Certifications:
		for _, it := range items(v, "certifications", "certificates") {
			if cert, ok := certificateFrom(it); ok {
				c.Certificates = append(c.Certificates, cert)
			}
		}
	case Languages:
		for _, it := range items(v, "languages") {
			if l, ok := languageFrom(it); ok {
				c.Languages = append(c.Languages, l)
			}
		}
	case Declaration:
		c.Statement = statementFrom(v)
	case Custom:
		if m, ok := v.(map[string]any); ok {
			if title := str(m, "title", "heading", "name"); title != "" {
				c.Heading = title
			}
		}
		c.Text = textFrom(v, "text", "content", "description")
		for _, it := range items(v, "entries") {
			if e, ok := entryFrom(it); ok {
				c.Entries = append(c.Entries, e)
			}
		}
	}
	return c
}

// ExtractAll 依次解析章节。
func ExtractAll(sections []Section) []Content {
	out := make([]Content, 0, len(sections))
	for _, s := range sections {
		out = append(out, Extract(s))
	}
	return out
}

func decode(raw json.RawMessage) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// items 兼容 {items:[...]}、裸数组以及少量历史字段名。
func items(v any, extraKeys ...string) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		for _, key := range append([]string{"items", "entries"}, extraKeys...) {
			if list, ok := t[key].([]any); ok {
				return list
			}
		}
	}
	return nil
}

func textFrom(v any, keys ...string) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return str(t, keys...)
	}
	return ""
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func flag(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok && b {
			return true
		}
	}
	return false
}

// lines 读取字符串数组，或按换行拆分的字符串。
func lines(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, it := range v {
				var s string
				switch x := it.(type) {
				case string:
					s = x
				case map[string]any:
					s = str(x, "text", "name", "value")
				}
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			var out []string
			for _, line := range strings.Split(v, "\n") {
				line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-•*"))
				if line != "" {
					out = append(out, line)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// csv 与 lines 相同，但字符串按逗号拆分。
func csv(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			var out []string
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			if len(out) > 0 {
				return out
			}
			continue
		}
		if out := lines(m, k); len(out) > 0 {
			return out
		}
	}
	return nil
}

func personalFrom(m map[string]any) Personal {
	return Personal{
		FullName: str(m, "fullName", "full_name", "name"),
		Title:    str(m, "title", "jobTitle", "job_title", "headline"),
		Email:    str(m, "email"),
		Phone:    str(m, "phone", "mobile"),
		Location: str(m, "location", "address", "city"),
		Website:  str(m, "website", "portfolio", "url"),
		LinkedIn: str(m, "linkedin", "linkedIn"),
		GitHub:   str(m, "github", "gitHub"),
		Photo:    str(m, "photo", "photoUrl", "photo_url", "avatar"),
	}
}

func startOf(m map[string]any) string { return str(m, "startDate", "start_date", "start", "from") }
func endOf(m map[string]any) string   { return str(m, "endDate", "end_date", "end", "to") }

func jobFrom(v any) (Job, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Job{}, false
	}
	j := Job{
		Company:     str(m, "company", "employer", "organization", "organisation"),
		Position:    str(m, "position", "title", "role", "jobTitle", "job_title"),
		Location:    str(m, "location"),
		StartDate:   startOf(m),
		EndDate:     endOf(m),
		Current:     flag(m, "current", "isCurrent", "is_current"),
		Description: str(m, "description", "summary", "details"),
		Highlights:  lines(m, "highlights", "bullets", "achievements", "responsibilities"),
	}
	return j, j.Company != "" || j.Position != ""
}

func schoolFrom(v any) (School, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return School{}, false
	}
	s := School{
		Institution: str(m, "institution", "school", "university", "college"),
		Degree:      str(m, "degree", "qualification"),
		Field:       str(m, "field", "fieldOfStudy", "field_of_study", "major"),
		Location:    str(m, "location"),
		StartDate:   startOf(m),
		EndDate:     endOf(m),
		Grade:       str(m, "grade", "gpa", "score"),
		Description: str(m, "description"),
	}
	return s, s.Institution != "" || s.Degree != ""
}

// skillsFrom 接受字符串、{name, level} 或 {category, skills:[...]} 分组。
func skillsFrom(v any, category string) []Skill {
	switch t := v.(type) {
	case string:
		if name := strings.TrimSpace(t); name != "" {
			return []Skill{{Name: name, Category: category}}
		}
	case map[string]any:
		if group, ok := t["skills"].([]any); ok {
			cat := str(t, "category", "name", "title")
			var out []Skill
			for _, it := range group {
				out = append(out, skillsFrom(it, cat)...)
			}
			return out
		}
		name := str(t, "name", "skill", "title")
		if name == "" {
			return nil
		}
		cat := str(t, "category")
		if cat == "" {
			cat = category
		}
		return []Skill{{Name: name, Level: str(t, "level", "proficiency"), Category: cat}}
	}
	return nil
}

func projectFrom(v any) (Project, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Project{}, false
	}
	p := Project{
		Name:         str(m, "name", "title"),
		Role:         str(m, "role"),
		URL:          str(m, "url", "link", "website"),
		Description:  str(m, "description", "summary"),
		Technologies: csv(m, "technologies", "techStack", "tech", "stack"),
		Highlights:   lines(m, "highlights", "bullets"),
		StartDate:    startOf(m),
		EndDate:      endOf(m),
	}
	return p, p.Name != ""
}

func certificateFrom(v any) (Certificate, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return Certificate{Name: s}, s != ""
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Certificate{}, false
	}
	c := Certificate{
		Name:   str(m, "name", "title"),
		Issuer: str(m, "issuer", "organization", "authority"),
		Date:   str(m, "date", "issueDate", "issue_date", "year"),
		URL:    str(m, "url", "link"),
	}
	return c, c.Name != ""
}

func languageFrom(v any) (Language, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		return Language{Name: s}, s != ""
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Language{}, false
	}
	l := Language{
		Name:        str(m, "name", "language"),
		Proficiency: str(m, "proficiency", "level", "fluency"),
	}
	return l, l.Name != ""
}

func statementFrom(v any) Statement {
	switch t := v.(type) {
	case string:
		return Statement{Text: strings.TrimSpace(t)}
	case map[string]any:
		return Statement{
			Text:      str(t, "text", "declaration", "content"),
			Place:     str(t, "place", "location"),
			Date:      str(t, "date"),
			Signature: str(t, "signature", "name"),
		}
	}
	return Statement{}
}

func entryFrom(v any) (Entry, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Entry{}, false
	}
	e := Entry{
		Title:       str(m, "title", "name", "heading"),
		Subtitle:    str(m, "subtitle", "organization", "role"),
		Date:        str(m, "date", "year", "period"),
		Description: str(m, "description", "text"),
		Highlights:  lines(m, "highlights", "bullets"),
	}
	return e, e.Title != "" || e.Description != ""
}
