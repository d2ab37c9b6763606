package section

import "strings"

// PlainText 把章节内容拼成纯文本，供关键词分析等不关心排版的场景使用。
func PlainText(contents []Content) string {
	var b strings.Builder
	line := func(parts ...string) {
		var kept []string
		for _, p := range parts {
			if p != "" {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			b.WriteString(strings.Join(kept, " | "))
			b.WriteByte('\n')
		}
	}

	for _, c := range contents {
		if c.Empty() {
			continue
		}
		if c.Heading != "" {
			b.WriteString("## " + c.Heading + "\n")
		}
		switch c.Type {
		case PersonalInfo:
			line(c.Personal.FullName, c.Personal.Title)
			line(c.Personal.ContactParts()...)
		case Summary:
			line(c.Text)
		case Experience:
			for _, j := range c.Jobs {
				line(j.Company, j.Position, j.Period(), j.Location)
				line(j.Description)
				for _, h := range j.Highlights {
					line("- " + h)
				}
			}
		case Education:
			for _, s := range c.Schools {
				line(s.Institution, s.Degree, s.Field, s.Period(), s.Grade)
			}
		case Skills:
			names := make([]string, 0, len(c.Skills))
			for _, s := range c.Skills {
				names = append(names, s.Name)
			}
			line(strings.Join(names, ", "))
		case Projects:
			for _, p := range c.Projects {
				line(p.Name, p.Role, p.Period())
				line(p.Description)
				line(strings.Join(p.Technologies, ", "))
				for _, h := range p.Highlights {
					line("- " + h)
				}
			}
		case Certifications:
			for _, cert := range c.Certificates {
				line(cert.Name, cert.Issuer, cert.Date)
			}
		case Languages:
			for _, l := range c.Languages {
				line(l.Name, l.Proficiency)
			}
		case Declaration:
			line(c.Statement.Text)
		case Custom:
			line(c.Text)
			for _, e := range c.Entries {
				line(e.Title, e.Subtitle, e.Date)
				line(e.Description)
			}
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
