package section

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sec(t Type, data string) Section {
	return Section{Type: t, Data: json.RawMessage(data)}
}

func TestExtract_EmptyAndMalformedData(t *testing.T) {
	inputs := []string{``, `null`, `{}`, `[]`, `"just text"`, `42`, `{"items": "nope"}`, `{broken`}
	for _, typ := range AllTypes {
		for _, raw := range inputs {
			c := Extract(sec(typ, raw))
			if typ == Summary && raw == `"just text"` {
				assert.False(t, c.Empty(), "summary accepts bare strings")
				continue
			}
			if typ == Declaration && raw == `"just text"` {
				assert.False(t, c.Empty())
				continue
			}
			if typ == Custom && raw == `"just text"` {
				assert.False(t, c.Empty())
				continue
			}
			assert.True(t, c.Empty(), "type=%s raw=%q", typ, raw)
		}
	}
}

func TestExtract_SkillsBareStringIsEmpty(t *testing.T) {
	c := Extract(sec(Skills, `"Go, Rust, SQL"`))
	assert.True(t, c.Empty())
	assert.Equal(t, "Skills", c.Heading)
}

func TestExtract_SummaryShapes(t *testing.T) {
	assert.Equal(t, "hello", Extract(sec(Summary, `{"text":" hello "}`)).Text)
	assert.Equal(t, "legacy", Extract(sec(Summary, `{"summary":"legacy"}`)).Text)
	assert.Equal(t, "bare", Extract(sec(Summary, `"bare"`)).Text)
}

func TestExtract_ExperienceCanonicalAndLegacy(t *testing.T) {
	canonical := Extract(sec(Experience, `{"items":[{"company":"Acme","position":"Dev","startDate":"2020","endDate":"2022","highlights":["a","b"]}]}`))
	require.Len(t, canonical.Jobs, 1)
	job := canonical.Jobs[0]
	assert.Equal(t, "Acme", job.Company)
	assert.Equal(t, "Dev", job.Position)
	assert.Equal(t, "2020 – 2022", job.Period())
	assert.Equal(t, []string{"a", "b"}, job.Highlights)

	legacy := Extract(sec(Experience, `[{"employer":"Globex","title":"Lead","start_date":"2019","current":true,"bullets":"- shipped\n- led"}, "junk"]`))
	require.Len(t, legacy.Jobs, 1)
	assert.Equal(t, "Globex", legacy.Jobs[0].Company)
	assert.Equal(t, "2019 – Present", legacy.Jobs[0].Period())
	assert.Equal(t, []string{"shipped", "led"}, legacy.Jobs[0].Highlights)
}

func TestExtract_SkillGroups(t *testing.T) {
	c := Extract(sec(Skills, `{"items":["Go",{"name":"SQL","level":"expert"},{"category":"Cloud","skills":["AWS","GCP"]}]}`))
	require.Len(t, c.Skills, 4)
	assert.Equal(t, Skill{Name: "Go"}, c.Skills[0])
	assert.Equal(t, "expert", c.Skills[1].Level)
	assert.Equal(t, "Cloud", c.Skills[3].Category)
}

func TestExtract_ProjectTechnologiesFromCSV(t *testing.T) {
	c := Extract(sec(Projects, `{"items":[{"title":"folio","technologies":"Go, Postgres"}]}`))
	require.Len(t, c.Projects, 1)
	assert.Equal(t, []string{"Go", "Postgres"}, c.Projects[0].Technologies)
}

func TestExtract_CustomHeading(t *testing.T) {
	c := Extract(sec(Custom, `{"title":"Volunteering","items":[{"title":"Food bank","date":"2021"}]}`))
	assert.Equal(t, "Volunteering", c.Heading)
	require.Len(t, c.Entries, 1)
}

func TestFirstPicksFirstMatch(t *testing.T) {
	list := []Section{
		{ID: 1, Type: Custom},
		{ID: 2, Type: Summary},
		{ID: 3, Type: Custom},
	}
	s, ok := First(list, Custom)
	require.True(t, ok)
	assert.Equal(t, uint(1), s.ID)
	_, ok = First(list, Skills)
	assert.False(t, ok)
}

func TestPlainText(t *testing.T) {
	text := PlainText(ExtractAll([]Section{
		sec(Summary, `{"text":"Builder of things"}`),
		sec(Skills, `{"items":["Go","Rust"]}`),
		sec(Languages, `{}`),
	}))
	assert.Contains(t, text, "Builder of things")
	assert.Contains(t, text, "Go, Rust")
	assert.NotContains(t, text, "Languages")
}
