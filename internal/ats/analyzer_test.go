package ats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folioforge/internal/credits"
	"folioforge/internal/section"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeGate struct {
	balance  int
	deducted int
}

func (g *fakeGate) Ensure(_ context.Context, _ uint, cost int) error {
	if g.balance < cost {
		return credits.ErrInsufficientCredits
	}
	return nil
}

func (g *fakeGate) Deduct(_ context.Context, _ uint, cost int, _, _ string) (int, error) {
	if g.balance < cost {
		return 0, credits.ErrInsufficientCredits
	}
	g.balance -= cost
	g.deducted += cost
	return g.balance, nil
}

const sampleReply = "```json\n" + `{
  "score": 78.6,
  "match_percentage": "64",
  "missing_keywords": {"skills": ["Kubernetes", " "], "experience": ["on-call"], "summary": []},
  "found_keywords": ["Go", "PostgreSQL"],
  "formatting_issues": "Tables detected",
  "summary": "Solid backend profile.",
  "role_fit": "strong",
  "suggestions": [{"section_type": "skills", "data": {"items": ["Go", "Kubernetes"]}}, {"section_type": "bogus", "data": {}}]
}` + "\n```"

func TestAnalyze_DeductsAfterSuccess(t *testing.T) {
	completer := &fakeCompleter{reply: sampleReply}
	gate := &fakeGate{balance: 5}
	a := NewAnalyzer(completer, gate, 2, nil)

	res, err := a.Analyze(context.Background(), 1, "Go developer", "Need Go and Kubernetes")
	require.NoError(t, err)
	assert.Equal(t, 79, res.Score)
	assert.Equal(t, 64, res.MatchPercentage)
	assert.Equal(t, []string{"Kubernetes"}, res.MissingKeywords.Skills)
	assert.Equal(t, []string{}, res.MissingKeywords.Summary)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, res.FoundKeywords)
	assert.Equal(t, []string{"Tables detected"}, res.FormattingIssues)
	assert.Equal(t, "strong", res.RoleFit)
	assert.Len(t, res.Suggestions, 2)
	assert.Equal(t, 3, res.CreditsRemaining)
	assert.Equal(t, 2, gate.deducted)
	assert.Contains(t, completer.prompt, "Need Go and Kubernetes")
}

func TestAnalyze_InsufficientCreditsSkipsAI(t *testing.T) {
	completer := &fakeCompleter{reply: sampleReply}
	a := NewAnalyzer(completer, &fakeGate{balance: 1}, 2, nil)

	_, err := a.Analyze(context.Background(), 1, "r", "j")
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)
	assert.Empty(t, completer.prompt)
}

func TestAnalyze_AIFailureDoesNotDeduct(t *testing.T) {
	gate := &fakeGate{balance: 5}
	a := NewAnalyzer(&fakeCompleter{err: errors.New("boom")}, gate, 2, nil)
	_, err := a.Analyze(context.Background(), 1, "r", "j")
	assert.ErrorIs(t, err, ErrAIFailed)
	assert.Zero(t, gate.deducted)

	a = NewAnalyzer(&fakeCompleter{reply: "sorry, I cannot"}, gate, 2, nil)
	_, err = a.Analyze(context.Background(), 1, "r", "j")
	assert.ErrorIs(t, err, ErrAIFailed)
	assert.Zero(t, gate.deducted)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	a := NewAnalyzer(&fakeCompleter{}, &fakeGate{balance: 5}, 2, nil)
	_, err := a.Analyze(context.Background(), 1, "  ", "j")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAutoApply(t *testing.T) {
	existing := []section.Section{
		{ID: 1, Type: section.Summary, Data: json.RawMessage(`{"text":"old","tone":"formal"}`), OrderIndex: 0},
		{ID: 2, Type: section.Custom, Data: json.RawMessage(`{"title":"A"}`), OrderIndex: 1},
		{ID: 3, Type: section.Custom, Data: json.RawMessage(`{"title":"B"}`), OrderIndex: 4},
		{ID: 4, Type: section.Skills, Data: json.RawMessage(`"Go, Rust"`), OrderIndex: 2},
	}
	changes := AutoApply(existing, []Suggestion{
		{SectionType: "summary", Data: json.RawMessage(`{"text":"new"}`)},
		{SectionType: "custom", Data: json.RawMessage(`{"text":"extra"}`)},
		{SectionType: "skills", Data: json.RawMessage(`{"items":["Go"]}`)},
		{SectionType: "languages", Data: json.RawMessage(`{"items":[{"name":"English"}]}`)},
		{SectionType: "summary", Data: json.RawMessage(`{"headline":"h"}`)},
		{SectionType: "nope", Data: json.RawMessage(`{}`)},
		{SectionType: "education", Data: json.RawMessage(`[1,2]`)},
	})
	require.Len(t, changes, 4)

	assert.Equal(t, uint(1), changes[0].Section.ID)
	assert.JSONEq(t, `{"text":"new","tone":"formal","headline":"h"}`, string(changes[0].Section.Data))

	assert.Equal(t, uint(2), changes[1].Section.ID)
	assert.JSONEq(t, `{"title":"A","text":"extra"}`, string(changes[1].Section.Data))

	assert.Equal(t, uint(4), changes[2].Section.ID)
	assert.JSONEq(t, `{"items":["Go"]}`, string(changes[2].Section.Data))

	assert.True(t, changes[3].Created)
	assert.Equal(t, section.Languages, changes[3].Section.Type)
	assert.Equal(t, 5, changes[3].Section.OrderIndex)

	// 输入不被修改
	assert.Equal(t, `{"text":"old","tone":"formal"}`, string(existing[0].Data))
}
