package ats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"folioforge/internal/ai"
	"folioforge/internal/credits"
	"folioforge/internal/metrics"
)

var (
	// ErrEmptyInput 表示简历文本或职位描述为空。
	ErrEmptyInput = errors.New("resume text and job description are required")
	// ErrAIFailed 表示 AI 调用或结果解析失败。
	ErrAIFailed = errors.New("ai analysis failed")
)

// MissingKeywords 按章节归类缺失的关键词。
type MissingKeywords struct {
	Skills     []string `json:"skills"`
	Experience []string `json:"experience"`
	Summary    []string `json:"summary"`
}

// Result 是一次 ATS 分析的结构化结果。
type Result struct {
	Score            int             `json:"score"`
	MatchPercentage  int             `json:"match_percentage"`
	MissingKeywords  MissingKeywords `json:"missing_keywords"`
	FoundKeywords    []string        `json:"found_keywords"`
	FormattingIssues []string        `json:"formatting_issues"`
	Summary          string          `json:"summary"`
	RoleFit          string          `json:"role_fit"`
	Suggestions      []Suggestion    `json:"suggestions,omitempty"`
	CreditsRemaining int             `json:"credits_remaining"`
}

// CreditGate 是分析前后的积分检查与扣减。
type CreditGate interface {
	Ensure(ctx context.Context, userID uint, cost int) error
	Deduct(ctx context.Context, userID uint, cost int, reason, ref string) (int, error)
}

// Analyzer 把关键词差距分析委托给 AI，自身只负责积分与结果整形。
type Analyzer struct {
	completer ai.Completer
	credits   CreditGate
	cost      int
	logger    *slog.Logger
}

// NewAnalyzer 创建分析器。
func NewAnalyzer(completer ai.Completer, gate CreditGate, cost int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{completer: completer, credits: gate, cost: cost, logger: logger}
}

// Cost 返回单次分析消耗的积分。
func (a *Analyzer) Cost() int { return a.cost }

// Analyze 检查余额、调用 AI、解析结果，成功后才扣减积分。
func (a *Analyzer) Analyze(ctx context.Context, userID uint, resumeText, jobDescription string) (Result, error) {
	resumeText = strings.TrimSpace(resumeText)
	jobDescription = strings.TrimSpace(jobDescription)
	if resumeText == "" || jobDescription == "" {
		return Result{}, ErrEmptyInput
	}

	if err := a.credits.Ensure(ctx, userID, a.cost); err != nil {
		return Result{}, err
	}

	raw, err := a.completer.Complete(ctx, systemPrompt, buildPrompt(resumeText, jobDescription))
	metrics.ObserveAICall("ats", err)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrAIFailed, err)
	}

	remaining, err := a.credits.Deduct(ctx, userID, a.cost, credits.ReasonATSAnalysis, "")
	if err != nil {
		// 余额在调用期间被其他请求用完，结果不返回
		return Result{}, err
	}
	result.CreditsRemaining = remaining

	a.logger.Info("ats analysis completed",
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("score", result.Score),
		slog.Int("credits_remaining", remaining),
	)
	return result, nil
}

// ParseResult 从模型输出中提取结果。数值字段接受数字或数字字符串。
func ParseResult(raw string) (Result, error) {
	obj, err := ai.ExtractJSON(raw)
	if err != nil {
		return Result{}, err
	}
	doc := gjson.Parse(obj)

	res := Result{
		Score:           clampPercent(doc.Get("score")),
		MatchPercentage: clampPercent(doc.Get("match_percentage")),
		MissingKeywords: MissingKeywords{
			Skills:     stringList(doc.Get("missing_keywords.skills")),
			Experience: stringList(doc.Get("missing_keywords.experience")),
			Summary:    stringList(doc.Get("missing_keywords.summary")),
		},
		FoundKeywords:    stringList(doc.Get("found_keywords")),
		FormattingIssues: stringList(doc.Get("formatting_issues")),
		Summary:          strings.TrimSpace(doc.Get("summary").String()),
		RoleFit:          strings.TrimSpace(doc.Get("role_fit").String()),
	}
	if !doc.Get("match_percentage").Exists() {
		res.MatchPercentage = res.Score
	}

	doc.Get("suggestions").ForEach(func(_, v gjson.Result) bool {
		typ := strings.TrimSpace(v.Get("section_type").String())
		data := v.Get("data")
		if typ != "" && data.IsObject() {
			res.Suggestions = append(res.Suggestions, Suggestion{SectionType: typ, Data: []byte(data.Raw)})
		}
		return true
	})
	return res, nil
}

func clampPercent(v gjson.Result) int {
	n := int(v.Float() + 0.5)
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return n
	}
}

func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		if s := strings.TrimSpace(v.String()); s != "" && v.Type == gjson.String {
			out = append(out, s)
		}
		return out
	}
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
