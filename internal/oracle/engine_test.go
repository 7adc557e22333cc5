package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskintel/backend/internal/llm"
	"github.com/riskintel/backend/internal/siteconfig"
)

type fakeCompleter struct {
	mu       sync.Mutex
	content  string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

type memoryCache struct {
	data map[string][]byte
}

func (m *memoryCache) GetExtraction(_ context.Context, key string, dst interface{}) (bool, error) {
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memoryCache) SetExtraction(_ context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	m.data[key] = b
	return err
}

func newEngine(c Completer) *Engine {
	sites := siteconfig.NewStatic(map[string]siteconfig.Site{
		"gov.uz": {Name: "Uzbekistan", LinkHints: "uz-link-hints", ContentHints: "uz-content-hints"},
	}, nil)
	return NewEngine(c, sites, Options{})
}

func TestClassifyPage(t *testing.T) {
	fc := &fakeCompleter{content: "```json\n{\"page_type\":\"list\",\"links\":[\"https://gov.uz/a\"],\"reason\":\"many links\"}\n```"}
	e := newEngine(fc)

	got := e.ClassifyPage(context.Background(), "https://gov.uz/en/news", strings.Repeat("x", 5000), []Link{{Text: "A", Href: "https://gov.uz/a"}})

	assert.True(t, got.OK)
	assert.Equal(t, PageList, got.PageType)
	assert.Equal(t, []string{"https://gov.uz/a"}, got.Links)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	assert.True(t, req.JSON)
	assert.Contains(t, req.SystemPrompt, "uz-link-hints")
	assert.Contains(t, req.SystemPrompt, "【站点】Uzbekistan")
	assert.Contains(t, req.UserPrompt, "- A: https://gov.uz/a")
	assert.NotContains(t, req.UserPrompt, strings.Repeat("x", 3001))
}

func TestClassifyPageFailureIsArticle(t *testing.T) {
	for name, fc := range map[string]*fakeCompleter{
		"transport": {err: errors.New("timeout")},
		"garbage":   {content: "I cannot help with that"},
	} {
		t.Run(name, func(t *testing.T) {
			got := newEngine(fc).ClassifyPage(context.Background(), "https://example.com", "md", nil)
			assert.False(t, got.OK)
			assert.Equal(t, PageArticle, got.PageType)
			assert.Empty(t, got.Links)
		})
	}
}

func TestExtractArticleLenientFields(t *testing.T) {
	fc := &fakeCompleter{content: `{"title":"Tariff rules","title_zh":null,"publish_date":"2024-03-01",
		"keywords":"tariff, 关税","summary":"摘要","main_content":"body","confidence":"0.8"}`}
	e := newEngine(fc)

	got := e.ExtractArticle(context.Background(), "markdown", "https://gov.uz/en/news/view/1")

	assert.True(t, got.OK)
	assert.Equal(t, "Tariff rules", got.Title)
	assert.Empty(t, got.TitleZH)
	require.NotNil(t, got.PublishDate)
	assert.Equal(t, "2024-03-01", *got.PublishDate)
	assert.Equal(t, []string{"tariff", "关税"}, got.Keywords)
	assert.Equal(t, 0.8, got.Confidence)
	assert.Contains(t, fc.requests[0].SystemPrompt, "uz-content-hints")
}

func TestExtractArticleNullDate(t *testing.T) {
	fc := &fakeCompleter{content: `{"title":"x","publish_date":null,"keywords":["a",1]}`}
	got := newEngine(fc).ExtractArticle(context.Background(), "md", "")
	assert.Nil(t, got.PublishDate)
	assert.Equal(t, []string{"a", "1"}, got.Keywords)
}

func TestExtractArticleTruncatesInput(t *testing.T) {
	fc := &fakeCompleter{content: `{}`}
	newEngine(fc).ExtractArticle(context.Background(), strings.Repeat("文", 20000), "https://example.com")
	assert.Equal(t, 16000, len([]rune(fc.requests[0].UserPrompt)))
}

func TestExtractArticleFailure(t *testing.T) {
	got := newEngine(&fakeCompleter{err: errors.New("boom")}).ExtractArticle(context.Background(), "md", "https://example.com")
	assert.False(t, got.OK)
	assert.Empty(t, got.Title)
}

func TestExtractArticleUsesCache(t *testing.T) {
	fc := &fakeCompleter{content: `{"title":"Cached"}`}
	e := newEngine(fc).WithCache(&memoryCache{data: map[string][]byte{}})

	first := e.ExtractArticle(context.Background(), "md", "https://example.com/a")
	second := e.ExtractArticle(context.Background(), "md", "https://example.com/a")

	assert.Equal(t, first, second)
	assert.Len(t, fc.requests, 1)

	e.ExtractArticle(context.Background(), "other", "https://example.com/a")
	assert.Len(t, fc.requests, 2)
}

func TestExtractContractRisks(t *testing.T) {
	fc := &fakeCompleter{content: `{"risks":[{"risk_category":"单方解约权","risk_level":"High","clause_id":"第7条",
		"clause_text":"甲方可随时解除合同","confidence":0.9}],"overall_risk_level":"High"}`}
	e := newEngine(fc)

	got := e.ExtractContractRisks(context.Background(), "text", "lease.pdf (第1部分，共1部分)", "")

	assert.True(t, got.OK)
	assert.Equal(t, "High", got.OverallRiskLevel)
	assert.Equal(t, "分析完成", got.Summary)
	require.Len(t, got.Risks, 1)
	assert.Equal(t, "第7条", got.Risks[0].ClauseID)

	req := fc.requests[0]
	assert.Equal(t, float32(0.3), req.Temperature)
	assert.Equal(t, "【合同名称】lease.pdf (第1部分，共1部分)\n\n【合同条款内容】\ntext", req.UserPrompt)
}

func TestExtractContractRisksDefaults(t *testing.T) {
	got := newEngine(&fakeCompleter{content: `{}`}).ExtractContractRisks(context.Background(), "t", "c", "EPC")
	assert.Equal(t, "Low", got.OverallRiskLevel)
	assert.Empty(t, got.Risks)

	failed := newEngine(&fakeCompleter{err: errors.New("down")}).ExtractContractRisks(context.Background(), "t", "c", "")
	assert.False(t, failed.OK)
	assert.Equal(t, "Low", failed.OverallRiskLevel)
	assert.Equal(t, "分析过程出错: down", failed.Summary)
	assert.NotNil(t, failed.Risks)
}

func TestAnalyzeRelevance(t *testing.T) {
	e := newEngine(&fakeCompleter{content: `{"value_level":"High","reason":"new sanctions"}`})
	assert.Equal(t, Relevance{ValueLevel: "High", Reason: "new sanctions"}, e.AnalyzeRelevance(context.Background(), "text"))

	assert.Equal(t, "Empty text", e.AnalyzeRelevance(context.Background(), "").Reason)

	failed := newEngine(&fakeCompleter{err: errors.New("nope")}).AnalyzeRelevance(context.Background(), "x")
	assert.Equal(t, "Low", failed.ValueLevel)
	assert.Equal(t, "nope", failed.Reason)
}
