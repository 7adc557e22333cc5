// Package oracle turns page and contract text into typed structures via an LLM.
// No operation returns an error: transport and decoding failures yield the
// operation's empty result with OK unset.
package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/llm"
	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/internal/siteconfig"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

const (
	extractInputLimit   = 16000
	classifyPreview     = 3000
	relevanceInputLimit = 4000

	defaultContractSummary = "分析完成"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// ExtractionCache stores successful article extractions.
type ExtractionCache interface {
	GetExtraction(ctx context.Context, key string, dst interface{}) (bool, error)
	SetExtraction(ctx context.Context, key string, value interface{}) error
}

type Options struct {
	ClassifyTimeout     time.Duration
	ExtractTimeout      time.Duration
	ContractTimeout     time.Duration
	ContractTemperature float32
}

type Engine struct {
	llm   Completer
	sites siteconfig.Provider
	cache ExtractionCache
	opts  Options
}

func NewEngine(completer Completer, sites siteconfig.Provider, opts Options) *Engine {
	if opts.ClassifyTimeout == 0 {
		opts.ClassifyTimeout = 60 * time.Second
	}
	if opts.ExtractTimeout == 0 {
		opts.ExtractTimeout = 120 * time.Second
	}
	if opts.ContractTimeout == 0 {
		opts.ContractTimeout = 120 * time.Second
	}
	if opts.ContractTemperature == 0 {
		opts.ContractTemperature = 0.3
	}
	return &Engine{llm: completer, sites: sites, opts: opts}
}

// WithCache enables the extraction cache. A nil cache disables it.
func (e *Engine) WithCache(cache ExtractionCache) *Engine {
	e.cache = cache
	return e
}

// ClassifyPage asks whether pageURL is a list or an article page. links is
// the pre-filtered candidate list shown to the model.
func (e *Engine) ClassifyPage(ctx context.Context, pageURL, markdown string, links []Link) PageClassification {
	site := e.sites.SiteConfig(pageURL)

	var wire classificationWire
	err := e.call(ctx, "classify", llm.CompletionRequest{
		SystemPrompt: classificationPrompt(pageURL, site.Name, site.LinkHints),
		UserPrompt:   classificationInput(pageURL, links, utils.TruncateRunes(markdown, classifyPreview)),
		JSON:         true,
		Timeout:      e.opts.ClassifyTimeout,
	}, &wire)
	if err != nil {
		logger.Warn("Page classification failed", zap.String("url", pageURL), zap.Error(err))
		return PageClassification{PageType: PageArticle}
	}

	result := PageClassification{
		OK:       true,
		PageType: PageArticle,
		Links:    []string(wire.Links),
		Reason:   string(wire.Reason),
	}
	if PageType(wire.PageType) == PageList {
		result.PageType = PageList
	}

	logger.Info("Page classified",
		zap.String("site", site.Name),
		zap.String("url", pageURL),
		zap.String("page_type", string(result.PageType)),
		zap.Int("links", len(result.Links)),
	)
	return result
}

func (e *Engine) ExtractArticle(ctx context.Context, markdown, pageURL string) ArticleExtraction {
	input := utils.TruncateRunes(markdown, extractInputLimit)
	key := utils.HashParts(pageURL, input)

	if e.cache != nil {
		var cached ArticleExtraction
		ok, err := e.cache.GetExtraction(ctx, key, &cached)
		if err != nil {
			logger.Warn("Extraction cache read failed", zap.Error(err))
		} else if ok && cached.OK {
			return cached
		}
	}

	hints := siteconfig.DefaultSite.ContentHints
	if pageURL != "" {
		hints = e.sites.SiteConfig(pageURL).ContentHints
	}

	var wire articleWire
	err := e.call(ctx, "extract", llm.CompletionRequest{
		SystemPrompt: extractionPrompt(hints),
		UserPrompt:   input,
		JSON:         true,
		Timeout:      e.opts.ExtractTimeout,
	}, &wire)
	if err != nil {
		logger.Warn("Article extraction failed", zap.String("url", pageURL), zap.Error(err))
		return ArticleExtraction{}
	}

	result := wire.toExtraction()
	if e.cache != nil {
		if err := e.cache.SetExtraction(ctx, key, result); err != nil {
			logger.Warn("Extraction cache write failed", zap.Error(err))
		}
	}
	return result
}

// ExtractContractRisks analyses one chunk of contract text. contextName
// identifies the document and chunk position to the model.
func (e *Engine) ExtractContractRisks(ctx context.Context, text, contextName, contractType string) ContractAnalysis {
	var wire contractWire
	err := e.call(ctx, "contract", llm.CompletionRequest{
		SystemPrompt: contractPrompt,
		UserPrompt:   contractInput(contextName, contractType, text),
		Temperature:  e.opts.ContractTemperature,
		JSON:         true,
		Timeout:      e.opts.ContractTimeout,
	}, &wire)
	if err != nil {
		logger.Warn("Contract analysis failed", zap.String("context", contextName), zap.Error(err))
		return ContractAnalysis{
			Risks:            []RiskFinding{},
			OverallRiskLevel: "Low",
			Summary:          "分析过程出错: " + err.Error(),
		}
	}

	result := ContractAnalysis{
		OK:               true,
		Risks:            make([]RiskFinding, 0, len(wire.Risks)),
		OverallRiskLevel: string(wire.OverallRiskLevel),
		Summary:          string(wire.Summary),
	}
	if result.OverallRiskLevel == "" {
		result.OverallRiskLevel = "Low"
	}
	if result.Summary == "" {
		result.Summary = defaultContractSummary
	}
	for _, r := range wire.Risks {
		result.Risks = append(result.Risks, RiskFinding{
			RiskCategory: string(r.RiskCategory),
			RiskLevel:    string(r.RiskLevel),
			ClauseID:     string(r.ClauseID),
			ClauseText:   string(r.ClauseText),
			RiskReason:   string(r.RiskReason),
			Explanation:  string(r.Explanation),
			Confidence:   float64(r.Confidence),
		})
	}
	return result
}

func (e *Engine) AnalyzeRelevance(ctx context.Context, text string) Relevance {
	if text == "" {
		return Relevance{ValueLevel: "Low", Reason: "Empty text"}
	}

	var wire relevanceWire
	err := e.call(ctx, "relevance", llm.CompletionRequest{
		SystemPrompt: relevancePrompt,
		UserPrompt:   utils.TruncateRunes(text, relevanceInputLimit),
		JSON:         true,
	}, &wire)
	if err != nil {
		return Relevance{ValueLevel: "Low", Reason: err.Error()}
	}

	level := string(wire.ValueLevel)
	if level != "High" {
		level = "Low"
	}
	return Relevance{ValueLevel: level, Reason: string(wire.Reason)}
}

func (e *Engine) call(ctx context.Context, operation string, req llm.CompletionRequest, out interface{}) error {
	start := time.Now()
	resp, err := e.llm.Complete(ctx, req)
	if err == nil {
		err = decodeModelJSON(resp.Content, out)
	}
	metrics.OracleDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.OracleCalls.WithLabelValues(operation, status).Inc()
	return err
}
