// Package ingestion runs one crawl of an intelligence source: fetch, discover
// article links, extract and filter articles, and commit the result.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/fetcher"
	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/internal/siteconfig"
	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/internal/storage/sqlstore"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

const (
	MsgEmptyContent = "Crawl failed (Empty content)"
	MsgNoArticles   = "No articles extracted"

	maxErrorRunes  = 200
	fallbackRunes  = 200
	unknownAuthor  = "Unknown"
	saveOnFailTime = 10 * time.Second
)

// Store is the persistence the processor needs.
type Store interface {
	GetSource(ctx context.Context, id string) (*models.Source, error)
	SaveSourceStatus(ctx context.Context, src *models.Source) error
	ExistingItemURLs(ctx context.Context) (map[string]struct{}, error)
	CommitCrawl(ctx context.Context, src *models.Source, items []models.IntelligenceItem) (int, error)
}

type Oracle interface {
	Classifier
	ExtractArticle(ctx context.Context, markdown, pageURL string) oracle.ArticleExtraction
}

type Options struct {
	PerCycleCap    int
	FanOut         int
	RelevanceScore float64
	KeywordFilter  bool
	// ArticleFetcher loads candidate article pages; nil means the source
	// fetcher. Source pages always go through the source fetcher so every
	// run sees the current listing.
	ArticleFetcher fetcher.Fetcher
}

func DefaultOptions() Options {
	return Options{PerCycleCap: 3, FanOut: 3, RelevanceScore: 0.9}
}

// Result describes how a run ended.
type Result struct {
	SourceID   string
	Status     string
	Candidates int
	Accepted   int
	Inserted   int
	Message    string
}

type Processor struct {
	store    Store
	fetcher  fetcher.Fetcher
	articles fetcher.Fetcher
	oracle   Oracle
	sites    siteconfig.Provider
	opts     Options
	now      func() time.Time
}

func NewProcessor(store Store, f fetcher.Fetcher, o Oracle, sites siteconfig.Provider, opts Options) *Processor {
	def := DefaultOptions()
	if opts.PerCycleCap <= 0 {
		opts.PerCycleCap = def.PerCycleCap
	}
	if opts.FanOut <= 0 {
		opts.FanOut = def.FanOut
	}
	if opts.RelevanceScore == 0 {
		opts.RelevanceScore = def.RelevanceScore
	}
	articles := opts.ArticleFetcher
	if articles == nil {
		articles = f
	}
	return &Processor{
		store:    store,
		fetcher:  f,
		articles: articles,
		oracle:   o,
		sites:    sites,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProcessSource crawls the source once and leaves it active or error. It
// never returns an error: every failure ends up on the source record.
func (p *Processor) ProcessSource(ctx context.Context, sourceID string) (res Result) {
	res = Result{SourceID: sourceID}

	defer func() {
		if r := recover(); r != nil {
			res = p.fail(ctx, sourceID, fmt.Errorf("panic: %v", r))
		}
		metrics.SourceRuns.WithLabelValues(res.Status).Inc()
	}()

	src, err := p.store.GetSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			logger.Warn("Source vanished before processing", zap.String("source_id", sourceID))
			res.Status = "missing"
			return res
		}
		return p.fail(ctx, sourceID, err)
	}

	logger.Info("Processing source", zap.String("source_id", src.ID), zap.String("url", src.URL))

	markdown, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil || strings.TrimSpace(markdown) == "" {
		logger.Warn("Source fetch returned nothing", zap.String("url", src.URL), zap.Error(err))
		return p.finish(ctx, src, models.SourceError, MsgEmptyContent, false)
	}

	disc := Discover(ctx, p.oracle, markdown, src.URL)
	logger.Info("Page classified",
		zap.String("url", src.URL),
		zap.String("page_type", string(disc.PageType)),
		zap.Int("links", len(disc.Links)),
		zap.String("reason", disc.Reason),
	)

	existing, err := p.store.ExistingItemURLs(ctx)
	if err != nil {
		return p.fail(ctx, sourceID, err)
	}

	candidates := SelectCandidates(src.URL, markdown, disc, existing, p.opts.PerCycleCap)
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		logger.Info("No new articles", zap.String("source_id", src.ID))
		return p.finish(ctx, src, models.SourceActive, "", true)
	}

	items := fanOut(ctx, p.opts.FanOut, candidates, func(ctx context.Context, c Candidate) (models.IntelligenceItem, bool) {
		return p.processCandidate(ctx, src.ID, c)
	})

	src.LastCrawledAt = timePtr(p.now())
	if len(items) > 0 {
		src.Status = models.SourceActive
		src.ErrorMessage = nil
	} else {
		src.Status = models.SourceError
		src.ErrorMessage = strPtr(MsgNoArticles)
	}

	inserted, err := p.store.CommitCrawl(ctx, src, items)
	if err != nil {
		return p.fail(ctx, sourceID, err)
	}

	logger.Info("Source processed",
		zap.String("source_id", src.ID),
		zap.String("status", src.Status),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(items)),
		zap.Int("inserted", inserted),
	)

	res.Status = src.Status
	res.Accepted = len(items)
	res.Inserted = inserted
	if src.ErrorMessage != nil {
		res.Message = *src.ErrorMessage
	}
	return res
}

// processCandidate fetches (when needed), extracts and filters one article.
func (p *Processor) processCandidate(ctx context.Context, sourceID string, c Candidate) (models.IntelligenceItem, bool) {
	if r := CheckURL(c.URL); r != "" {
		return p.reject(c.URL, r)
	}

	markdown := c.Markdown
	if markdown == "" {
		md, err := p.articles.Fetch(ctx, c.URL)
		if err != nil || strings.TrimSpace(md) == "" {
			logger.Warn("Article fetch failed", zap.String("url", c.URL), zap.Error(err))
			return p.reject(c.URL, RejectFetchFailed)
		}
		markdown = md
	}

	data := p.oracle.ExtractArticle(ctx, markdown, c.URL)
	if r := Evaluate(c.URL, data); r != "" {
		return p.reject(c.URL, r)
	}
	if p.opts.KeywordFilter && !siteconfig.MatchesKeywords(p.sites.Keywords(), data.Title, data.Summary) {
		return p.reject(c.URL, RejectKeywordFilter)
	}

	metrics.ItemsAccepted.Inc()
	return p.buildItem(sourceID, c.URL, markdown, data), true
}

func (p *Processor) buildItem(sourceID, pageURL, markdown string, data oracle.ArticleExtraction) models.IntelligenceItem {
	body := data.MainContent
	if utils.RuneLen(body) < fallbackRunes {
		body = markdown
	}

	author := data.Author
	if author == "" {
		author = unknownAuthor
	}

	titleZH := data.TitleZH
	if titleZH == "" {
		titleZH = data.Title
	}

	tags := data.Keywords
	if tags == nil {
		tags = []string{}
	}

	return models.IntelligenceItem{
		ID:             uuid.NewString(),
		SourceID:       sourceID,
		URL:            strPtr(pageURL),
		Title:          data.Title,
		TitleZH:        titleZH,
		PublishDate:    data.PublishDate,
		ContentType:    data.ContentType,
		Summary:        data.Summary,
		RiskTags:       tags,
		RiskHint:       data.RiskHint,
		OriginalText:   fmt.Sprintf("[Source: %s]\n[Author: %s]\n\n%s", pageURL, author, body),
		TranslatedText: data.TranslatedContent,
		RelevanceScore: p.opts.RelevanceScore,
		CreatedAt:      p.now(),
	}
}

func (p *Processor) reject(pageURL string, reason Rejection) (models.IntelligenceItem, bool) {
	logger.Info("Candidate rejected", zap.String("url", pageURL), zap.String("reason", string(reason)))
	metrics.ItemsRejected.WithLabelValues(string(reason)).Inc()
	return models.IntelligenceItem{}, false
}

func (p *Processor) finish(ctx context.Context, src *models.Source, status, message string, stamp bool) Result {
	src.Status = status
	src.ErrorMessage = nil
	if message != "" {
		src.ErrorMessage = strPtr(message)
	}
	if stamp {
		src.LastCrawledAt = timePtr(p.now())
	}
	if err := p.store.SaveSourceStatus(ctx, src); err != nil {
		return p.fail(ctx, src.ID, err)
	}
	return Result{SourceID: src.ID, Status: status, Message: message}
}

// fail records err on a freshly loaded copy of the source. It runs detached
// from ctx so a cancelled run still leaves a terminal status behind.
func (p *Processor) fail(ctx context.Context, sourceID string, err error) Result {
	msg := utils.TruncateRunes(err.Error(), maxErrorRunes)
	logger.Error("Source processing failed", zap.String("source_id", sourceID), zap.Error(err))

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveOnFailTime)
	defer cancel()

	res := Result{SourceID: sourceID, Status: models.SourceError, Message: msg}

	src, gerr := p.store.GetSource(saveCtx, sourceID)
	if gerr != nil {
		logger.Error("Failed to reload source after error", zap.String("source_id", sourceID), zap.Error(gerr))
		return res
	}
	src.Status = models.SourceError
	src.ErrorMessage = strPtr(msg)
	if serr := p.store.SaveSourceStatus(saveCtx, src); serr != nil {
		logger.Error("Failed to record source error", zap.String("source_id", sourceID), zap.Error(serr))
	}
	return res
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
