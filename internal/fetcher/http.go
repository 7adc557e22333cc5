package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

const (
	maxBodyBytes     = 10 << 20
	thinContentRunes = 200
)

// contentRoots are tried in order; a root is used only when it is the single
// match and carries a meaningful amount of text.
var contentRoots = []string{"article", "main", "[role=main]", ".article-content", ".news-content", ".content"}

type HTTPOptions struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// HTTPFetcher fetches pages with a plain GET and renders HTML or RSS/Atom
// bodies to markdown. Requests to the same host are rate limited.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	rps       float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		rps:       opts.RequestsPerSecond,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()
	markdown, err := f.fetch(ctx, rawURL)

	metrics.CrawlDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CrawlTotal.WithLabelValues("http", status).Inc()

	if err != nil {
		logger.Warn("HTTP fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", err
	}
	logger.Debug("HTTP fetch completed", zap.String("url", rawURL), zap.Int("chars", utils.RuneLen(markdown)))
	return markdown, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}

	if err := f.limiter(pageURL.Host).Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	var markdown string
	if isFeed(resp.Header.Get("Content-Type"), body) {
		markdown, err = renderFeed(body)
	} else {
		markdown, err = renderHTML(body, pageURL)
	}
	if err != nil {
		return "", err
	}

	markdown = strings.TrimSpace(PostProcess(rawURL, markdown))
	if markdown == "" {
		return "", ErrEmptyContent
	}
	return markdown, nil
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.rps > 0 {
			limit = rate.Limit(f.rps)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

func isFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") {
		return true
	}
	if !strings.Contains(ct, "xml") && ct != "" {
		return false
	}
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<rss") || strings.Contains(head, "<feed") || strings.Contains(head, "<rdf:rdf")
}

// renderFeed lists feed entries as markdown links so discovery can treat the
// feed like any other list page.
func renderFeed(body []byte) (string, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse feed: %w", err)
	}

	var b strings.Builder
	if feed.Title != "" {
		b.WriteString("# " + feed.Title + "\n\n")
	}
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = item.GUID
		}
		if link == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = link
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", title, link)
	}
	return b.String(), nil
}

func renderHTML(body []byte, pageURL *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	markdown := RenderMarkdown(contentRoot(doc), pageURL)
	if utils.RuneLen(markdown) >= thinContentRunes {
		return markdown, nil
	}

	if fallback := readabilityMarkdown(body, pageURL); utils.RuneLen(fallback) > utils.RuneLen(markdown) {
		logger.Debug("Using readability fallback", zap.String("url", pageURL.String()))
		return fallback, nil
	}
	return markdown, nil
}

func contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentRoots {
		found := doc.Find(sel)
		if found.Length() == 1 && utils.RuneLen(strings.TrimSpace(found.Text())) >= thinContentRunes {
			return found
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func readabilityMarkdown(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return strings.TrimSpace(article.TextContent)
	}

	markdown := RenderMarkdown(doc.Selection, pageURL)
	if title := strings.TrimSpace(article.Title); title != "" && !strings.Contains(markdown, title) {
		markdown = "# " + title + "\n\n" + markdown
	}
	return markdown
}
