package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/metrics"
	"github.com/riskintel/backend/pkg/logger"
	"github.com/riskintel/backend/pkg/utils"
)

var ErrBrowserNotStarted = errors.New("browser not started")

// articleSelectorJS returns the outer HTML of the first article container
// with more than 500 characters of text, or the whole body.
const articleSelectorJS = `() => {
	const selectors = ['.news-content', '.article-content', '.content-body', 'article', '.main-content', '[class*="news"]', '[class*="article"]'];
	for (const sel of selectors) {
		const el = document.querySelector(sel);
		if (el && el.innerText.length > 500) {
			return el.outerHTML;
		}
	}
	return document.body.outerHTML;
}`

type BrowserOptions struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ScrollDelay       time.Duration
}

// BrowserFetcher renders dynamic pages in a headless Chromium. It must be
// started before use and shut down by its owner.
type BrowserFetcher struct {
	opts BrowserOptions

	mu      sync.RWMutex
	browser *rod.Browser
}

func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = 45 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 8 * time.Second
	}
	if opts.ScrollDelay == 0 {
		opts.ScrollDelay = 3 * time.Second
	}
	return &BrowserFetcher{opts: opts}
}

func (b *BrowserFetcher) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return nil
	}

	controlURL, err := launcher.New().Headless(b.opts.Headless).NoSandbox(true).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	b.browser = browser
	logger.Info("Browser fetcher started", zap.Bool("headless", b.opts.Headless))
	return nil
}

func (b *BrowserFetcher) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.browser != nil
}

func (b *BrowserFetcher) Shutdown(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	logger.Info("Browser fetcher stopped")
	return err
}

func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()
	markdown, err := b.fetch(ctx, rawURL)

	metrics.CrawlDuration.WithLabelValues("browser").Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CrawlTotal.WithLabelValues("browser", status).Inc()

	if err != nil {
		logger.Warn("Browser fetch failed", zap.String("url", rawURL), zap.Error(err))
		return "", err
	}
	logger.Info("Browser fetch completed", zap.String("url", rawURL), zap.Int("chars", utils.RuneLen(markdown)))
	return markdown, nil
}

func (b *BrowserFetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	b.mu.RLock()
	browser := b.browser
	b.mu.RUnlock()
	if browser == nil {
		return "", ErrBrowserNotStarted
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	if b.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent}); err != nil {
			logger.Debug("Failed to set user agent", zap.Error(err))
		}
	}

	// Slow sites often time out while still rendering usable content.
	if err := page.Timeout(b.opts.NavigationTimeout).Navigate(rawURL); err != nil {
		logger.Warn("Navigation did not complete", zap.String("url", rawURL), zap.Error(err))
	}
	if err := sleep(ctx, b.opts.SettleDelay); err != nil {
		return "", err
	}

	for _, js := range []string{
		`() => window.scrollTo(0, document.body.scrollHeight / 2)`,
		`() => window.scrollTo(0, document.body.scrollHeight)`,
	} {
		if _, err := page.Eval(js); err != nil {
			break
		}
		if err := sleep(ctx, b.opts.ScrollDelay); err != nil {
			return "", err
		}
	}

	html := ""
	if isGovUzArticle(rawURL) {
		if res, err := page.Eval(articleSelectorJS); err == nil {
			html = res.Value.Str()
		}
	}
	if html == "" {
		if html, err = page.HTML(); err != nil {
			return "", fmt.Errorf("read page html: %w", err)
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	// Links stay as written so site discovery patterns see relative paths.
	markdown := strings.TrimSpace(PostProcess(rawURL, RenderMarkdown(doc.Selection, nil)))
	if markdown == "" {
		return "", ErrEmptyContent
	}
	return markdown, nil
}

func isGovUzArticle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimPrefix(u.Hostname(), "www."), "gov.uz") && strings.Contains(u.Path, "/news/view/")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
