package fetcher

import (
	"context"
	"net/url"
	"strings"
)

// Router sends configured domains to the browser fetcher and everything else
// to the HTTP fetcher.
type Router struct {
	http      Fetcher
	browser   *BrowserFetcher
	domains   []string
	lowMemory bool
}

func NewRouter(httpFetcher Fetcher, browser *BrowserFetcher, domains []string, lowMemory bool) *Router {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Router{http: httpFetcher, browser: browser, domains: normalized, lowMemory: lowMemory}
}

func (r *Router) Fetch(ctx context.Context, rawURL string) (string, error) {
	if r.useBrowser(rawURL) {
		return r.browser.Fetch(ctx, rawURL)
	}
	return r.http.Fetch(ctx, rawURL)
}

func (r *Router) useBrowser(rawURL string) bool {
	if r.lowMemory || r.browser == nil || !r.browser.Running() {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range r.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
