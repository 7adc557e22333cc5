// Package siteconfig supplies per-domain prompt hints and the relevance keyword list.
package siteconfig

import (
	"net/url"
	"strings"
)

const (
	defaultKey  = "_default"
	keywordsKey = "_keywords"
)

// Site holds the prompt hints for one domain.
type Site struct {
	Name         string `yaml:"name" json:"name"`
	LinkHints    string `yaml:"link_hints" json:"link_hints"`
	ContentHints string `yaml:"content_hints" json:"content_hints"`
}

// DefaultSite is used when no configuration is available.
var DefaultSite = Site{
	Name:         "通用",
	LinkHints:    "优先提取包含 /news/、/article/、年份数字的链接，忽略导航和javascript链接",
	ContentHints: "识别文章标题、发布日期、正文内容",
}

type Provider interface {
	SiteConfig(rawURL string) Site
	Keywords() []string
	Reload() error
}

// Lookup resolves rawURL's host against sites: exact match first, then each
// parent suffix, then the _default entry, then DefaultSite.
func Lookup(sites map[string]Site, rawURL string) Site {
	if host := hostOf(rawURL); host != "" {
		parts := strings.Split(host, ".")
		for i := range parts {
			if s, ok := sites[strings.Join(parts[i:], ".")]; ok {
				return s
			}
		}
	}
	if s, ok := sites[defaultKey]; ok {
		return s
	}
	return DefaultSite
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// MatchesKeywords reports whether title or summary mentions any keyword.
// An empty keyword list matches everything.
func MatchesKeywords(keywords []string, title, summary string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := strings.ToLower(title + " " + summary)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Static is a fixed in-memory Provider.
type Static struct {
	sites    map[string]Site
	keywords []string
}

func NewStatic(sites map[string]Site, keywords []string) *Static {
	return &Static{sites: sites, keywords: lowerAll(keywords)}
}

func (s *Static) SiteConfig(rawURL string) Site { return Lookup(s.sites, rawURL) }
func (s *Static) Keywords() []string { return s.keywords }
func (s *Static) Reload() error { return nil }

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			out = append(out, k)
		}
	}
	return out
}
