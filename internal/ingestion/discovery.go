package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/pkg/logger"
)

const (
	oracleLinkPreview = 100
	maxDiscovered     = 10
	govUzLinkCap      = 10
	mofcomLinkCap     = 15
)

var (
	absoluteLink = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)]+)\)`)
	// Browser-rendered gov.uz pages keep relative hrefs; HTTP-rendered ones
	// are absolute. Both forms are accepted.
	govUzNewsLink = regexp.MustCompile(`\[([^\]]*)\]\((?:https?://(?:www\.)?gov\.uz)?(/en/[^)]+/news/view/\d+)\)`)
)

// Classifier decides list versus article for a fetched page.
type Classifier interface {
	ClassifyPage(ctx context.Context, pageURL, markdown string, links []oracle.Link) oracle.PageClassification
}

type Discovery struct {
	PageType oracle.PageType
	Links    []string
	Reason   string
}

// Discover classifies a fetched page and lists the article links it points
// to. Known sites are handled by fixed link patterns without consulting the
// classifier. A failed classification yields an article page with no links.
func Discover(ctx context.Context, classifier Classifier, markdown, pageURL string) Discovery {
	if strings.Contains(pageURL, "gov.uz") {
		if links := govUzLinks(markdown); len(links) > 0 {
			logger.Info("gov.uz news links found", zap.String("url", pageURL), zap.Int("links", len(links)))
			return Discovery{
				PageType: oracle.PageList,
				Links:    capLinks(links, govUzLinkCap),
				Reason:   fmt.Sprintf("gov.uz news listing with %d article links", len(links)),
			}
		}
	}

	links := MarkdownLinks(markdown)

	if strings.Contains(pageURL, "mofcom.gov.cn") {
		if arts := mofcomLinks(links); len(arts) > 0 {
			logger.Info("mofcom article links found", zap.String("url", pageURL), zap.Int("links", len(arts)))
			return Discovery{
				PageType: oracle.PageList,
				Links:    capLinks(arts, mofcomLinkCap),
				Reason:   fmt.Sprintf("mofcom risk alert listing with %d subdomain article links", len(arts)),
			}
		}
	}

	if len(links) > oracleLinkPreview {
		links = links[:oracleLinkPreview]
	}

	result := classifier.ClassifyPage(ctx, pageURL, markdown, links)
	if !result.OK {
		return Discovery{PageType: oracle.PageArticle, Links: []string{}}
	}

	return Discovery{
		PageType: result.PageType,
		Links:    capLinks(filterDiscovered(result.Links), maxDiscovered),
		Reason:   result.Reason,
	}
}

// MarkdownLinks returns the absolute links in markdown, minus javascript and
// anchor links.
func MarkdownLinks(markdown string) []oracle.Link {
	matches := absoluteLink.FindAllStringSubmatch(markdown, -1)
	links := make([]oracle.Link, 0, len(matches))
	for _, m := range matches {
		href := m[2]
		if strings.Contains(href, "javascript") || strings.Contains(href, "#") {
			continue
		}
		links = append(links, oracle.Link{Text: m[1], Href: href})
	}
	return links
}

func govUzLinks(markdown string) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, m := range govUzNewsLink.FindAllStringSubmatch(markdown, -1) {
		link := "https://gov.uz" + m[2]
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

// mofcomLinks keeps article pages on mofcom subdomains. Link titles that the
// markdown carries after the URL are cut off.
func mofcomLinks(links []oracle.Link) []string {
	var out []string
	for _, l := range links {
		if !strings.Contains(l.Href, "mofcom.gov.cn") || strings.Contains(l.Href, "www.mofcom") || !strings.Contains(l.Href, "/art/") {
			continue
		}
		href := strings.TrimSpace(strings.SplitN(l.Href, `"`, 2)[0])
		if strings.HasSuffix(href, ".html") {
			out = append(out, href)
		}
	}
	return out
}

func filterDiscovered(links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		if link == "" || strings.HasPrefix(link, "javascript:") || strings.HasPrefix(link, "#") {
			continue
		}
		lower := strings.ToLower(link)
		if strings.Contains(lower, "login") || strings.Contains(lower, "register") {
			continue
		}
		out = append(out, link)
	}
	return out
}

func capLinks(links []string, n int) []string {
	if len(links) > n {
		return links[:n]
	}
	return links
}
