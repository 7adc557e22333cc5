package ingestion

import (
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/riskintel/backend/internal/oracle"
	"github.com/riskintel/backend/pkg/utils"
)

// Rejection names the quality check an extraction failed. The empty value
// means accepted.
type Rejection string

const (
	RejectListURL       Rejection = "list_url"
	RejectNoTitle       Rejection = "no_title"
	RejectGenericTitle  Rejection = "generic_title"
	RejectListTitle     Rejection = "list_title"
	RejectListSummary   Rejection = "list_summary"
	RejectThinContent   Rejection = "thin_content"
	RejectListContent   Rejection = "list_content"
	RejectFetchFailed   Rejection = "fetch_failed"
	RejectKeywordFilter Rejection = "keyword"
)

const (
	minMainRunes      = 100
	minSummaryRunes   = 50
	maxDateMentions   = 4
	maxContentMarkers = 3
)

var (
	listURLPatterns = ahocorasick.NewStringMatcher([]string{
		"/news/news", "/news/events", "/index.html", "/index.htm",
		"/list/", "/category/", "/events/", "/archive/",
	})

	genericTitles = map[string]struct{}{
		"news": {}, "events": {}, "home": {}, "index": {}, "list": {}, "archive": {},
		"category": {}, "economy": {}, "finance": {}, "politics": {}, "society": {},
	}

	listTitleFragments = ahocorasick.NewStringMatcher([]string{
		"latest news", "news from", "top stories", "breaking news",
		"headlines", "recent posts", "all news", "news list",
	})

	lowQualitySummary = ahocorasick.NewStringMatcher([]string{
		"信息不足", "无法分析", "列表页", "新闻列表", "目录页", "事件列表", "无具体", "仅为事件",
	})

	// Matched case-sensitively against the extracted body.
	listContentMarkers = ahocorasick.NewStringMatcher([]string{
		"Categories", "[Uzbekistan]", "[Economy]", "[Finance]", "/section/1/", "/section/2/",
	})

	isoDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// CheckURL rejects URLs that look like listing or pagination pages.
func CheckURL(rawURL string) Rejection {
	if len(listURLPatterns.MatchThreadSafe([]byte(strings.ToLower(rawURL)))) > 0 {
		return RejectListURL
	}
	return ""
}

// Evaluate runs the ordered quality checks over an extraction and returns
// the first one that fails.
func Evaluate(rawURL string, a oracle.ArticleExtraction) Rejection {
	if r := CheckURL(rawURL); r != "" {
		return r
	}
	if strings.TrimSpace(a.Title) == "" {
		return RejectNoTitle
	}

	title := strings.ToLower(strings.TrimSpace(a.Title))
	if _, ok := genericTitles[title]; ok {
		return RejectGenericTitle
	}
	if matches(listTitleFragments, title) {
		return RejectListTitle
	}
	if matches(lowQualitySummary, a.Summary) {
		return RejectListSummary
	}
	if utils.RuneLen(a.MainContent) < minMainRunes && utils.RuneLen(a.Summary) < minSummaryRunes {
		return RejectThinContent
	}
	// Every date occurrence counts, repeats included.
	if len(isoDate.FindAllString(a.MainContent, -1)) >= maxDateMentions {
		return RejectListContent
	}
	if len(listContentMarkers.MatchThreadSafe([]byte(a.MainContent))) >= maxContentMarkers {
		return RejectListContent
	}
	return ""
}

func matches(m *ahocorasick.Matcher, s string) bool {
	return len(m.MatchThreadSafe([]byte(s))) > 0
}
