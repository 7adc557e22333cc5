package fetcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/riskintel/backend/pkg/utils"
)

var (
	isoDate       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	mofcomSource  = regexp.MustCompile(`来源[：:]\s*([^\n]+)`)
	mofcomStamp   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s*\d{2}:\d{2})`)
	mofcomTypeTag = regexp.MustCompile(`\s*类型[：:].+`)

	govUzNavWords    = []string{"site map", "hotline", "about", "contact"}
	govUzFooters     = []string{"#### site map", "### hotline", "### - about", "copyright", "© 20"}
	govUzGreetings   = []string{"Dear friends", "Dear colleagues", "**Dear"}
	mofcomEndMarkers = []string{"### 驻在国", "### 投资合作", "### 关于我们", "智能问答", "网站管理", "![](https://www.mofcom", "![](https://www.ciie", "* [首页](https://www.ciie", "* [参会报名]", "[首页](https://www.ciie"}
)

const govUzDateLookahead = 5

// PostProcess applies site specific boilerplate stripping to a rendered page.
func PostProcess(pageURL, markdown string) string {
	switch {
	case strings.Contains(pageURL, "mofcom.gov.cn") && strings.Contains(pageURL, "/art/"):
		return ExtractMofcomArticle(markdown)
	case strings.Contains(pageURL, "gov.uz") && strings.Contains(pageURL, "/news/view/"):
		return CleanGovUz(markdown)
	}
	return markdown
}

// CleanGovUz keeps the article between its dated heading and the site footer.
// The input is returned unchanged when no article start can be found.
func CleanGovUz(markdown string) string {
	lines := strings.Split(markdown, "\n")

	start := -1
	for i, line := range lines {
		if !strings.HasPrefix(line, "## ") || containsAny(strings.ToLower(line), govUzNavWords) {
			continue
		}
		for j := i; j < len(lines) && j < i+govUzDateLookahead; j++ {
			if isoDate.MatchString(lines[j]) {
				start = i
				break
			}
		}
		if start >= 0 {
			break
		}
	}

	if start < 0 {
		for i, line := range lines {
			if containsAny(line, govUzGreetings) {
				start = max(0, i-5)
				break
			}
		}
	}
	if start < 0 {
		return markdown
	}

	body := lines[start:]
	for i, line := range body {
		if containsAny(strings.ToLower(line), govUzFooters) {
			body = body[:i]
			break
		}
	}
	return strings.Join(body, "\n")
}

// ExtractMofcomArticle keeps the body following the source and timestamp
// header and re-emits it under a normalized header.
func ExtractMofcomArticle(markdown string) string {
	src := mofcomSource.FindStringSubmatchIndex(markdown)
	if src == nil {
		return markdown
	}
	stamp := mofcomStamp.FindStringSubmatchIndex(markdown)

	start := src[1]
	if stamp != nil && stamp[0] > src[1] {
		start = stamp[1]
	}
	content := markdown[start:]

	end := len(content)
	for _, marker := range mofcomEndMarkers {
		if idx := strings.Index(content, marker); idx > 0 && idx < end {
			end = idx
		}
	}
	content = strings.TrimSpace(content[:end])
	if utils.RuneLen(content) <= 30 {
		return markdown
	}

	source := strings.TrimSpace(markdown[src[2]:src[3]])
	source = mofcomTypeTag.ReplaceAllString(source, "")
	date := ""
	if stamp != nil {
		date = markdown[stamp[2]:stamp[3]]
	}
	return fmt.Sprintf("来源: %s\n日期: %s\n\n%s\n", source, date, content)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
