package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskintel/backend/internal/oracle"
)

type recordingClassifier struct {
	mu     sync.Mutex
	result oracle.PageClassification
	calls  int
	links  []oracle.Link
}

func (c *recordingClassifier) ClassifyPage(_ context.Context, _, _ string, links []oracle.Link) oracle.PageClassification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.links = links
	return c.result
}

func TestDiscoverGovUzFastPath(t *testing.T) {
	md := strings.Join([]string{
		"[Decree on tariffs](/en/mfa/news/view/101)",
		"[Same again](/en/mfa/news/view/101)",
		"[Absolute](https://gov.uz/en/mfa/news/view/102)",
		"[Other](https://example.com/x)",
	}, "\n")
	c := &recordingClassifier{}

	d := Discover(context.Background(), c, md, "https://gov.uz/en/mfa/news")

	assert.Equal(t, 0, c.calls)
	assert.Equal(t, oracle.PageList, d.PageType)
	assert.Equal(t, []string{
		"https://gov.uz/en/mfa/news/view/101",
		"https://gov.uz/en/mfa/news/view/102",
	}, d.Links)
}

func TestDiscoverGovUzWithoutMatchesFallsThrough(t *testing.T) {
	c := &recordingClassifier{result: oracle.PageClassification{OK: true, PageType: oracle.PageArticle}}

	d := Discover(context.Background(), c, "plain article text", "https://gov.uz/en/mfa/news/view/9")

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, oracle.PageArticle, d.PageType)
}

func TestDiscoverMofcomFastPath(t *testing.T) {
	md := strings.Join([]string{
		`[风险提示](http://uz.mofcom.gov.cn/art/2024/3/1/art_1.html "风险提示")`,
		`[主站](http://www.mofcom.gov.cn/art/2024/3/1/art_2.html)`,
		`[栏目](http://uz.mofcom.gov.cn/col/col1/index.html)`,
		`[非页面](http://uz.mofcom.gov.cn/art/2024/3/1/file.pdf)`,
	}, "\n")
	c := &recordingClassifier{}

	d := Discover(context.Background(), c, md, "http://uz.mofcom.gov.cn/col/col1/index.html")

	assert.Equal(t, 0, c.calls)
	assert.Equal(t, []string{"http://uz.mofcom.gov.cn/art/2024/3/1/art_1.html"}, d.Links)
}

func TestDiscoverOracleLinksArePostFiltered(t *testing.T) {
	links := []string{"javascript:void(0)", "#top", "", "/user/login", "/Register", "/a/1"}
	for i := 2; i <= 12; i++ {
		links = append(links, fmt.Sprintf("/a/%d", i))
	}
	c := &recordingClassifier{result: oracle.PageClassification{OK: true, PageType: oracle.PageList, Links: links}}

	d := Discover(context.Background(), c, "[x](https://example.com/x)", "https://example.com/news")

	require.Len(t, d.Links, maxDiscovered)
	assert.Equal(t, "/a/1", d.Links[0])
	assert.Equal(t, "/a/10", d.Links[9])
}

func TestDiscoverPrefiltersLinksForOracle(t *testing.T) {
	var b strings.Builder
	b.WriteString("[js](javascript:void(0))\n[anchor](https://example.com/#top)\n")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "[item %d](https://example.com/a/%d)\n", i, i)
	}
	c := &recordingClassifier{result: oracle.PageClassification{OK: true, PageType: oracle.PageArticle}}

	Discover(context.Background(), c, b.String(), "https://example.com/news")

	require.Len(t, c.links, oracleLinkPreview)
	assert.Equal(t, "https://example.com/a/0", c.links[0].Href)
}

func TestDiscoverOracleFailureIsConservative(t *testing.T) {
	c := &recordingClassifier{result: oracle.PageClassification{OK: false, PageType: oracle.PageList, Links: []string{"/a/1"}}}

	d := Discover(context.Background(), c, "text", "https://example.com/news")

	assert.Equal(t, oracle.PageArticle, d.PageType)
	assert.Empty(t, d.Links)
}

func TestSelectCandidates(t *testing.T) {
	existing := map[string]struct{}{"https://example.com/a/1": {}}
	d := Discovery{PageType: oracle.PageList, Links: []string{"/a/1", "/a/2", "a/3", "/a/2", "https://other.org/x", "/a/5"}}

	got := SelectCandidates("https://example.com/news/", "md", d, existing, 3)

	assert.Equal(t, []Candidate{
		{URL: "https://example.com/a/2"},
		{URL: "https://example.com/news/a/3"},
		{URL: "https://other.org/x"},
	}, got)
}

func TestSelectCandidatesArticlePage(t *testing.T) {
	d := Discovery{PageType: oracle.PageArticle}

	got := SelectCandidates("https://example.com/a/9", "body", d, map[string]struct{}{}, 3)
	assert.Equal(t, []Candidate{{URL: "https://example.com/a/9", Markdown: "body"}}, got)

	got = SelectCandidates("https://example.com/a/9", "body", d, map[string]struct{}{"https://example.com/a/9": {}}, 3)
	assert.Empty(t, got)
}

func TestSelectCandidatesListWithoutLinksUsesSource(t *testing.T) {
	d := Discovery{PageType: oracle.PageList}
	got := SelectCandidates("https://example.com/n", "body", d, nil, 3)
	assert.Equal(t, []Candidate{{URL: "https://example.com/n", Markdown: "body"}}, got)
}

func TestFanOutIsolatesPanics(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var mu sync.Mutex
	inFlight, peak := 0, 0

	got := fanOut(context.Background(), 3, items, func(_ context.Context, n int) (int, bool) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()

		if n == 3 {
			panic("boom")
		}
		return n * 10, true
	})

	assert.Equal(t, []int{10, 20, 40, 50}, got)
	assert.LessOrEqual(t, peak, 3)
}
