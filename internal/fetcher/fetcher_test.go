package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, html string, base string) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	var u *url.URL
	if base != "" {
		u, err = url.Parse(base)
		require.NoError(t, err)
	}
	return RenderMarkdown(doc.Find("body"), u)
}

func TestRenderMarkdown(t *testing.T) {
	html := `<html><body>
		<nav><a href="/home">Home</a></nav>
		<script>var x = 1;</script>
		<h2>New   tariff
			rules</h2>
		<p>The ministry <strong>announced</strong> changes.</p>
		<ul><li><a href="/en/news/view/12">First story</a></li><li>Second</li></ul>
		<a href="javascript:void(0)">Menu</a>
		<footer>Copyright</footer>
	</body></html>`

	got := render(t, html, "https://gov.example/en/news")

	assert.Contains(t, got, "## New tariff rules")
	assert.Contains(t, got, "The ministry **announced** changes.")
	assert.Contains(t, got, "- [First story](https://gov.example/en/news/view/12)")
	assert.Contains(t, got, "- Second")
	assert.Contains(t, got, "[Menu](javascript:void(0))")
	assert.NotContains(t, got, "Home")
	assert.NotContains(t, got, "var x")
	assert.NotContains(t, got, "Copyright")
	assert.NotContains(t, got, "\n\n\n")
}

func TestRenderMarkdownKeepsRelativeLinksWithoutBase(t *testing.T) {
	got := render(t, `<body><a href="/en/x/news/view/5">Story</a></body>`, "")
	assert.Equal(t, "[Story](/en/x/news/view/5)", got)
}

func TestCleanGovUz(t *testing.T) {
	md := strings.Join([]string{
		"## About the ministry",
		"menu",
		"## Reforms in the energy sector",
		"",
		"2024-05-01 10:00",
		"Body line one",
		"Body line two",
		"#### Site map",
		"links",
	}, "\n")

	assert.Equal(t, "## Reforms in the energy sector\n\n2024-05-01 10:00\nBody line one\nBody line two", CleanGovUz(md))
}

func TestCleanGovUzGreetingFallback(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f", "g", "Dear friends,", "text", "© 2024 gov"}
	got := CleanGovUz(strings.Join(lines, "\n"))
	assert.Equal(t, "c\nd\ne\nf\ng\nDear friends,\ntext", got)
}

func TestCleanGovUzNoStartIsUnchanged(t *testing.T) {
	md := "just\nsome\ntext"
	assert.Equal(t, md, CleanGovUz(md))
}

func TestExtractMofcomArticle(t *testing.T) {
	body := "乌兹别克斯坦宣布调整进口关税政策，涉及多类能源设备，相关企业需关注执行时间表。"
	md := "导航 首页\n来源：驻乌兹别克斯坦经商处 类型：转载\n2024-03-01 09:30\n\n" + body + "\n### 关于我们\n页脚"

	got := ExtractMofcomArticle(md)
	assert.Equal(t, "来源: 驻乌兹别克斯坦经商处\n日期: 2024-03-01 09:30\n\n"+body+"\n", got)
}

func TestExtractMofcomArticleShortBodyUnchanged(t *testing.T) {
	md := "来源：商务部\n2024-03-01 09:30\n短文"
	assert.Equal(t, md, ExtractMofcomArticle(md))
}

func TestPostProcessDispatch(t *testing.T) {
	md := "no markers here"
	assert.Equal(t, md, PostProcess("https://example.com/art/1.html", md))
	assert.Equal(t, md, PostProcess("https://uz.mofcom.gov.cn/list.html", md))
}

func TestHTTPFetcherHTML(t *testing.T) {
	article := strings.Repeat("Trade policy update paragraph. ", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "riskintel-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><header>Site</header><article><h1>Headline</h1><p>` + article + `</p><a href="/a/1">Next</a></article></body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{UserAgent: "riskintel-test"})
	got, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "# Headline"))
	assert.Contains(t, got, "[Next]("+srv.URL+"/a/1)")
	assert.NotContains(t, got, "Site")
}

func TestHTTPFetcherFeed(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel><title>Alerts</title>
		<item><title>Sanctions update</title><link>https://example.com/a/1</link></item>
		<item><title>No link</title></item>
	</channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	got, err := NewHTTPFetcher(HTTPOptions{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "# Alerts\n\n- [Sanctions update](https://example.com/a/1)", got)
}

func TestHTTPFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><script>only()</script></body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = f.Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

type stubFetcher struct {
	calls []string
	page  string
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	s.calls = append(s.calls, url)
	return s.page, s.err
}

func TestRouterFallsBackToHTTPWhenBrowserIdle(t *testing.T) {
	httpF := &stubFetcher{page: "md"}
	r := NewRouter(httpF, NewBrowserFetcher(BrowserOptions{}), []string{"gov.uz"}, false)

	got, err := r.Fetch(context.Background(), "https://gov.uz/en/news")
	require.NoError(t, err)
	assert.Equal(t, "md", got)
	assert.Len(t, httpF.calls, 1)
	assert.False(t, r.useBrowser("https://example.com"))
}

type mapCache struct {
	pages   map[string]string
	failGet bool
}

func (m *mapCache) GetPage(_ context.Context, url string) (string, bool, error) {
	if m.failGet {
		return "", false, errors.New("redis down")
	}
	p, ok := m.pages[url]
	return p, ok, nil
}

func (m *mapCache) SetPage(_ context.Context, url, md string) error {
	m.pages[url] = md
	return nil
}

func TestCachedFetcher(t *testing.T) {
	next := &stubFetcher{page: "fresh"}
	cache := &mapCache{pages: map[string]string{}}
	f := NewCachedFetcher(next, cache)

	for i := 0; i < 2; i++ {
		got, err := f.Fetch(context.Background(), "https://example.com")
		require.NoError(t, err)
		assert.Equal(t, "fresh", got)
	}
	assert.Len(t, next.calls, 1)

	cache.failGet = true
	_, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, next.calls, 2)

	failing := NewCachedFetcher(&stubFetcher{err: ErrEmptyContent}, &mapCache{pages: map[string]string{}})
	_, err = failing.Fetch(context.Background(), "https://x")
	assert.ErrorIs(t, err, ErrEmptyContent)
}
