package siteconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
_default:
  name: 通用
  link_hints: default links
  content_hints: default content
_keywords:
  chinese: [制裁, 关税]
  english: [Sanction, " Tariff "]
mofcom.gov.cn:
  name: 商务部
  link_hints: mofcom links
  content_hints: mofcom content
gov.uz:
  name: Uzbekistan
  link_hints: uz links
`

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "site_prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLookup(t *testing.T) {
	p := NewFileProvider(writeFile(t, t.TempDir(), sample))

	tests := []struct {
		url  string
		want string
	}{
		{"https://mofcom.gov.cn/article", "商务部"},
		{"http://lk.mofcom.gov.cn/art/2024/1.html", "商务部"},
		{"https://www.gov.uz/en/news", "Uzbekistan"},
		{"https://WWW.GOV.UZ/en", "Uzbekistan"},
		{"https://example.com", "通用"},
		{"::not a url", "通用"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, p.SiteConfig(tt.url).Name)
		})
	}

	assert.Equal(t, []string{"制裁", "关税", "sanction", "tariff"}, p.Keywords())
}

func TestMissingFileUsesBuiltInDefault(t *testing.T) {
	p := NewFileProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, DefaultSite, p.SiteConfig("https://gov.uz"))
	assert.Empty(t, p.Keywords())
}

func TestReloadFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, sample)
	p := NewFileProvider(path)

	writeFile(t, dir, "gov.uz: [unclosed")
	assert.Error(t, p.Reload())
	assert.Equal(t, "Uzbekistan", p.SiteConfig("https://gov.uz").Name)
}

func TestMatchesKeywords(t *testing.T) {
	assert.True(t, MatchesKeywords(nil, "anything", ""))
	assert.True(t, MatchesKeywords([]string{"tariff"}, "New TARIFF regime", ""))
	assert.True(t, MatchesKeywords([]string{"制裁"}, "", "美国宣布新的制裁措施"))
	assert.False(t, MatchesKeywords([]string{"tariff"}, "Sports results", "足球"))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, sample)
	p := NewFileProvider(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Watch(ctx))
	defer p.Close()

	writeFile(t, dir, "gov.uz:\n  name: Updated\n")

	assert.Eventually(t, func() bool {
		return p.SiteConfig("https://gov.uz").Name == "Updated"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStatic(t *testing.T) {
	s := NewStatic(map[string]Site{"example.com": {Name: "Example"}}, []string{" Risk "})
	assert.Equal(t, "Example", s.SiteConfig("https://news.example.com/x").Name)
	assert.Equal(t, DefaultSite, s.SiteConfig("https://other.org"))
	assert.Equal(t, []string{"risk"}, s.Keywords())
	assert.NoError(t, s.Reload())
}
