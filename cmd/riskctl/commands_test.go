package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskintel/backend/internal/ingestion"
	"github.com/riskintel/backend/internal/storage/models"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScanCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supply.md")
	body := "第一条 供货范围。" + strings.Repeat("双方应诚信履约。", 6) + "因不可抗力导致延误的，卖方概不负责。争议提交仲裁委员会仲裁。"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := runRoot(t, "scan", path)
	require.NoError(t, err)
	assert.Contains(t, out, "supply.md")
	assert.Contains(t, out, "免责条款")
	assert.Contains(t, out, "不可抗力滥用")
	assert.Contains(t, out, "争议解决条款")
}

func TestScanCommandRejectsShortText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.txt")
	require.NoError(t, os.WriteFile(path, []byte("短文本"), 0o600))

	_, err := runRoot(t, "scan", path)
	assert.ErrorContains(t, err, "too short")
}

func TestScanCommandNeedsFile(t *testing.T) {
	_, err := runRoot(t, "scan")
	assert.Error(t, err)
}

func TestRenderSources(t *testing.T) {
	crawled := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	msg := "No articles extracted"

	var buf bytes.Buffer
	renderSources(&buf, []models.Source{
		{ID: "s1", URL: "https://gov.uz/en/news", Status: models.SourceActive, LastCrawledAt: &crawled},
		{ID: "s2", URL: "https://mofcom.gov.cn/", Status: models.SourceError, ErrorMessage: &msg},
	})

	out := buf.String()
	assert.Contains(t, out, "https://gov.uz/en/news")
	assert.Contains(t, out, msg)
	assert.Contains(t, out, "2")
}

func TestRenderCrawl(t *testing.T) {
	var buf bytes.Buffer
	renderCrawl(&buf, &models.Source{URL: "https://gov.uz/en/news", Status: models.SourceActive},
		ingestion.Result{Candidates: 3, Accepted: 2, Inserted: 2})

	assert.Contains(t, buf.String(), "https://gov.uz/en/news")
	assert.Contains(t, buf.String(), models.SourceActive)
}
