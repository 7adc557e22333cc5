package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Pipeline.PerCycleCap)
	assert.Equal(t, 3, cfg.Pipeline.FanOut)
	assert.Equal(t, 0.9, cfg.Pipeline.RelevanceScore)
	assert.Equal(t, 6000, cfg.Contract.ChunkSize)
	assert.Equal(t, 50, cfg.Contract.MinTextLength)
	assert.Equal(t, 24*time.Hour, cfg.Redis.URLTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Redis.ExtractionTTL)
	assert.Equal(t, []string{"gov.uz"}, cfg.Crawler.BrowserDomains)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RISKINTEL_PIPELINE_PERCYCLECAP", "5")
	t.Setenv("RISKINTEL_LLM_CLASSIFYTIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pipeline.PerCycleCap)
	assert.Equal(t, 90*time.Second, cfg.LLM.ClassifyTimeout)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "mysql"},
		Pipeline: PipelineConfig{PerCycleCap: 3, FanOut: 3},
		Contract: ContractConfig{ChunkSize: 6000, MaxChunks: 3},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "postgres"
	assert.NoError(t, cfg.Validate())

	cfg.Pipeline.FanOut = 0
	assert.Error(t, cfg.Validate())
}
