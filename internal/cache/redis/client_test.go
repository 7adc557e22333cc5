package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr(), "", 0, time.Hour, 2*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestPageCacheRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.GetPage(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetPage(ctx, "https://example.com", "# Title"))
	got, ok, err := c.GetPage(ctx, "https://example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "# Title", got)

	mr.FastForward(61 * time.Minute)
	_, ok, err = c.GetPage(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractionCache(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Title string `json:"title"`
	}

	require.NoError(t, c.SetExtraction(ctx, "abc", payload{Title: "Tariffs"}))

	var got payload
	ok, err := c.GetExtraction(ctx, "abc", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Tariffs", got.Title)
}

func TestClear(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetPage(ctx, "https://a", "a"))
	require.NoError(t, c.SetExtraction(ctx, "k", map[string]string{"x": "y"}))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	_, err := NewClient("127.0.0.1:1", "", 0, time.Hour, time.Hour)
	assert.Error(t, err)
}
