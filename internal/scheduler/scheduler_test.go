package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskintel/backend/internal/storage/models"
	"github.com/riskintel/backend/internal/storage/sqlstore"
)

type countingCrawler struct {
	calls int
	err   error
}

func (c *countingCrawler) BatchCrawl(context.Context) (int, error) {
	c.calls++
	return 2, c.err
}

func newStore(t *testing.T) *sqlstore.Client {
	t.Helper()
	store, err := sqlstore.NewClient("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRegistersConfiguredJobs(t *testing.T) {
	store := newStore(t)

	s, err := New(Config{BatchCrawl: "0 */6 * * *", StaleSweep: "*/15 * * * *"}, &countingCrawler{}, store)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	s, err = New(Config{StaleSweep: "*/15 * * * *"}, &countingCrawler{}, store)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())

	_, err = New(Config{BatchCrawl: "every now and then"}, &countingCrawler{}, store)
	assert.ErrorContains(t, err, "batch_crawl")
}

func TestRunBatchCrawl(t *testing.T) {
	crawler := &countingCrawler{}
	s, err := New(Config{}, crawler, newStore(t))
	require.NoError(t, err)

	require.NoError(t, s.RunBatchCrawl(context.Background()))
	assert.Equal(t, 1, crawler.calls)

	crawler.err = errors.New("db down")
	assert.ErrorContains(t, s.RunBatchCrawl(context.Background()), "db down")
}

func TestSweepResetsStaleRecords(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSource(ctx, &models.Source{ID: "stuck", URL: "https://a.example", Status: models.SourceProcessing}))
	require.NoError(t, store.CreateSource(ctx, &models.Source{ID: "fine", URL: "https://b.example", Status: models.SourceActive}))
	require.NoError(t, store.CreateTask(ctx, &models.ContractTask{
		ID: "t1", Filename: "a.pdf", Status: models.TaskProcessing, UploadTime: time.Now().UTC().Add(-3 * time.Hour),
	}))
	require.NoError(t, store.CreateTask(ctx, &models.ContractTask{
		ID: "t2", Filename: "b.pdf", Status: models.TaskProcessing, UploadTime: time.Now().UTC().Add(3 * time.Hour),
	}))

	s, err := New(Config{StaleAfter: time.Hour}, &countingCrawler{}, store)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	require.NoError(t, s.Sweep(ctx))

	stuck, err := store.GetSource(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, models.SourceError, stuck.Status)
	require.NotNil(t, stuck.ErrorMessage)
	assert.Equal(t, StaleMessage, *stuck.ErrorMessage)

	fine, err := store.GetSource(ctx, "fine")
	require.NoError(t, err)
	assert.Equal(t, models.SourceActive, fine.Status)

	t1, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, t1.Status)

	t2, err := store.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.TaskProcessing, t2.Status)
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{StaleSweep: "*/15 * * * *"}, &countingCrawler{}, newStore(t))
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
