package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/modulr-studio/modulr/internal/rss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "feeds.example.com", extractDomain("https://feeds.example.com/show.xml"))
	assert.Equal(t, "example.com", extractDomain("http://example.com"))
	assert.Equal(t, "", extractDomain("/relative/path"))
}

func TestDomainLimiterEnforcesDelay(t *testing.T) {
	dl := newDomainLimiter()
	ctx := context.Background()

	require.NoError(t, dl.acquire(ctx, "a.example"))
	dl.release("a.example")

	start := time.Now()
	require.NoError(t, dl.acquire(ctx, "a.example"))
	dl.release("a.example")
	assert.GreaterOrEqual(t, time.Since(start), DelayBetweenDomainRequests)

	// A different domain is not delayed.
	start = time.Now()
	require.NoError(t, dl.acquire(ctx, "b.example"))
	dl.release("b.example")
	assert.Less(t, time.Since(start), DelayBetweenDomainRequests)
}

func TestDomainLimiterHonorsCancellation(t *testing.T) {
	dl := newDomainLimiter()
	ctx := context.Background()

	// Fill every slot for the domain.
	for i := 0; i < MaxConcurrencyPerDomain; i++ {
		require.NoError(t, dl.acquire(ctx, "a.example"))
	}

	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := dl.acquire(cancelled, "a.example")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollerRunOnce(t *testing.T) {
	db, pubID := testStore(t)
	p, err := db.GetPublisherByID(pubID)
	require.NoError(t, err)
	p.RSSFeeds = []string{"https://feeds.example/a.xml"}
	require.NoError(t, db.UpdatePublisher(p))

	ing := NewIngestor(db, nil)
	ing.parse = canned(&rss.Feed{
		Title: "Feed",
		Items: []rss.Item{{Title: "Ep 1", GUID: "g1"}},
	})
	poller := NewPoller(ing)

	poller.runOnce(context.Background())

	all, err := db.GetAllEpisodes()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Ep 1", all[0].Title)

	// A second pass is a no-op.
	poller.runOnce(context.Background())
	all, err = db.GetAllEpisodes()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
