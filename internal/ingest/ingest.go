// Package ingest turns parsed podcast feeds into persisted episode
// records, deduplicating per item and optionally enriching as it goes.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/modulr-studio/modulr/internal/database"
	"github.com/modulr-studio/modulr/internal/enrich"
	"github.com/modulr-studio/modulr/internal/model"
	"github.com/modulr-studio/modulr/internal/rss"
)

// ParseFunc fetches and parses a feed. Split out so tests can feed
// the pipeline canned feeds without a network.
type ParseFunc func(ctx context.Context, feedURL string) (*rss.Feed, error)

// CreatedEpisode identifies one episode created during a run.
type CreatedEpisode struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// SkippedEpisode records one feed item not ingested and why.
type SkippedEpisode struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Result summarizes one ingestion run.
type Result struct {
	RunID           string           `json:"runId"`
	FeedTitle       string           `json:"feedTitle"`
	Created         int              `json:"created"`
	Skipped         int              `json:"skipped"`
	CreatedEpisodes []CreatedEpisode `json:"createdEpisodes"`
	SkippedEpisodes []SkippedEpisode `json:"skippedEpisodes"`
}

// Ingestor runs feed ingestion against a store.
type Ingestor struct {
	db       database.Store
	analyzer enrich.Analyzer
	parse    ParseFunc
}

// NewIngestor creates an ingestor. The analyzer may be nil when no
// enrichment backend is configured; autoAnalyze runs then create
// episodes without enrichment.
func NewIngestor(db database.Store, analyzer enrich.Analyzer) *Ingestor {
	parser := rss.NewParser()
	return &Ingestor{
		db:       db,
		analyzer: analyzer,
		parse:    parser.Parse,
	}
}

// Run ingests one feed for one publisher. Items are processed
// sequentially: duplicate detection for item N+1 must observe episodes
// created by item N within the same run, since a feed can list
// near-duplicate episodes. Re-running an unchanged feed yields
// created=0, skipped=N.
func (ing *Ingestor) Run(ctx context.Context, publisherID int64, feedURL string, autoAnalyze bool) (*Result, error) {
	feed, err := ing.parse(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:           uuid.NewString(),
		FeedTitle:       feed.Title,
		CreatedEpisodes: []CreatedEpisode{},
		SkippedEpisodes: []SkippedEpisode{},
	}

	for _, item := range feed.Items {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		// The lookup key must be the same fallback chain newEpisode
		// stores, or an item with neither GUID nor link would never
		// match its own stored row.
		sourceRef := item.GUID
		if sourceRef == "" {
			sourceRef = item.Link
		}
		if sourceRef == "" {
			sourceRef = feedURL
		}

		dup, err := ing.db.FindDuplicateEpisode(publisherID, sourceRef, item.Title, item.PublishedAt)
		if err != nil {
			return result, fmt.Errorf("duplicate lookup for %q: %w", item.Title, err)
		}
		if dup != nil {
			result.Skipped++
			result.SkippedEpisodes = append(result.SkippedEpisodes, SkippedEpisode{
				Title:  item.Title,
				Reason: "Episode already exists",
			})
			continue
		}

		ep := newEpisode(publisherID, feedURL, item)
		if _, err := ing.db.CreateEpisode(ep); err != nil {
			return result, fmt.Errorf("create episode %q: %w", item.Title, err)
		}
		result.Created++
		result.CreatedEpisodes = append(result.CreatedEpisodes, CreatedEpisode{ID: ep.ID, Title: ep.Title})

		// Enrichment failure is isolated to this item: the episode
		// stays created and the run continues.
		if autoAnalyze && item.Description != "" && ing.analyzer != nil {
			if err := ing.enrichEpisode(ctx, ep.ID, item); err != nil {
				log.Printf("ingest %s: failed to analyze episode %d: %v", result.RunID, ep.ID, err)
			}
		}
	}

	log.Printf("ingest %s: feed %q created=%d skipped=%d", result.RunID, feed.Title, result.Created, result.Skipped)
	return result, nil
}

// newEpisode builds an episode record for a feed item. The source
// reference is the first non-empty of GUID, link, feed URL; the
// created timestamp is the item's publish date when it has one.
func newEpisode(publisherID int64, feedURL string, item rss.Item) *model.Episode {
	sourceRef := item.GUID
	if sourceRef == "" {
		sourceRef = item.Link
	}
	if sourceRef == "" {
		sourceRef = feedURL
	}
	ep := &model.Episode{
		Title:       item.Title,
		SourceRef:   &sourceRef,
		PublisherID: publisherID,
		CreatedAt:   time.Now(),
	}
	if item.Description != "" {
		desc := item.Description
		ep.Transcript = &desc
	}
	if item.PublishedAt != nil {
		ep.CreatedAt = *item.PublishedAt
	}
	return ep
}

func (ing *Ingestor) enrichEpisode(ctx context.Context, episodeID int64, item rss.Item) error {
	analysis, err := ing.analyzer.Analyze(ctx, item.Description, item.Title)
	if err != nil {
		return err
	}
	score := analysis.BrandSafetyScore
	sentiment := analysis.Sentiment
	return ing.db.UpdateEpisodeEnrichment(episodeID, database.EpisodeUpdate{
		Enriched:         analysis.Metadata(),
		BrandSafetyScore: &score,
		Sentiment:        &sentiment,
	})
}
