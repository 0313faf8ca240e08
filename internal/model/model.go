// Package model defines shared data structures.
package model

import "time"

// Recognized sentiment values produced by the enrichment client.
// Other producers are not validated against this set, so consumers
// must treat unknown values as valid but unmatched.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// EnrichedMetadata is the fixed-shape analysis object produced by the
// enrichment client. It is stored verbatim on the episode and treated
// as read-only afterwards.
type EnrichedMetadata struct {
	Summary            string   `json:"summary"`
	Topics             []string `json:"topics"`
	Entities           []string `json:"entities"`
	Tone               string   `json:"tone"`
	Sentiment          string   `json:"sentiment"`
	BrandSafetyScore   float64  `json:"brand_safety_score"`
	IABCategories      []string `json:"iab_categories"`
	ContextualSegments []string `json:"contextual_segments"`
}

// AdBreak is a single ad insertion opportunity within an episode.
// The list on an episode is ordered and replaced wholesale on update.
type AdBreak struct {
	ID          string  `json:"id"`
	StartTime   float64 `json:"startTime"`
	MaxDuration float64 `json:"maxDuration"`
}

// Episode is a unit of audio content, created by manual analysis or
// feed ingestion and enriched afterwards. Episodes are never deleted.
type Episode struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	SourceRef        *string           `json:"rssUrl"` // feed GUID, item link, or feed URL
	Transcript       *string           `json:"transcript"`
	Enriched         *EnrichedMetadata `json:"enrichedMetadata"`
	BrandSafetyScore *float64          `json:"brandSafetyScore"` // 0-10 when present
	Sentiment        *string           `json:"sentiment"`
	ContextualScore  *float64          `json:"contextualScore"` // reserved, always null today
	AdBreaks         []AdBreak         `json:"adBreaks"`
	PublisherID      int64             `json:"publisherId"`
	Publisher        *Publisher        `json:"publisher,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// IABCategories returns the episode's stored taxonomy codes, empty
// when the episode has not been enriched.
func (e *Episode) IABCategories() []string {
	if e.Enriched == nil {
		return nil
	}
	return e.Enriched.IABCategories
}

// Publisher owns zero or more episodes and a list of RSS feed URLs.
type Publisher struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        *string   `json:"email"`
	Company      *string   `json:"company"`
	RSSFeeds     []string  `json:"rssFeeds"`
	EpisodeCount int       `json:"episodeCount,omitempty"`
	Episodes     []Episode `json:"episodes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TargetingFilters are an advertiser's contextual targeting rules.
// A nil field means "no constraint on that dimension", not zero.
type TargetingFilters struct {
	IABCategories       []string `json:"iabCategories,omitempty"`
	Sentiment           []string `json:"sentiment,omitempty"`
	MinBrandSafetyScore *float64 `json:"minBrandSafetyScore,omitempty"`
}

// Campaign is an advertiser campaign. SimulatedCPM is derived from the
// targeting filters and recomputed whenever filters or budget change;
// it is never set directly.
type Campaign struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Budget           float64           `json:"budget"`
	Status           string            `json:"status"`
	PublisherID      int64             `json:"publisherId"`
	Publisher        *Publisher        `json:"publisher,omitempty"`
	TargetingFilters *TargetingFilters `json:"targetingFilters"`
	SimulatedCPM     *float64          `json:"simulatedCpm"`
	Impressions      int64             `json:"impressions"`
	CTR              float64           `json:"ctr"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// MatchMetadata describes how an episode satisfied a campaign's
// targeting rules. It is derived per evaluation and never persisted.
type MatchMetadata struct {
	EpisodeID  int64   `json:"episodeId"`
	MatchScore int     `json:"matchScore"`
	CPMUplift  float64 `json:"cpmUplift"`
}

// MatchedEpisode pairs an episode with its match metadata.
type MatchedEpisode struct {
	Episode       Episode       `json:"episode"`
	MatchMetadata MatchMetadata `json:"matchMetadata"`
}

// Settings key constants.
const (
	SettingPollingInterval = "polling_interval_minutes"
	SettingGAMNetworkCode  = "gam_network_code"
)
