// Package database provides storage backends for the ad-ops service.
package database

import (
	"time"

	"github.com/modulr-studio/modulr/internal/model"
)

// EpisodeUpdate carries the enrichment fields written back onto an
// episode after analysis. All three are overwritten together.
type EpisodeUpdate struct {
	Enriched         *model.EnrichedMetadata
	BrandSafetyScore *float64
	Sentiment        *string
}

// EpisodeQuery narrows episode listings.
type EpisodeQuery struct {
	Limit       int
	Skip        int
	IABCategory string // exact taxonomy code, matched via the category relation
}

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Publisher operations
	CreatePublisher(p *model.Publisher) (int64, error)
	GetPublishers() ([]model.Publisher, error)
	GetPublisherByID(id int64) (*model.Publisher, error)
	UpdatePublisher(p *model.Publisher) error
	GetOrCreatePublisher(name string) (int64, bool, error)

	// Episode operations
	CreateEpisode(ep *model.Episode) (int64, error)
	GetEpisodes(q EpisodeQuery) ([]model.Episode, error)
	GetAllEpisodes() ([]model.Episode, error)
	GetEpisodeByID(id int64) (*model.Episode, error)
	GetEpisodesByIDs(ids []int64) ([]model.Episode, error)
	UpdateEpisodeEnrichment(id int64, upd EpisodeUpdate) error
	ReplaceAdBreaks(id int64, breaks []model.AdBreak) error

	// FindDuplicateEpisode looks for a prior episode of the same
	// publisher that either carries the given source reference, or has
	// the same title and was created within ±24h of publishedAt (the
	// title check is skipped when publishedAt is nil).
	FindDuplicateEpisode(publisherID int64, sourceRef, title string, publishedAt *time.Time) (*model.Episode, error)

	// Campaign operations
	CreateCampaign(c *model.Campaign) (int64, error)
	GetCampaigns(publisherID *int64) ([]model.Campaign, error)
	GetCampaignByID(id int64) (*model.Campaign, error)
	UpdateCampaign(c *model.Campaign) error

	// Settings operations
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	GetPollingInterval() (int, error)
}

// DuplicateWindow is the title-match window around an item's publish
// date within which an existing episode counts as the same episode.
const DuplicateWindow = 24 * time.Hour
