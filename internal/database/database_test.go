package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/modulr-studio/modulr/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func fptr(f float64) *float64 { return &f }

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedPublisher(t *testing.T, db *DB, name string) int64 {
	t.Helper()
	id, err := db.CreatePublisher(&model.Publisher{Name: name})
	require.NoError(t, err)
	return id
}

func TestDatabaseType(t *testing.T) {
	assert.Equal(t, "SQLite", testDB(t).DatabaseType())
}

func TestPublisherCRUD(t *testing.T) {
	db := testDB(t)

	id, err := db.CreatePublisher(&model.Publisher{
		Name:     "Acme Audio",
		Email:    strptr("ops@acme.example"),
		RSSFeeds: []string{"https://acme.example/feed.xml"},
	})
	require.NoError(t, err)

	p, err := db.GetPublisherByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Audio", p.Name)
	assert.Equal(t, "ops@acme.example", *p.Email)
	assert.Equal(t, []string{"https://acme.example/feed.xml"}, p.RSSFeeds)
	assert.Equal(t, 0, p.EpisodeCount)

	p.Name = "Acme Podcasts"
	p.RSSFeeds = append(p.RSSFeeds, "https://acme.example/other.xml")
	require.NoError(t, db.UpdatePublisher(p))

	p2, err := db.GetPublisherByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Podcasts", p2.Name)
	assert.Len(t, p2.RSSFeeds, 2)

	_, err = db.GetPublisherByID(9999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGetOrCreatePublisher(t *testing.T) {
	db := testDB(t)

	id, created, err := db.GetOrCreatePublisher("Default Publisher")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := db.GetOrCreatePublisher("Default Publisher")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestEpisodeRoundTrip(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")

	ep := &model.Episode{
		Title:      "Episode 1",
		SourceRef:  strptr("guid-1"),
		Transcript: strptr("hello world"),
		Enriched: &model.EnrichedMetadata{
			Summary:          "s",
			IABCategories:    []string{"IAB1", "IAB19"},
			BrandSafetyScore: 8,
		},
		BrandSafetyScore: fptr(8),
		Sentiment:        strptr(model.SentimentPositive),
		AdBreaks:         []model.AdBreak{{ID: "pre", StartTime: 0, MaxDuration: 30}},
		PublisherID:      pubID,
	}
	id, err := db.CreateEpisode(ep)
	require.NoError(t, err)

	got, err := db.GetEpisodeByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Episode 1", got.Title)
	assert.Equal(t, "guid-1", *got.SourceRef)
	require.NotNil(t, got.Enriched)
	assert.Equal(t, []string{"IAB1", "IAB19"}, got.Enriched.IABCategories)
	assert.Equal(t, 8.0, *got.BrandSafetyScore)
	require.Len(t, got.AdBreaks, 1)
	assert.Equal(t, "pre", got.AdBreaks[0].ID)
	require.NotNil(t, got.Publisher)
	assert.Equal(t, "pub", got.Publisher.Name)
}

func TestEpisodeNullableFieldsStayNil(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")

	id, err := db.CreateEpisode(&model.Episode{Title: "bare", PublisherID: pubID})
	require.NoError(t, err)

	got, err := db.GetEpisodeByID(id)
	require.NoError(t, err)
	assert.Nil(t, got.SourceRef)
	assert.Nil(t, got.Enriched)
	assert.Nil(t, got.BrandSafetyScore)
	assert.Nil(t, got.Sentiment)
	assert.Nil(t, got.AdBreaks)
}

func TestGetEpisodesPagingAndCategoryFilter(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		ep := &model.Episode{
			Title:       "ep",
			PublisherID: pubID,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if i%2 == 0 {
			ep.Enriched = &model.EnrichedMetadata{IABCategories: []string{"IAB19"}}
		}
		_, err := db.CreateEpisode(ep)
		require.NoError(t, err)
	}

	all, err := db.GetAllEpisodes()
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].CreatedAt.After(all[4].CreatedAt), "newest first")

	paged, err := db.GetEpisodes(EpisodeQuery{Limit: 2, Skip: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 2)
	assert.Equal(t, all[1].ID, paged[0].ID)

	tech, err := db.GetEpisodes(EpisodeQuery{IABCategory: "IAB19"})
	require.NoError(t, err)
	assert.Len(t, tech, 3)

	none, err := db.GetEpisodes(EpisodeQuery{IABCategory: "IAB2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetEpisodesByIDs(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := db.CreateEpisode(&model.Episode{Title: "ep", PublisherID: pubID})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	got, err := db.GetEpisodesByIDs([]int64{ids[0], ids[2]})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = db.GetEpisodesByIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpdateEpisodeEnrichmentRefreshesCategories(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")

	id, err := db.CreateEpisode(&model.Episode{
		Title:       "ep",
		PublisherID: pubID,
		Enriched:    &model.EnrichedMetadata{IABCategories: []string{"IAB1"}},
	})
	require.NoError(t, err)

	err = db.UpdateEpisodeEnrichment(id, EpisodeUpdate{
		Enriched:         &model.EnrichedMetadata{IABCategories: []string{"IAB2", "IAB3"}, BrandSafetyScore: 6},
		BrandSafetyScore: fptr(6),
		Sentiment:        strptr(model.SentimentNeutral),
	})
	require.NoError(t, err)

	got, err := db.GetEpisodeByID(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"IAB2", "IAB3"}, got.Enriched.IABCategories)
	assert.Equal(t, 6.0, *got.BrandSafetyScore)

	// Old category no longer matches, new ones do.
	old, err := db.GetEpisodes(EpisodeQuery{IABCategory: "IAB1"})
	require.NoError(t, err)
	assert.Empty(t, old)
	cur, err := db.GetEpisodes(EpisodeQuery{IABCategory: "IAB3"})
	require.NoError(t, err)
	assert.Len(t, cur, 1)

	err = db.UpdateEpisodeEnrichment(9999, EpisodeUpdate{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReplaceAdBreaks(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")

	id, err := db.CreateEpisode(&model.Episode{Title: "ep", PublisherID: pubID})
	require.NoError(t, err)

	breaks := []model.AdBreak{{ID: "mid", StartTime: 120, MaxDuration: 60}}
	require.NoError(t, db.ReplaceAdBreaks(id, breaks))

	got, err := db.GetEpisodeByID(id)
	require.NoError(t, err)
	assert.Equal(t, breaks, got.AdBreaks)

	// Empty replacement stores [] rather than NULL.
	require.NoError(t, db.ReplaceAdBreaks(id, nil))
	got, err = db.GetEpisodeByID(id)
	require.NoError(t, err)
	assert.NotNil(t, got.AdBreaks)
	assert.Empty(t, got.AdBreaks)

	assert.ErrorIs(t, db.ReplaceAdBreaks(9999, breaks), sql.ErrNoRows)
}

func TestFindDuplicateEpisode(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")
	otherPub := seedPublisher(t, db, "other")

	published := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	_, err := db.CreateEpisode(&model.Episode{
		Title:       "Episode 1",
		SourceRef:   strptr("guid-1"),
		PublisherID: pubID,
		CreatedAt:   published,
	})
	require.NoError(t, err)

	t.Run("source ref hit", func(t *testing.T) {
		dup, err := db.FindDuplicateEpisode(pubID, "guid-1", "unrelated title", nil)
		require.NoError(t, err)
		require.NotNil(t, dup)
		assert.Equal(t, "Episode 1", dup.Title)
	})

	t.Run("scoped to publisher", func(t *testing.T) {
		dup, err := db.FindDuplicateEpisode(otherPub, "guid-1", "Episode 1", &published)
		require.NoError(t, err)
		assert.Nil(t, dup)
	})

	t.Run("title match inside window", func(t *testing.T) {
		near := published.Add(23 * time.Hour)
		dup, err := db.FindDuplicateEpisode(pubID, "different-guid", "Episode 1", &near)
		require.NoError(t, err)
		assert.NotNil(t, dup)
	})

	t.Run("title match outside window", func(t *testing.T) {
		far := published.Add(25 * time.Hour)
		dup, err := db.FindDuplicateEpisode(pubID, "different-guid", "Episode 1", &far)
		require.NoError(t, err)
		assert.Nil(t, dup)
	})

	t.Run("nil publish date skips title check", func(t *testing.T) {
		dup, err := db.FindDuplicateEpisode(pubID, "different-guid", "Episode 1", nil)
		require.NoError(t, err)
		assert.Nil(t, dup)
	})
}

func TestCampaignCRUD(t *testing.T) {
	db := testDB(t)
	pubID := seedPublisher(t, db, "pub")
	otherPub := seedPublisher(t, db, "other")

	cpm := 3.4
	id, err := db.CreateCampaign(&model.Campaign{
		Name:        "Spring Push",
		Budget:      5000,
		Status:      "active",
		PublisherID: pubID,
		TargetingFilters: &model.TargetingFilters{
			IABCategories:       []string{"IAB1"},
			MinBrandSafetyScore: fptr(8),
		},
		SimulatedCPM: &cpm,
	})
	require.NoError(t, err)

	_, err = db.CreateCampaign(&model.Campaign{Name: "Other", Budget: 100, Status: "paused", PublisherID: otherPub})
	require.NoError(t, err)

	c, err := db.GetCampaignByID(id)
	require.NoError(t, err)
	assert.Equal(t, "Spring Push", c.Name)
	require.NotNil(t, c.TargetingFilters)
	assert.Equal(t, []string{"IAB1"}, c.TargetingFilters.IABCategories)
	assert.Equal(t, 8.0, *c.TargetingFilters.MinBrandSafetyScore)
	assert.Equal(t, 3.4, *c.SimulatedCPM)
	require.NotNil(t, c.Publisher)
	assert.Equal(t, "pub", c.Publisher.Name)

	all, err := db.GetCampaigns(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := db.GetCampaigns(&pubID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	c.Status = "paused"
	c.Budget = 7500
	require.NoError(t, db.UpdateCampaign(c))

	c2, err := db.GetCampaignByID(id)
	require.NoError(t, err)
	assert.Equal(t, "paused", c2.Status)
	assert.Equal(t, 7500.0, c2.Budget)

	_, err = db.GetCampaignByID(9999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSettings(t *testing.T) {
	db := testDB(t)

	// Seeded by migration.
	val, err := db.GetSetting(model.SettingPollingInterval)
	require.NoError(t, err)
	assert.Equal(t, "15", val)

	require.NoError(t, db.SetSetting(model.SettingGAMNetworkCode, "12345"))
	val, err = db.GetSetting(model.SettingGAMNetworkCode)
	require.NoError(t, err)
	assert.Equal(t, "12345", val)

	// Upsert overwrites.
	require.NoError(t, db.SetSetting(model.SettingGAMNetworkCode, "67890"))
	val, err = db.GetSetting(model.SettingGAMNetworkCode)
	require.NoError(t, err)
	assert.Equal(t, "67890", val)

	_, err = db.GetSetting("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
	assert.Equal(t,
		"INSERT INTO settings (key, value) VALUES ($1, $2)",
		rebind("INSERT INTO settings (key, value) VALUES (?, ?)"))
}

func TestGetPollingIntervalFloor(t *testing.T) {
	db := testDB(t)

	mins, err := db.GetPollingInterval()
	require.NoError(t, err)
	assert.Equal(t, 15, mins)

	require.NoError(t, db.SetSetting(model.SettingPollingInterval, "5"))
	mins, err = db.GetPollingInterval()
	require.NoError(t, err)
	assert.Equal(t, 15, mins, "interval clamps to the minimum")

	require.NoError(t, db.SetSetting(model.SettingPollingInterval, "60"))
	mins, err = db.GetPollingInterval()
	require.NoError(t, err)
	assert.Equal(t, 60, mins)
}
