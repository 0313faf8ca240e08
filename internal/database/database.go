// Package database provides SQLite storage for the ad-ops service.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modulr-studio/modulr/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS publishers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		company TEXT,
		rss_feeds TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		source_ref TEXT,
		transcript TEXT,
		enriched_metadata TEXT,
		brand_safety_score REAL,
		sentiment TEXT,
		contextual_score REAL,
		ad_breaks TEXT,
		publisher_id INTEGER NOT NULL REFERENCES publishers(id),
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_episodes_publisher ON episodes(publisher_id);
	CREATE INDEX IF NOT EXISTS idx_episodes_source_ref ON episodes(source_ref);
	-- Materialized category relation so listings filter in SQL instead
	-- of scanning metadata JSON in memory.
	CREATE TABLE IF NOT EXISTS episode_categories (
		episode_id INTEGER NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		PRIMARY KEY (episode_id, category)
	);
	CREATE INDEX IF NOT EXISTS idx_episode_categories_cat ON episode_categories(category);
	CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		budget REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		publisher_id INTEGER NOT NULL REFERENCES publishers(id),
		targeting_filters TEXT,
		simulated_cpm REAL,
		impressions INTEGER NOT NULL DEFAULT 0,
		ctr REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	-- Default polling interval (15 minutes minimum).
	INSERT OR IGNORE INTO settings (key, value) VALUES ('polling_interval_minutes', '15');
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- JSON column helpers ---

func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalJSON(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

// --- Publisher Methods ---

// CreatePublisher adds a new publisher. Returns the ID.
func (db *DB) CreatePublisher(p *model.Publisher) (int64, error) {
	feeds, err := marshalJSON(orEmpty(p.RSSFeeds))
	if err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := db.conn.Exec(
		"INSERT INTO publishers (name, email, company, rss_feeds, created_at) VALUES (?, ?, ?, ?, ?)",
		p.Name, p.Email, p.Company, feeds.String, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPublishers returns all publishers with their episode counts,
// newest first.
func (db *DB) GetPublishers() ([]model.Publisher, error) {
	rows, err := db.conn.Query(`
		SELECT p.id, p.name, p.email, p.company, p.rss_feeds, p.created_at,
		       (SELECT COUNT(*) FROM episodes e WHERE e.publisher_id = p.id)
		FROM publishers p ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pubs []model.Publisher
	for rows.Next() {
		var p model.Publisher
		var feeds sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Company, &feeds, &p.CreatedAt, &p.EpisodeCount); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(feeds, &p.RSSFeeds); err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}

// GetPublisherByID returns one publisher with its episodes, newest first.
func (db *DB) GetPublisherByID(id int64) (*model.Publisher, error) {
	var p model.Publisher
	var feeds sql.NullString
	err := db.conn.QueryRow(
		"SELECT id, name, email, company, rss_feeds, created_at FROM publishers WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.Email, &p.Company, &feeds, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(feeds, &p.RSSFeeds); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(episodeColumns+" FROM episodes WHERE publisher_id = ? ORDER BY created_at DESC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	p.Episodes, err = scanEpisodes(rows)
	if err != nil {
		return nil, err
	}
	p.EpisodeCount = len(p.Episodes)
	return &p, nil
}

// UpdatePublisher overwrites a publisher's mutable fields.
func (db *DB) UpdatePublisher(p *model.Publisher) error {
	feeds, err := marshalJSON(orEmpty(p.RSSFeeds))
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"UPDATE publishers SET name = ?, email = ?, company = ?, rss_feeds = ? WHERE id = ?",
		p.Name, p.Email, p.Company, feeds.String, p.ID)
	return err
}

// GetOrCreatePublisher finds a publisher by name, or creates it.
// Returns the ID and whether it was created.
func (db *DB) GetOrCreatePublisher(name string) (int64, bool, error) {
	var id int64
	err := db.conn.QueryRow("SELECT id FROM publishers WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		id, err := db.CreatePublisher(&model.Publisher{Name: name})
		return id, true, err
	}
	return id, false, err
}

// --- Episode Methods ---

const episodeColumns = `SELECT id, title, source_ref, transcript, enriched_metadata,
	brand_safety_score, sentiment, contextual_score, ad_breaks, publisher_id, created_at`

// CreateEpisode adds a new episode. Returns the ID.
func (db *DB) CreateEpisode(ep *model.Episode) (int64, error) {
	enriched, err := marshalJSON(nilable(ep.Enriched))
	if err != nil {
		return 0, err
	}
	var breaks sql.NullString
	if ep.AdBreaks != nil {
		if breaks, err = marshalJSON(ep.AdBreaks); err != nil {
			return 0, err
		}
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now()
	}
	res, err := db.conn.Exec(`
		INSERT INTO episodes (title, source_ref, transcript, enriched_metadata,
			brand_safety_score, sentiment, contextual_score, ad_breaks, publisher_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.Title, ep.SourceRef, ep.Transcript, enriched,
		ep.BrandSafetyScore, ep.Sentiment, ep.ContextualScore, breaks, ep.PublisherID, ep.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	ep.ID = id
	if ep.Enriched != nil {
		if err := db.replaceCategories(id, ep.Enriched.IABCategories); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// GetEpisodes returns episodes newest first, optionally paged and
// filtered by IAB category through the category relation.
func (db *DB) GetEpisodes(q EpisodeQuery) ([]model.Episode, error) {
	query := episodeColumns + " FROM episodes"
	var args []any
	if q.IABCategory != "" {
		query = `SELECT e.id, e.title, e.source_ref, e.transcript, e.enriched_metadata,
			e.brand_safety_score, e.sentiment, e.contextual_score, e.ad_breaks, e.publisher_id, e.created_at
			FROM episodes e
			JOIN episode_categories c ON c.episode_id = e.id AND c.category = ?`
		args = append(args, q.IABCategory)
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 || q.Skip > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1 // no limit, offset only
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, q.Skip)
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// GetAllEpisodes returns every episode, newest first. Used by the
// campaign match evaluation which runs over the whole inventory.
func (db *DB) GetAllEpisodes() ([]model.Episode, error) {
	return db.GetEpisodes(EpisodeQuery{})
}

// GetEpisodeByID returns one episode with its publisher attached.
func (db *DB) GetEpisodeByID(id int64) (*model.Episode, error) {
	row := db.conn.QueryRow(episodeColumns+" FROM episodes WHERE id = ?", id)
	ep, err := scanEpisode(row)
	if err != nil {
		return nil, err
	}
	var p model.Publisher
	err = db.conn.QueryRow("SELECT id, name, email, company FROM publishers WHERE id = ?", ep.PublisherID).
		Scan(&p.ID, &p.Name, &p.Email, &p.Company)
	if err == nil {
		ep.Publisher = &p
	} else if err != sql.ErrNoRows {
		return nil, err
	}
	return ep, nil
}

// GetEpisodesByIDs returns the episodes with the given IDs, newest first.
func (db *DB) GetEpisodesByIDs(ids []int64) ([]model.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}
	rows, err := db.conn.Query(
		episodeColumns+" FROM episodes WHERE id IN ("+placeholders+") ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// UpdateEpisodeEnrichment overwrites the enrichment fields and
// refreshes the category relation in one transaction.
func (db *DB) UpdateEpisodeEnrichment(id int64, upd EpisodeUpdate) error {
	enriched, err := marshalJSON(nilable(upd.Enriched))
	if err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(
		"UPDATE episodes SET enriched_metadata = ?, brand_safety_score = ?, sentiment = ? WHERE id = ?",
		enriched, upd.BrandSafetyScore, upd.Sentiment, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return sql.ErrNoRows
	}
	if _, err := tx.Exec("DELETE FROM episode_categories WHERE episode_id = ?", id); err != nil {
		tx.Rollback()
		return err
	}
	if upd.Enriched != nil {
		for _, cat := range upd.Enriched.IABCategories {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO episode_categories (episode_id, category) VALUES (?, ?)", id, cat); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func (db *DB) replaceCategories(id int64, categories []string) error {
	if _, err := db.conn.Exec("DELETE FROM episode_categories WHERE episode_id = ?", id); err != nil {
		return err
	}
	for _, cat := range categories {
		if _, err := db.conn.Exec(
			"INSERT OR IGNORE INTO episode_categories (episode_id, category) VALUES (?, ?)", id, cat); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceAdBreaks replaces the episode's ad-break list wholesale.
func (db *DB) ReplaceAdBreaks(id int64, breaks []model.AdBreak) error {
	data, err := marshalJSON(orEmptyBreaks(breaks))
	if err != nil {
		return err
	}
	res, err := db.conn.Exec("UPDATE episodes SET ad_breaks = ? WHERE id = ?", data.String, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindDuplicateEpisode implements the ingestion dedup key pair: an
// exact source-reference hit, or a same-title episode created within
// the duplicate window around the item's publish date.
func (db *DB) FindDuplicateEpisode(publisherID int64, sourceRef, title string, publishedAt *time.Time) (*model.Episode, error) {
	var row *sql.Row
	if publishedAt == nil {
		row = db.conn.QueryRow(
			episodeColumns+" FROM episodes WHERE publisher_id = ? AND source_ref = ? LIMIT 1",
			publisherID, sourceRef)
	} else {
		lo := publishedAt.Add(-DuplicateWindow)
		hi := publishedAt.Add(DuplicateWindow)
		row = db.conn.QueryRow(
			episodeColumns+` FROM episodes WHERE publisher_id = ?
				AND (source_ref = ? OR (title = ? AND created_at >= ? AND created_at <= ?)) LIMIT 1`,
			publisherID, sourceRef, title, lo, hi)
	}
	ep, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ep, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisodeInto(s rowScanner) (*model.Episode, error) {
	var ep model.Episode
	var enriched, breaks sql.NullString
	if err := s.Scan(&ep.ID, &ep.Title, &ep.SourceRef, &ep.Transcript, &enriched,
		&ep.BrandSafetyScore, &ep.Sentiment, &ep.ContextualScore, &breaks,
		&ep.PublisherID, &ep.CreatedAt); err != nil {
		return nil, err
	}
	if enriched.Valid {
		ep.Enriched = &model.EnrichedMetadata{}
		if err := unmarshalJSON(enriched, ep.Enriched); err != nil {
			return nil, err
		}
	}
	if err := unmarshalJSON(breaks, &ep.AdBreaks); err != nil {
		return nil, err
	}
	return &ep, nil
}

func scanEpisode(row *sql.Row) (*model.Episode, error) {
	return scanEpisodeInto(row)
}

func scanEpisodes(rows *sql.Rows) ([]model.Episode, error) {
	var eps []model.Episode
	for rows.Next() {
		ep, err := scanEpisodeInto(rows)
		if err != nil {
			return nil, err
		}
		eps = append(eps, *ep)
	}
	return eps, rows.Err()
}

// --- Campaign Methods ---

const campaignColumns = `SELECT c.id, c.name, c.budget, c.status, c.publisher_id,
	c.targeting_filters, c.simulated_cpm, c.impressions, c.ctr, c.created_at,
	p.id, p.name, p.email, p.company
	FROM campaigns c JOIN publishers p ON p.id = c.publisher_id`

// CreateCampaign adds a new campaign. Returns the ID.
func (db *DB) CreateCampaign(c *model.Campaign) (int64, error) {
	filters, err := marshalJSON(nilable(c.TargetingFilters))
	if err != nil {
		return 0, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := db.conn.Exec(`
		INSERT INTO campaigns (name, budget, status, publisher_id, targeting_filters,
			simulated_cpm, impressions, ctr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Budget, c.Status, c.PublisherID, filters,
		c.SimulatedCPM, c.Impressions, c.CTR, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetCampaigns returns campaigns newest first, optionally filtered by
// publisher.
func (db *DB) GetCampaigns(publisherID *int64) ([]model.Campaign, error) {
	query := campaignColumns
	var args []any
	if publisherID != nil {
		query += " WHERE c.publisher_id = ?"
		args = append(args, *publisherID)
	}
	query += " ORDER BY c.created_at DESC"
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var camps []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		camps = append(camps, *c)
	}
	return camps, rows.Err()
}

// GetCampaignByID returns one campaign with its publisher attached.
func (db *DB) GetCampaignByID(id int64) (*model.Campaign, error) {
	return scanCampaign(db.conn.QueryRow(campaignColumns+" WHERE c.id = ?", id))
}

func scanCampaign(s rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var p model.Publisher
	var filters sql.NullString
	if err := s.Scan(&c.ID, &c.Name, &c.Budget, &c.Status, &c.PublisherID,
		&filters, &c.SimulatedCPM, &c.Impressions, &c.CTR, &c.CreatedAt,
		&p.ID, &p.Name, &p.Email, &p.Company); err != nil {
		return nil, err
	}
	if filters.Valid {
		c.TargetingFilters = &model.TargetingFilters{}
		if err := unmarshalJSON(filters, c.TargetingFilters); err != nil {
			return nil, err
		}
	}
	c.Publisher = &p
	return &c, nil
}

// UpdateCampaign overwrites a campaign's mutable fields, including the
// derived simulated CPM.
func (db *DB) UpdateCampaign(c *model.Campaign) error {
	filters, err := marshalJSON(nilable(c.TargetingFilters))
	if err != nil {
		return err
	}
	res, err := db.conn.Exec(`
		UPDATE campaigns SET name = ?, budget = ?, status = ?, targeting_filters = ?,
			simulated_cpm = ?, impressions = ?, ctr = ? WHERE id = ?`,
		c.Name, c.Budget, c.Status, filters, c.SimulatedCPM, c.Impressions, c.CTR, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Settings Methods ---

// GetSetting retrieves a setting value.
func (db *DB) GetSetting(key string) (string, error) {
	var val string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&val)
	return val, err
}

// SetSetting saves a setting.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?",
		key, value, value)
	return err
}

// GetPollingInterval returns the polling interval in minutes, with a
// minimum of 15.
func (db *DB) GetPollingInterval() (int, error) {
	val, err := db.GetSetting(model.SettingPollingInterval)
	if err != nil {
		return 15, nil // default
	}
	var mins int
	fmt.Sscanf(val, "%d", &mins)
	if mins < 15 {
		mins = 15
	}
	return mins, nil
}

// --- small helpers shared with the postgres backend ---

// nilable turns a typed nil pointer into an untyped nil so JSON
// columns store SQL NULL instead of the string "null".
func nilable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return v
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyBreaks(b []model.AdBreak) []model.AdBreak {
	if b == nil {
		return []model.AdBreak{}
	}
	return b
}
