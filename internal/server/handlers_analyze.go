package server

import (
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/modulr-studio/modulr/internal/model"
	"github.com/modulr-studio/modulr/internal/rss"
)

var urlPattern = regexp.MustCompile(`^https?://.+`)

// handleAnalyze enriches submitted text (or a URL placeholder) and
// stores the result as a new episode under the default publisher.
// Unlike ingestion there is no partial unit of work to salvage, so an
// enrichment failure fails the request.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL        string `json:"url"`
		Transcript string `json:"transcript"`
		Title      string `json:"title"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" && req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "either 'url' or 'transcript' is required")
		return
	}
	if strings.TrimSpace(req.URL) != "" && !urlPattern.MatchString(req.URL) {
		writeError(w, http.StatusBadRequest, "invalid URL format")
		return
	}

	input := req.Transcript
	if input == "" {
		input = "Analyze podcast episode at " + req.URL
	}

	analysis, err := s.analyzer.Analyze(r.Context(), input, req.Title)
	if err != nil {
		log.Printf("analysis failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to analyze episode")
		return
	}

	ep := &model.Episode{
		Title:            "Untitled Episode",
		Enriched:         analysis.Metadata(),
		BrandSafetyScore: &analysis.BrandSafetyScore,
		Sentiment:        &analysis.Sentiment,
		PublisherID:      s.defaultPublisherID,
		CreatedAt:        time.Now(),
	}
	if req.Title != "" {
		ep.Title = req.Title
	}
	if req.URL != "" {
		ep.SourceRef = &req.URL
	}
	if req.Transcript != "" {
		ep.Transcript = &req.Transcript
	}

	if _, err := s.db.CreateEpisode(ep); err != nil {
		writeStoreError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":                  ep.ID,
		"summary":             analysis.Summary,
		"topics":              analysis.Topics,
		"entities":            analysis.Entities,
		"tone":                analysis.Tone,
		"sentiment":           analysis.Sentiment,
		"brand_safety_score":  analysis.BrandSafetyScore,
		"iab_categories":      analysis.IABCategories,
		"contextual_segments": analysis.ContextualSegments,
		"analyzedAt":          ep.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// handleIngestRSS runs one ingestion pass over a feed for a publisher.
func (s *Server) handleIngestRSS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PublisherID int64  `json:"publisherId"`
		RSSURL      string `json:"rssUrl"`
		AutoAnalyze bool   `json:"autoAnalyze"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PublisherID <= 0 {
		writeError(w, http.StatusBadRequest, "publisherId must be a positive integer")
		return
	}
	if !rss.ValidateURL(req.RSSURL) {
		writeError(w, http.StatusBadRequest, "invalid RSS URL format")
		return
	}

	if _, err := s.db.GetPublisherByID(req.PublisherID); err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}

	result, err := s.ingestor.Run(r.Context(), req.PublisherID, req.RSSURL, req.AutoAnalyze)
	if err != nil {
		log.Printf("RSS ingestion error: %v", err)
		writeError(w, http.StatusBadGateway, "failed to ingest RSS feed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"runId":           result.RunID,
		"feedTitle":       result.FeedTitle,
		"created":         result.Created,
		"skipped":         result.Skipped,
		"createdEpisodes": result.CreatedEpisodes,
		"skippedEpisodes": result.SkippedEpisodes,
	})
}
