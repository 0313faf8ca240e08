package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modulr-studio/modulr/internal/model"
	"github.com/modulr-studio/modulr/internal/targeting"
)

func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "campaignID"), 10, 64)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	var publisherID *int64
	if v := r.URL.Query().Get("publisherId"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			publisherID = &id
		}
	}
	campaigns, err := s.db.GetCampaigns(publisherID)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"campaigns": campaigns,
		"count":     len(campaigns),
	})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string                  `json:"name"`
		Budget           float64                 `json:"budget"`
		PublisherID      int64                   `json:"publisherId"`
		Status           string                  `json:"status"`
		TargetingFilters *model.TargetingFilters `json:"targetingFilters"`
		Impressions      int64                   `json:"impressions"`
		CTR              float64                 `json:"ctr"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Budget <= 0 {
		writeError(w, http.StatusBadRequest, "budget must be positive")
		return
	}
	if req.PublisherID <= 0 {
		writeError(w, http.StatusBadRequest, "publisherId must be a positive integer")
		return
	}
	if _, err := s.db.GetPublisherByID(req.PublisherID); err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}
	if req.Status == "" {
		req.Status = "active"
	}

	cpm := targeting.SimulateCPM(req.TargetingFilters)
	c := &model.Campaign{
		Name:             req.Name,
		Budget:           req.Budget,
		Status:           req.Status,
		PublisherID:      req.PublisherID,
		TargetingFilters: req.TargetingFilters,
		SimulatedCPM:     &cpm,
		Impressions:      req.Impressions,
		CTR:              req.CTR,
	}
	id, err := s.db.CreateCampaign(c)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	created, err := s.db.GetCampaignByID(id)
	if err != nil {
		writeStoreError(w, err, "campaign not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// matchedEpisodeJSON flattens an episode alongside its match metadata,
// matching what the dashboard consumes.
type matchedEpisodeJSON struct {
	model.Episode
	MatchMetadata model.MatchMetadata `json:"matchMetadata"`
}

type campaignMatchResponse struct {
	model.Campaign
	MatchingEpisodes []matchedEpisodeJSON `json:"matchingEpisodes"`
	MatchCount       int                  `json:"matchCount"`
}

// handleGetCampaign returns the campaign together with its matching
// inventory: the evaluator runs over all episodes on every read.
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign ID")
		return
	}
	campaign, err := s.db.GetCampaignByID(id)
	if err != nil {
		writeStoreError(w, err, "campaign not found")
		return
	}
	episodes, err := s.db.GetAllEpisodes()
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	matches := targeting.Match(campaign.TargetingFilters, episodes)
	resp := campaignMatchResponse{
		Campaign:         *campaign,
		MatchingEpisodes: make([]matchedEpisodeJSON, 0, len(matches)),
		MatchCount:       len(matches),
	}
	for _, m := range matches {
		resp.MatchingEpisodes = append(resp.MatchingEpisodes, matchedEpisodeJSON{
			Episode:       m.Episode,
			MatchMetadata: m.MatchMetadata,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleUpdateCampaign applies a partial update. The simulated CPM is
// recomputed whenever targetingFilters or budget appear in the update;
// budget does not enter the formula today but still triggers the
// recompute so a future budget-sensitive price is not silently skipped.
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign ID")
		return
	}
	campaign, err := s.db.GetCampaignByID(id)
	if err != nil {
		writeStoreError(w, err, "campaign not found")
		return
	}

	var req struct {
		Name             *string                 `json:"name"`
		Budget           *float64                `json:"budget"`
		Status           *string                 `json:"status"`
		TargetingFilters *model.TargetingFilters `json:"targetingFilters"`
		Impressions      *int64                  `json:"impressions"`
		CTR              *float64                `json:"ctr"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		campaign.Name = *req.Name
	}
	if req.Budget != nil {
		if *req.Budget <= 0 {
			writeError(w, http.StatusBadRequest, "budget must be positive")
			return
		}
		campaign.Budget = *req.Budget
	}
	if req.Status != nil {
		campaign.Status = *req.Status
	}
	if req.Impressions != nil {
		campaign.Impressions = *req.Impressions
	}
	if req.CTR != nil {
		campaign.CTR = *req.CTR
	}
	if req.TargetingFilters != nil || req.Budget != nil {
		if req.TargetingFilters != nil {
			campaign.TargetingFilters = req.TargetingFilters
		}
		cpm := targeting.SimulateCPM(campaign.TargetingFilters)
		campaign.SimulatedCPM = &cpm
	}

	if err := s.db.UpdateCampaign(campaign); err != nil {
		writeStoreError(w, err, "campaign not found")
		return
	}
	updated, err := s.db.GetCampaignByID(id)
	if err != nil {
		writeStoreError(w, err, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
