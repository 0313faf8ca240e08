package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modulr-studio/modulr/internal/database"
	"github.com/modulr-studio/modulr/internal/model"
)

func episodeID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "episodeID"), 10, 64)
}

// handleListEpisodes returns episodes newest first, optionally paged
// and filtered to one IAB category.
func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	q := database.EpisodeQuery{
		IABCategory: r.URL.Query().Get("iabCategory"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		q.Skip, _ = strconv.Atoi(v)
	}

	episodes, err := s.db.GetEpisodes(q)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if episodes == nil {
		episodes = []model.Episode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"episodes": episodes,
		"count":    len(episodes),
	})
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	id, err := episodeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode ID")
		return
	}
	ep, err := s.db.GetEpisodeByID(id)
	if err != nil {
		writeStoreError(w, err, "episode not found")
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

// handleUpdateEpisode replaces the episode's ad-break list. Breaks are
// replaced wholesale, never merged, and missing IDs get a positional
// placeholder.
func (s *Server) handleUpdateEpisode(w http.ResponseWriter, r *http.Request) {
	id, err := episodeID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode ID")
		return
	}
	if _, err := s.db.GetEpisodeByID(id); err != nil {
		writeStoreError(w, err, "episode not found")
		return
	}

	var req struct {
		AdBreaks *[]model.AdBreak `json:"adBreaks"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AdBreaks != nil {
		breaks := make([]model.AdBreak, 0, len(*req.AdBreaks))
		for i, br := range *req.AdBreaks {
			if br.StartTime < 0 {
				writeError(w, http.StatusBadRequest, "start time must be >= 0")
				return
			}
			if br.MaxDuration < 0 {
				writeError(w, http.StatusBadRequest, "max duration must be >= 0")
				return
			}
			if br.ID == "" {
				br.ID = fmt.Sprintf("break-%d", i)
			}
			breaks = append(breaks, br)
		}
		if err := s.db.ReplaceAdBreaks(id, breaks); err != nil {
			writeStoreError(w, err, "episode not found")
			return
		}
	}

	ep, err := s.db.GetEpisodeByID(id)
	if err != nil {
		writeStoreError(w, err, "episode not found")
		return
	}
	writeJSON(w, http.StatusOK, ep)
}
