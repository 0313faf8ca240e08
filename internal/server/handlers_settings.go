package server

import (
	"net/http"
	"strconv"

	"github.com/modulr-studio/modulr/internal/ingest"
	"github.com/modulr-studio/modulr/internal/model"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	interval, _ := s.db.GetPollingInterval()
	networkCode, _ := s.db.GetSetting(model.SettingGAMNetworkCode)
	writeJSON(w, http.StatusOK, map[string]any{
		"polling_interval": interval,
		"gam_network_code": networkCode,
	})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollingInterval *int    `json:"polling_interval"`
		GAMNetworkCode  *string `json:"gam_network_code"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PollingInterval != nil {
		interval := *req.PollingInterval
		if interval < ingest.MinPollingIntervalMinutes {
			interval = ingest.MinPollingIntervalMinutes
		}
		if err := s.db.SetSetting(model.SettingPollingInterval, strconv.Itoa(interval)); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save")
			return
		}
	}
	if req.GAMNetworkCode != nil {
		if err := s.db.SetSetting(model.SettingGAMNetworkCode, *req.GAMNetworkCode); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save")
			return
		}
	}

	s.handleGetSettings(w, r)
}
