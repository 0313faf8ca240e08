package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/modulr-studio/modulr/internal/export"
)

func (s *Server) handleExportGAM(w http.ResponseWriter, r *http.Request) {
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
	if r.URL.Query().Get("format") == "manual" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(export.GAMManualEntry(ep)))
		return
	}
	writeJSON(w, http.StatusOK, export.GAMKeyValues(ep))
}

func (s *Server) handleExportPrebid(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, export.FormatPrebidExt(ep))
}

// handleBulkExport renders a batch of episodes in one of four formats:
// combined json, csv, prebid ext objects, or flattened GAM key-values.
func (s *Server) handleBulkExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EpisodeIDs []int64 `json:"episodeIds"`
		Format     string  `json:"format"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.EpisodeIDs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one episode ID required")
		return
	}
	for _, id := range req.EpisodeIDs {
		if id <= 0 {
			writeError(w, http.StatusBadRequest, "episode IDs must be positive integers")
			return
		}
	}
	switch req.Format {
	case "", "json", "csv", "prebid", "gam":
	default:
		writeError(w, http.StatusBadRequest, "unknown export format")
		return
	}

	episodes, err := s.db.GetEpisodesByIDs(req.EpisodeIDs)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if len(episodes) == 0 {
		writeError(w, http.StatusNotFound, "no episodes found")
		return
	}

	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	switch req.Format {
	case "prebid":
		type prebidRow struct {
			EpisodeID    int64  `json:"episodeId"`
			EpisodeTitle string `json:"episodeTitle"`
			Ext          any    `json:"ext"`
		}
		rows := make([]prebidRow, 0, len(episodes))
		for i := range episodes {
			ext := export.FormatPrebidExt(&episodes[i])
			rows = append(rows, prebidRow{
				EpisodeID:    episodes[i].ID,
				EpisodeTitle: episodes[i].Title,
				Ext:          ext.Ext,
			})
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "episodes-prebid-"+stamp+".json"))
		writeJSON(w, http.StatusOK, rows)

	case "gam":
		rows := make([]map[string]any, 0, len(episodes))
		for i := range episodes {
			row := map[string]any{
				"episodeId":    episodes[i].ID,
				"episodeTitle": episodes[i].Title,
			}
			for k, v := range export.GAMKeyValues(&episodes[i]) {
				row[k] = v
			}
			rows = append(rows, row)
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "episodes-gam-"+stamp+".json"))
		writeJSON(w, http.StatusOK, rows)

	case "csv":
		data, err := export.BulkCSV(episodes)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to export episodes")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "episodes-export-"+stamp+".csv"))
		w.Write(data)

	default: // json
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "episodes-export-"+stamp+".json"))
		writeJSON(w, http.StatusOK, export.BulkJSON(episodes))
	}
}

// handlePrebidProxy forwards an ORTB bid request to the Prebid Server,
// injecting episode metadata under ext.modulr when an episode ID is
// present in the request or query string. The auction itself is a pure
// pass-through.
func (s *Server) handlePrebidProxy(w http.ResponseWriter, r *http.Request) {
	var bidRequest map[string]any
	if err := readJSON(r, &bidRequest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bid request")
		return
	}

	if id, ok := extractEpisodeID(bidRequest, r.URL.Query().Get("episodeId")); ok {
		if err := s.injectMetadata(bidRequest, id); err != nil {
			// Enrichment of the bid request is best-effort; the
			// auction proceeds without it.
			log.Printf("failed to inject metadata for episode %d: %v", id, err)
		}
	}

	body, err := json.Marshal(bidRequest)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process bid request")
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.prebidURL, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process bid request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-openrtb-version", "2.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("prebid server request: %v", err)
		writeError(w, http.StatusBadGateway, "prebid server request failed")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// extractEpisodeID finds the episode reference in ext.modulr.episodeId
// or the episodeId query parameter, in that order.
func extractEpisodeID(bidRequest map[string]any, queryParam string) (int64, bool) {
	if ext, ok := bidRequest["ext"].(map[string]any); ok {
		if modulr, ok := ext["modulr"].(map[string]any); ok {
			switch v := modulr["episodeId"].(type) {
			case float64:
				return int64(v), true
			case string:
				if id, err := strconv.ParseInt(v, 10, 64); err == nil {
					return id, true
				}
			}
		}
	}
	if queryParam != "" {
		if id, err := strconv.ParseInt(queryParam, 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

// injectMetadata merges the episode's ext.modulr object into the bid
// request's top-level ext and into every impression's ext.
func (s *Server) injectMetadata(bidRequest map[string]any, id int64) error {
	ep, err := s.db.GetEpisodeByID(id)
	if err != nil {
		return err
	}
	modulr := export.FormatPrebidExt(ep).Ext.Modulr

	ext, ok := bidRequest["ext"].(map[string]any)
	if !ok {
		ext = make(map[string]any)
		bidRequest["ext"] = ext
	}
	ext["modulr"] = modulr

	if imps, ok := bidRequest["imp"].([]any); ok {
		for _, raw := range imps {
			imp, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			impExt, ok := imp["ext"].(map[string]any)
			if !ok {
				impExt = make(map[string]any)
				imp["ext"] = impExt
			}
			impExt["modulr"] = modulr
		}
	}
	return nil
}
