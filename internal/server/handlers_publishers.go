package server

import (
	"log"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/modulr-studio/modulr/internal/model"
	"github.com/modulr-studio/modulr/internal/opml"
	"github.com/modulr-studio/modulr/internal/rss"
)

func publisherID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "publisherID"), 10, 64)
}

func (s *Server) handleListPublishers(w http.ResponseWriter, r *http.Request) {
	publishers, err := s.db.GetPublishers()
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	if publishers == nil {
		publishers = []model.Publisher{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"publishers": publishers,
		"count":      len(publishers),
	})
}

func validFeedURLs(urls []string) (string, bool) {
	for _, u := range urls {
		if !rss.ValidateURL(u) {
			return u, false
		}
	}
	return "", true
}

func (s *Server) handleCreatePublisher(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string   `json:"name"`
		Email    string   `json:"email"`
		Company  string   `json:"company"`
		RSSFeeds []string `json:"rssFeeds"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			writeError(w, http.StatusBadRequest, "invalid email format")
			return
		}
	}
	if bad, ok := validFeedURLs(req.RSSFeeds); !ok {
		writeError(w, http.StatusBadRequest, "invalid RSS URL format: "+bad)
		return
	}

	p := &model.Publisher{
		Name:     req.Name,
		RSSFeeds: req.RSSFeeds,
	}
	if req.Email != "" {
		p.Email = &req.Email
	}
	if req.Company != "" {
		p.Company = &req.Company
	}

	id, err := s.db.CreatePublisher(p)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	created, err := s.db.GetPublisherByID(id)
	if err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetPublisher(w http.ResponseWriter, r *http.Request) {
	id, err := publisherID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid publisher ID")
		return
	}
	p, err := s.db.GetPublisherByID(id)
	if err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePublisher(w http.ResponseWriter, r *http.Request) {
	id, err := publisherID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid publisher ID")
		return
	}
	p, err := s.db.GetPublisherByID(id)
	if err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}

	var req struct {
		Name     *string   `json:"name"`
		Email    *string   `json:"email"`
		Company  *string   `json:"company"`
		RSSFeeds *[]string `json:"rssFeeds"`
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
		p.Name = *req.Name
	}
	if req.Email != nil {
		if *req.Email == "" {
			p.Email = nil
		} else {
			if _, err := mail.ParseAddress(*req.Email); err != nil {
				writeError(w, http.StatusBadRequest, "invalid email format")
				return
			}
			p.Email = req.Email
		}
	}
	if req.Company != nil {
		if *req.Company == "" {
			p.Company = nil
		} else {
			p.Company = req.Company
		}
	}
	if req.RSSFeeds != nil {
		if bad, ok := validFeedURLs(*req.RSSFeeds); !ok {
			writeError(w, http.StatusBadRequest, "invalid RSS URL format: "+bad)
			return
		}
		p.RSSFeeds = *req.RSSFeeds
	}

	if err := s.db.UpdatePublisher(p); err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}
	updated, err := s.db.GetPublisherByID(id)
	if err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleImportOPML appends the feed URLs from an uploaded OPML file to
// the publisher's registered feed list, skipping ones already present.
func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	id, err := publisherID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid publisher ID")
		return
	}
	p, err := s.db.GetPublisherByID(id)
	if err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}

	file, _, err := r.FormFile("opml")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	entries, err := opml.Parse(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse OPML: "+err.Error())
		return
	}

	known := make(map[string]bool, len(p.RSSFeeds))
	for _, u := range p.RSSFeeds {
		known[u] = true
	}
	imported := 0
	for _, entry := range entries {
		if !rss.ValidateURL(entry.URL) {
			log.Printf("skipping invalid feed URL from OPML: %s", entry.URL)
			continue
		}
		if known[entry.URL] {
			continue
		}
		p.RSSFeeds = append(p.RSSFeeds, entry.URL)
		known[entry.URL] = true
		imported++
	}

	if err := s.db.UpdatePublisher(p); err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imported": imported,
		"total":    len(entries),
	})
}

// handleExportOPML renders the publisher's feed list as OPML.
func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	id, err := publisherID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid publisher ID")
		return
	}
	p, err := s.db.GetPublisherByID(id)
	if err != nil {
		writeStoreError(w, err, "publisher not found")
		return
	}

	data, err := opml.Export(p.Name+" Feeds", p.RSSFeeds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=publisher-feeds.opml")
	w.Write(data)
}
