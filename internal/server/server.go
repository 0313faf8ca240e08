// Package server provides the HTTP API.
package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modulr-studio/modulr/internal/database"
	"github.com/modulr-studio/modulr/internal/enrich"
	"github.com/modulr-studio/modulr/internal/ingest"
)

// Server is the main HTTP server.
type Server struct {
	db                 database.Store
	analyzer           enrich.Analyzer
	ingestor           *ingest.Ingestor
	poller             *ingest.Poller
	router             chi.Router
	prebidURL          string
	defaultPublisherID int64
	httpClient         *http.Client
}

// New creates a new server. defaultPublisherID is the seeded publisher
// manual analysis submissions attach to.
func New(db database.Store, analyzer enrich.Analyzer, prebidURL string, defaultPublisherID int64) *Server {
	ingestor := ingest.NewIngestor(db, analyzer)
	s := &Server{
		db:                 db,
		analyzer:           analyzer,
		ingestor:           ingestor,
		poller:             ingest.NewPoller(ingestor),
		prebidURL:          prebidURL,
		defaultPublisherID: defaultPublisherID,
		httpClient:         &http.Client{},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/ingest/rss", s.handleIngestRSS)
		r.Post("/prebid", s.handlePrebidProxy)

		r.Route("/episodes", func(r chi.Router) {
			r.Get("/", s.handleListEpisodes)
			r.Post("/export/bulk", s.handleBulkExport)
			r.Route("/{episodeID}", func(r chi.Router) {
				r.Get("/", s.handleGetEpisode)
				r.Patch("/", s.handleUpdateEpisode)
				r.Get("/export/gam", s.handleExportGAM)
				r.Get("/export/prebid", s.handleExportPrebid)
			})
		})

		r.Route("/publishers", func(r chi.Router) {
			r.Get("/", s.handleListPublishers)
			r.Post("/", s.handleCreatePublisher)
			r.Route("/{publisherID}", func(r chi.Router) {
				r.Get("/", s.handleGetPublisher)
				r.Put("/", s.handleUpdatePublisher)
				r.Post("/import-opml", s.handleImportOPML)
				r.Get("/export-opml", s.handleExportOPML)
			})
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Get("/{campaignID}", s.handleGetCampaign)
			r.Put("/{campaignID}", s.handleUpdateCampaign)
		})

		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleSaveSettings)
	})

	s.router = r
}

// StartPoller starts the background auto-ingest loop.
func (s *Server) StartPoller() {
	s.poller.Start()
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	log.Printf("Server starting on %s (%s backend)", addr, s.db.DatabaseType())
	return http.ListenAndServe(addr, s.router)
}

// Stop stops the poller.
func (s *Server) Stop() {
	s.poller.Stop()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps a storage failure onto the right status:
// missing rows are a distinct outcome from internal failures.
func writeStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, notFoundMsg)
		return
	}
	log.Printf("storage error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
