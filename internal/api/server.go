package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/poledger/internal/config"
	"github.com/dgallion1/poledger/internal/ocr"
	"github.com/dgallion1/poledger/internal/pipeline"
	"github.com/dgallion1/poledger/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for poledger.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        *store.Store
	stats        *ocr.LatencyStats
	engine       string
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil when
// recognition is not instrumented.
func NewServer(orch *pipeline.Orchestrator, st *store.Store, engine ocr.Engine, stats *ocr.LatencyStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        st,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	if engine != nil {
		s.engine = engine.Name()
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Get("/api/jobs/{jobID}/status", s.handleJobStatus)
		r.Get("/api/stats/ocr", s.handleOCRStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Get("/api/documents/{docID}/records", s.handleDocumentRecords)
		r.Get("/api/documents/{docID}/export", s.handleExportDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		r.Get("/api/export", s.handleExportAll)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
