package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pccmo/internal/config"
	"pccmo/internal/pipeline"
	"pccmo/internal/sheets"
	"pccmo/internal/storage"
)

// Replier sends a LINE reply for a webhook event.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

type Server struct {
	cfg     config.Config
	db      *storage.DB
	ingest  *pipeline.IngestService
	proc    *pipeline.ProcessingService
	sync    *sheets.SyncService
	replier Replier
}

func New(cfg config.Config, db *storage.DB, ingest *pipeline.IngestService, proc *pipeline.ProcessingService, sync *sheets.SyncService, replier Replier) *Server {
	return &Server{cfg: cfg, db: db, ingest: ingest, proc: proc, sync: sync, replier: replier}
}

// Routes builds the router for the LINE webhook and the dashboard API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/api/health", s.apiHealth)
	r.Post("/webhook", s.webhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/orders", s.listOrders)
		r.Get("/filters", s.filterOptions)
		r.Get("/summary/{date}", s.dailySummary)
		r.Get("/reports", s.reports)
		r.Post("/sync", s.syncSheets)
		r.Post("/sheets/init", s.initSheet)
		r.Post("/admin/migrate", s.migrate)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
