package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/edu-moreno89/erado-export/internal/bridge"
	"github.com/edu-moreno89/erado-export/internal/db"
	"github.com/edu-moreno89/erado-export/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	bridge   *bridge.Bridge
	db       *db.DB
	metrics  *metrics.Metrics
	logger   *zap.Logger
	shutdown chan<- os.Signal
	origins  []string
}

// New creates a new Handlers instance. database and m may be nil.
func New(b *bridge.Bridge, database *db.DB, m *metrics.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		bridge:  b,
		db:      database,
		metrics: m,
		logger:  logger,
	}
}

// SetShutdownChannel lets POST /shutdown stop the server
func (h *Handlers) SetShutdownChannel(ch chan<- os.Signal) {
	h.shutdown = ch
}

// SetAllowedOrigins lets pages on these origins call the API from the browser
func (h *Handlers) SetAllowedOrigins(origins []string) {
	h.origins = origins
}

// Routes builds the router
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(h.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	health := healthcheck.NewHandler()
	if h.db != nil {
		health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(h.db.DB, time.Second))
	}
	r.Handle("/live", health)
	r.Handle("/ready", health)

	r.Get("/health", h.Health)
	r.Post("/bridge", h.Bridge)
	r.Delete("/sessions/{id}", h.ResetSession)

	r.Route("/exports", func(r chi.Router) {
		r.Get("/", h.ListExports)
		r.Get("/stats", h.ExportStats)
		r.Get("/{id}", h.GetExport)
	})

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}
	if h.shutdown != nil {
		r.Post("/shutdown", h.Shutdown)
	}
	return r
}
