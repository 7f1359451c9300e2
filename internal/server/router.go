// Package server exposes the HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/export"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
	"github.com/joseph-ayodele/cryotrace/internal/services/ask"
	"github.com/joseph-ayodele/cryotrace/internal/services/events"
)

type Asker interface {
	Ask(ctx context.Context, req ask.Request) (*ask.Answer, error)
	Shipments(ctx context.Context, req ask.Request) (*ask.Retrieval, error)
}

type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

type Manifests interface {
	List(ctx context.Context, filter repository.ManifestListFilter) ([]*entity.Manifest, error)
	Get(ctx context.Context, manifestID string) (*entity.Manifest, error)
}

type Directory interface {
	ListShippers(ctx context.Context) ([]*entity.Shipper, error)
	ListUsers(ctx context.Context) ([]*entity.User, error)
}

type EventRecorder interface {
	Record(ctx context.Context, req events.Request) (*entity.WeightEvent, error)
}

type Exporter interface {
	ExportShipmentsXLSX(ctx context.Context, filter export.Filter) ([]byte, error)
}

// Deps are the services behind the API. Health may be nil.
type Deps struct {
	Asker     Asker
	Reindexer Reindexer
	Manifests Manifests
	Directory Directory
	Events    EventRecorder
	Exporter  Exporter
	Health    func(ctx context.Context) error
	// MaxUploadBytes bounds multipart event bodies.
	MaxUploadBytes int64
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 16 << 20
	}
	return &Handler{deps: deps, logger: logger}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext(h.logger))
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", h.Ask)
		r.Post("/reindex", h.Reindex)
		r.Get("/shipments", h.Shipments)
		r.Get("/export.xlsx", h.ExportXLSX)

		r.Get("/records", h.Records)
		r.Get("/manifests", h.ListManifests)
		r.Get("/shippers", h.ListShippers)
		r.Get("/containers", h.ListShippers)
		r.Get("/users", h.ListUsers)

		r.Post("/pickup-events", h.PickupEvent)
		r.Post("/dropoff-events", h.DropoffEvent)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health(ctx); err != nil {
			h.logger.Warn("http.health.failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
