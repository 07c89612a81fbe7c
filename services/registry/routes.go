package registry

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API wires the create pipelines and store behind the HTTP surface.
type API struct {
	svc          *Service
	store        Store
	defaultActor string
}

// NewAPI constructs the HTTP layer.
func NewAPI(svc *Service, store Store, defaultActor string) (*API, error) {
	if svc == nil {
		return nil, errors.New("service is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if defaultActor == "" {
		defaultActor = "System"
	}
	return &API{svc: svc, store: store, defaultActor: defaultActor}, nil
}

// Routes constructs the chi router containing all registry endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/assets", a.handleCreateAsset)
		r.Post("/locations", a.handleCreateLocation)
		r.Post("/mutations", a.handleCreateMutation)
		r.Post("/users", a.handleCreateUser)
		r.Get("/audit", a.handleListAudit)
	})

	r.Get("/healthz", a.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
