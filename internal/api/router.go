package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/cartsync"
	"github.com/kitco/pricer/internal/catalog"
	"github.com/kitco/pricer/internal/discount"
	"github.com/kitco/pricer/internal/repository"
	"github.com/kitco/pricer/internal/simulation"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Prices      *simulation.Service
	Local       simulation.Source
	Schedule    discount.Schedule
	Catalog     *catalog.Service
	Syncer      *cartsync.Syncer
	Ticks       *repository.TickRepo
	Overrides   *repository.OverrideRepo
	CORSOrigins []string
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(d Deps) http.Handler {
	h := &Handlers{
		prices:    d.Prices,
		local:     d.Local,
		schedule:  d.Schedule,
		catalog:   d.Catalog,
		syncer:    d.Syncer,
		ticks:     d.Ticks,
		overrides: d.Overrides,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Get("/healthz", h.Health)

	// Price simulation endpoint consumed by storefronts and remote sources.
	r.Get("/price", h.SimulatePrice)

	r.Route("/api/v1", func(r chi.Router) {
		// Products.
		r.Post("/products", h.IngestProduct)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}/price", h.GetPrice)
		r.Get("/products/{id}/bulk-discounts", h.GetBulkDiscounts)
		r.Get("/products/{id}/quote", h.GetQuote)
		r.Get("/products/{id}/ticks", h.ListTicks)

		// Carts.
		r.Post("/carts/{orderFormId}/watch", h.WatchCart)
		r.Delete("/carts/{orderFormId}/watch", h.UnwatchCart)
		r.Post("/carts/{orderFormId}/sync", h.SyncCart)
		r.Post("/carts/{orderFormId}/items", h.AddToCart)
		r.Get("/carts/{orderFormId}/overrides", h.ListOverrides)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().Str("component", "api").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
