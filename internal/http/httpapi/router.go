package httpapi

import (
	stdhttp "net/http"

	"retouch/internal/http/handlers"
	"retouch/internal/infra"
	mw "retouch/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	Logger      infra.Logger
	CORSOrigins []string
	AdminToken  string
	// Country resolves a client IP for locale detection. Nil skips GeoIP.
	Country    mw.CountryLookup
	IPLimiter  *mw.IPLimiterStore
	UploadDir  string
	Production bool
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID, middleware.RealIP, middleware.Recoverer, mw.Logger(opts.Logger, "/healthz"))
	r.Use(mw.CORS(opts.CORSOrigins))

	r.Get("/healthz", app.Health)
	if opts.UploadDir != "" {
		r.Handle("/uploads/*", stdhttp.StripPrefix("/uploads/", stdhttp.FileServer(stdhttp.Dir(opts.UploadDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.I18N(mw.LocaleES, opts.Country))
		if opts.IPLimiter != nil {
			r.Use(mw.RateLimit(opts.IPLimiter))
		}

		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Post("/upload", app.Upload)
		r.Post("/analyze", app.Analyze)
		r.Post("/iterate", app.Iterate)
		r.Post("/edit", app.Edit)
		r.Post("/moderate", app.Moderate)
		r.Post("/image-metadata", app.ImageMetadata)
		r.Post("/resize-image", app.ResizeImage)
		r.Post("/cleanup", app.Cleanup)

		r.Get("/credits", app.CreditsBalance)
		r.Post("/credits/consume", app.CreditsConsume)

		r.Get("/metrics", app.MetricsSnapshot)
		r.Post("/metrics", app.TrackEvent)
		r.Get("/cache/stats", app.CacheStats)
		if !opts.Production {
			r.Get("/debug/env", app.DebugEnv)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.AdminToken(opts.AdminToken))
			r.Get("/registry", app.RegistryList)
			r.Delete("/registry", app.RegistryDelete)
		})
	})

	return r
}
