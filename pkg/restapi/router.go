package restapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fnproject/rust-images/internal/buildrun"
	"github.com/fnproject/rust-images/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type RouterOpts struct {
	Logger zerolog.Logger

	Builder    Builder
	TagStorage ToolchainStorage
	RunRepo    buildrun.Repository

	// VerifyToolchain rejects build requests for versions
	// unknown to the upstream toolchain repositories.
	VerifyToolchain bool

	Timeout time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(middleware.Timeout(opts.Timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		newBuildHandler(opts.Logger, opts.Builder, opts.RunRepo, opts.TagStorage, opts.VerifyToolchain).handle(r)
		newToolchainHandler(opts.TagStorage).handle(r)
	})

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rctx := chi.RouteContext(r.Context())
		routePattern := strings.Join(rctx.RoutePatterns, "")

		status := fmt.Sprintf("%d %s", ww.Status(), http.StatusText(ww.Status()))
		metrics.RestAPI.NewRequest(r.Method, routePattern, status, time.Since(start))
	})
}
