// Package api wires the client-facing and worker-facing HTTP surfaces onto
// a chi router. The shared middleware stack (request ID, metrics, CORS,
// per-IP rate limit, body-size limit) applies to every route; the route
// groups add only the auth guards.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/middleware"
)

// Dependencies bundles everything the handlers need; AuthChecker,
// Recognizer, and the queue/object-store adapters are all interfaces so
// they can be faked in tests.
type Dependencies struct {
	Recognizer    Recognizer
	AuthChecker   middleware.AuthChecker
	DBHealth      ConnectionChecker
	Queue         WorkQueue
	Results       ResultDeleter
	Objects       ObjectFetcher
	Credentials   CredentialSource
	URLFetcher    *http.Client
	PollAttempts  int
	WorkerLeaseAttempts int
	WorkerLeaseInterval time.Duration
}

// NewRouter builds the complete chi.Router for the service.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))
	r.Use(middleware.BodyLimit)

	client := &clientHandlers{deps: deps}
	worker := &workerHandlers{deps: deps}

	r.Get("/scan/v1/status", client.status)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/scan/v1/worker/get_image/{name}", worker.getImage)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.AuthChecker))
		r.Post("/scan/v1/detection/detect", client.detect)
		r.Post("/scan/v1/detection/detectImage", client.detectImage)
		r.Post("/scan/v1/detection/detectImageFromUrl", client.detectImageFromUrl)
	})

	r.Post("/scan/v1/detection/getHash", client.getHash)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.AuthChecker))
		r.Use(middleware.RequireInternal(deps.AuthChecker))
		r.Get("/scan/v1/worker/get_work", worker.getWork)
		r.Post("/scan/v1/worker/post_result", worker.postResult)
	})

	return r
}
