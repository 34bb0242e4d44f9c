package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/popeskul/wa-dispatcher/internal/api"
	"github.com/popeskul/wa-dispatcher/internal/handler"
	"github.com/popeskul/wa-dispatcher/internal/middleware"
)

func setupRouter(h api.ServerInterface) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)

	r.Handle("/metrics", promhttp.Handler())

	// Serve OpenAPI spec
	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, "api/openapi.yaml")
	})

	api.HandlerWithOptions(h, api.ChiServerOptions{
		BaseRouter:       r,
		Middlewares:      []api.MiddlewareFunc{middleware.Account},
		ErrorHandlerFunc: handler.InvalidParamHandler,
	})

	return r
}
