package routes

import (
	"github.com/go-chi/chi/v5"

	"feed_spider/internal/httpserver/deps"
	"feed_spider/internal/httpserver/handlers"
)

func init() { Register(registerRecords) }

func registerRecords(r chi.Router, d deps.Deps) {
	r.Post("/api/extract", handlers.ExtractPage(d))
	r.Post("/api/extract/detail", handlers.ExtractDetail(d))
	r.Get("/api/stats", handlers.Stats(d))
	r.Post("/api/export", handlers.Export(d))
	r.Post("/api/download", handlers.Download(d))
	r.Post("/api/clear", handlers.Clear(d))
}
