package routes

import (
	"github.com/go-chi/chi/v5"

	"feed_spider/internal/httpserver/deps"
	"feed_spider/internal/httpserver/handlers"
)

func init() { Register(registerCrawl) }

func registerCrawl(r chi.Router, d deps.Deps) {
	r.Route("/api/crawl", func(r chi.Router) {
		r.Get("/", handlers.CrawlState(d))
		r.Post("/start", handlers.StartCrawl(d))
		r.Post("/stop", handlers.StopCrawl(d))
	})
}
