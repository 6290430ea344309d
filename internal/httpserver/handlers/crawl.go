package handlers

import (
	"net/http"

	"feed_spider/internal/httpserver/deps"
	"feed_spider/internal/logger"
)

func CrawlState(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Spider.CrawlState(r.Context())
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// StartCrawl begins auto-pagination at the posted URL, or at the last
// known location when the body is empty.
func StartCrawl(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := readURL(r, true)
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		st, err := d.Spider.StartCrawl(r.Context(), target)
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		d.Logger.Info("crawl start requested via endpoint",
			logger.String("run_id", st.RunID),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, st)
	}
}

func StopCrawl(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Spider.StopCrawl(r.Context())
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, st)
	}
}
