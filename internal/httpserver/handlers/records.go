package handlers

import (
	"net/http"

	"feed_spider/internal/httpserver/deps"
	"feed_spider/internal/logger"
)

type statusResponse struct {
	Status string `json:"status"`
}

func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Spider.Stats(r.Context())
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func Export(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Spider.Export(r.Context())
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Download starts the image batch in the background.
func Download(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Spider.StartDownload(); err != nil {
			writeError(w, d, r, err)
			return
		}
		d.Logger.Info("image download triggered via endpoint", logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, statusResponse{Status: "started"})
	}
}

func Clear(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Spider.Clear(r.Context()); err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
	}
}
