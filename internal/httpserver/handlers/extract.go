package handlers

import (
	"net/http"

	"feed_spider/internal/httpserver/deps"
)

// ExtractPage processes one listing page synchronously.
func ExtractPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := readURL(r, false)
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		res, err := d.Spider.ExtractPage(r.Context(), target)
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ExtractDetail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := readURL(r, false)
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		res, err := d.Spider.ExtractDetail(r.Context(), target)
		if err != nil {
			writeError(w, d, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
