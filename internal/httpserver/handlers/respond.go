package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"feed_spider/internal/crawl"
	"feed_spider/internal/fetch"
	"feed_spider/internal/httpserver/deps"
	"feed_spider/internal/logger"
)

var errBadURL = errors.New("url must be an absolute http(s) URL")

type errorResponse struct {
	Error string `json:"error"`
}

type urlRequest struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var fe *fetch.FetchError
	switch {
	case errors.Is(err, errBadURL):
		return http.StatusBadRequest
	case errors.Is(err, crawl.ErrBusy), errors.Is(err, crawl.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, fetch.ErrBlocked), errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, d deps.Deps, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// readURL decodes {"url": ...}. An empty body yields "" when optional.
func readURL(r *http.Request, optional bool) (string, error) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", errBadURL, err)
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		if optional {
			return "", nil
		}
		return "", errBadURL
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errBadURL
	}
	return req.URL, nil
}
