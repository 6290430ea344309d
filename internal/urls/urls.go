package urls

import (
	"net/url"
	"strconv"
	"strings"
)

// Canonical strips the query string and fragment so that the same status
// reached through different feed links collapses onto one identity.
func Canonical(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return ""
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return cut(urlStr)
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed.String()
}

func cut(urlStr string) string {
	if i := strings.IndexAny(urlStr, "?#"); i != -1 {
		return urlStr[:i]
	}
	return urlStr
}

// Resolve turns href into an absolute URL relative to base. Empty and
// unparsable input yields href unchanged.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == "" {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// PageNumber reads the listing page index from the "p" query parameter.
func PageNumber(urlStr string) int {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(parsed.Query().Get("p"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func Origin(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return ""
	}
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + parsed.Host
}
