package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// ErrBlocked marks a 2xx response whose body is a captcha or block page.
var ErrBlocked = errors.New("block page detected")

// FetchError describes a failed page or file fetch. Status is 0 for
// transport failures and the HTTP status code otherwise.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	UserAgent    string
	Cookie       string
	Referer      string
	BlockMarkers []string
}

type Page struct {
	URL    string
	Status int
	Body   string
}

// Client is the outbound HTTP primitive used for detail pages and image
// downloads.
type Client struct {
	http *http.Client
	opts Options
}

func NewClient(opts Options) *Client {
	jar, _ := cookiejar.New(nil)
	maxHops := opts.MaxRedirects
	if maxHops <= 0 {
		maxHops = 15
	}
	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxHops {
					return fmt.Errorf("stopped after %d redirects", maxHops)
				}
				return nil
			},
		},
		opts: opts,
	}
}

func (c *Client) newRequest(ctx context.Context, urlStr string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

// Get fetches an HTML page with the ambient session cookie and decodes the
// body to UTF-8.
func (c *Client) Get(ctx context.Context, urlStr string) (*Page, error) {
	req, err := c.newRequest(ctx, urlStr)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Err: err}
	}
	if c.opts.Cookie != "" {
		req.Header.Set("Cookie", c.opts.Cookie)
	}
	if c.opts.Referer != "" {
		req.Header.Set("Referer", c.opts.Referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: urlStr, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Status: resp.StatusCode, Err: err}
	}

	text := string(body)
	if IsBlocked(text, c.opts.BlockMarkers) {
		return nil, &FetchError{URL: urlStr, Status: resp.StatusCode, Err: ErrBlocked}
	}

	return &Page{URL: resp.Request.URL.String(), Status: resp.StatusCode, Body: text}, nil
}

// Download streams urlStr into dest verbatim. The file only appears under
// its final name once the body has been fully written.
func (c *Client) Download(ctx context.Context, urlStr, dest string, headers map[string]string) error {
	req, err := c.newRequest(ctx, urlStr)
	if err != nil {
		return &FetchError{URL: urlStr, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchError{URL: urlStr, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return &FetchError{URL: urlStr, Status: resp.StatusCode, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

// IsBlocked reports whether body contains any of the block-page markers.
func IsBlocked(body string, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	lower := strings.ToLower(body)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
