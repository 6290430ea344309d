package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
)

// ListingLoader navigates to a listing page and hands back its document.
// Each Load uses a fresh collector so no visited-URL state leaks between
// pages of a resumed crawl.
type ListingLoader struct {
	opts Options
}

func NewListingLoader(opts Options) *ListingLoader {
	return &ListingLoader{opts: opts}
}

func (l *ListingLoader) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	c.DetectCharset = true
	if l.opts.Timeout > 0 {
		c.SetRequestTimeout(l.opts.Timeout)
	}
	maxHops := l.opts.MaxRedirects
	if maxHops <= 0 {
		maxHops = 15
	}
	c.RedirectHandler = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return fmt.Errorf("stopped after %d redirects", maxHops)
		}
		return nil
	}

	if l.opts.UserAgent != "" {
		c.UserAgent = l.opts.UserAgent
	} else {
		extensions.RandomUserAgent(c)
	}
	extensions.Referer(c)

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
			return
		default:
		}
		if l.opts.Cookie != "" {
			r.Headers.Set("Cookie", l.opts.Cookie)
		}
		if l.opts.Referer != "" && r.Headers.Get("Referer") == "" {
			r.Headers.Set("Referer", l.opts.Referer)
		}
	})
	return c
}

// Load fetches urlStr and parses it into a goquery document whose Url is the
// final, post-redirect address.
func (l *ListingLoader) Load(ctx context.Context, urlStr string) (*goquery.Document, error) {
	c := l.collector(ctx)

	var (
		doc     *goquery.Document
		loadErr error
	)
	c.OnResponse(func(r *colly.Response) {
		if IsBlocked(string(r.Body), l.opts.BlockMarkers) {
			loadErr = &FetchError{URL: urlStr, Status: r.StatusCode, Err: ErrBlocked}
			return
		}
		d, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			loadErr = &FetchError{URL: urlStr, Status: r.StatusCode, Err: err}
			return
		}
		d.Url = r.Request.URL
		doc = d
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		loadErr = &FetchError{URL: urlStr, Status: status, Err: err}
	})

	if err := c.Visit(urlStr); err != nil && loadErr == nil {
		loadErr = &FetchError{URL: urlStr, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}
	if doc == nil {
		return nil, &FetchError{URL: urlStr, Err: errors.New("no response")}
	}
	return doc, nil
}
