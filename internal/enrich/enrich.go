package enrich

import (
	"context"
	"time"

	"feed_spider/internal/fetch"
	"feed_spider/internal/logger"
	"feed_spider/internal/metrics"
	"feed_spider/internal/parse"
	"feed_spider/internal/utils"
)

// PageFetcher is the outbound HTTP primitive used for detail pages.
type PageFetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

type Stats struct {
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Empty      int `json:"empty"`
	MissingURL int `json:"missing_url"`
}

// Enricher replaces truncated listing data with detail-page content, one
// page at a time.
type Enricher struct {
	fetcher PageFetcher
	opts    parse.DetailOptions
	delay   utils.Jitter
	log     logger.Logger

	// Sleep waits between detail fetches; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(fetcher PageFetcher, opts parse.DetailOptions, delay utils.Jitter, log logger.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		opts:    opts,
		delay:   delay,
		log:     log,
		Sleep:   utils.Sleep,
	}
}

// Fetch downloads and parses one detail page.
func (e *Enricher) Fetch(ctx context.Context, detailURL string) (parse.Detail, error) {
	page, err := e.fetcher.Get(ctx, detailURL)
	if err != nil {
		return parse.Detail{}, err
	}
	return parse.ParseDetail(detailURL, page.Body, e.opts)
}

// EnrichAll fetches the detail page of every entry that needs it. Failures
// are logged and leave the entry untouched; only a cancelled context stops
// the loop early.
func (e *Enricher) EnrichAll(ctx context.Context, entries []*parse.Entry) (Stats, error) {
	var stats Stats
	var pending []*parse.Entry
	for _, entry := range entries {
		if !entry.NeedsEnrichment {
			continue
		}
		if entry.DetailURL == "" {
			stats.MissingURL++
			e.log.Warn("entry needs enrichment but has no detail URL, keeping listing data",
				logger.String("url", entry.Record.CanonicalURL),
				logger.String("type", string(entry.Record.Type)))
			continue
		}
		pending = append(pending, entry)
	}
	if len(pending) > 0 {
		e.log.Info("fetching detail pages", logger.Int("count", len(pending)))
	}

	for i, entry := range pending {
		stats.Attempted++
		e.enrichOne(ctx, entry, i+1, len(pending), &stats)

		if i < len(pending)-1 {
			if err := e.Sleep(ctx, e.delay.Pick()); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

func (e *Enricher) enrichOne(ctx context.Context, entry *parse.Entry, n, total int, stats *Stats) {
	fields := []logger.Field{
		logger.Int("item", n),
		logger.Int("of", total),
		logger.String("detail_url", entry.DetailURL),
	}

	detail, err := e.Fetch(ctx, entry.DetailURL)
	if err != nil {
		stats.Failed++
		metrics.Enrichments.WithLabelValues("failed").Inc()
		e.log.Error("detail enrichment failed", append(fields, logger.Error(err))...)
		return
	}

	if len(detail.Images.URLs) > 0 {
		entry.Record.ImageURLs = detail.Images.URLs
	}
	fields = append(fields,
		logger.Int("images", len(detail.Images.URLs)),
		logger.String("image_tier", detail.Images.Tier))

	if detail.Text.Outcome != parse.Found || detail.Text.Text == "" {
		stats.Empty++
		metrics.Enrichments.WithLabelValues("empty").Inc()
		e.log.Warn("detail page yielded no text, keeping excerpt",
			append(fields, logger.String("outcome", detail.Text.Outcome.String()))...)
		return
	}

	entry.Record.FullText = detail.Text.Text
	stats.Succeeded++
	metrics.Enrichments.WithLabelValues("success").Inc()
	e.log.Info("detail enrichment succeeded",
		append(fields,
			logger.String("text_tier", detail.Text.Tier),
			logger.Int("chars", len([]rune(detail.Text.Text))))...)
}
