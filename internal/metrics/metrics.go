package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_spider_pages_processed_total",
			Help: "Listing pages fully processed and stored",
		},
	)

	EntriesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_spider_entries_parsed_total",
			Help: "Listing entries classified, by record type",
		},
		[]string{"type"},
	)

	EntriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_spider_entries_skipped_total",
			Help: "Listing entries skipped, by reason",
		},
		[]string{"reason"},
	)

	RecordsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_spider_records_added_total",
			Help: "Records newly appended to the store",
		},
	)

	// outcome: success | failed | empty
	Enrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_spider_enrichments_total",
			Help: "Detail page enrichment attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// outcome: success | failed
	Downloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_spider_downloads_total",
			Help: "Image downloads, by outcome",
		},
		[]string{"outcome"},
	)

	CrawlTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_spider_crawl_transitions_total",
			Help: "Crawl state machine transitions",
		},
		[]string{"event"},
	)

	CrawlRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_spider_crawl_running",
			Help: "1 while a crawl is marked running",
		},
	)
)
