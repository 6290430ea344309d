package deps

import (
	"context"
	"time"

	"feed_spider/internal/crawl"
	"feed_spider/internal/logger"
	"feed_spider/internal/models"
	"feed_spider/internal/store"
)

// Spider is the set of user actions exposed over HTTP.
type Spider interface {
	StartCrawl(ctx context.Context, url string) (models.CrawlState, error)
	StopCrawl(ctx context.Context) (models.CrawlState, error)
	CrawlState(ctx context.Context) (models.CrawlState, error)
	ExtractPage(ctx context.Context, url string) (crawl.PageResult, error)
	ExtractDetail(ctx context.Context, url string) (crawl.DetailResult, error)
	StartDownload() error
	Export(ctx context.Context) (store.ExportResult, error)
	Stats(ctx context.Context) (store.Stats, error)
	Clear(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Spider    Spider
}
