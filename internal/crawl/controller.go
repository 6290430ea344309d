package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"feed_spider/internal/enrich"
	"feed_spider/internal/logger"
	"feed_spider/internal/metrics"
	"feed_spider/internal/models"
	"feed_spider/internal/notify"
	"feed_spider/internal/parse"
	"feed_spider/internal/store"
	"feed_spider/internal/urls"
	"feed_spider/internal/utils"
)

var ErrAlreadyRunning = errors.New("crawl already running")

// PageLoader renders a listing page into a queryable document.
type PageLoader interface {
	Load(ctx context.Context, url string) (*goquery.Document, error)
}

// PageResult summarises one classify-enrich-store pass.
type PageResult struct {
	URL      string            `json:"url"`
	Page     int               `json:"page"`
	Parsed   int               `json:"parsed"`
	Skipped  int               `json:"skipped"`
	Types    models.TypeCounts `json:"types"`
	Enriched enrich.Stats      `json:"enriched"`
	Added    int               `json:"added"`
	Total    int               `json:"total"`
	NextURL  string            `json:"next_url,omitempty"`
}

type DetailResult struct {
	Record models.Record   `json:"record"`
	Store  store.AddResult `json:"store"`
}

type Deps struct {
	States   *CrawlStates
	Location Navigator
	Records  *store.RecordStore
	Loader   PageLoader
	Enricher *enrich.Enricher
	Notifier notify.Notifier
	Detail   parse.DetailOptions
	Delay    utils.Jitter
	Logger   logger.Logger
}

// Controller is the auto-pagination state machine. Idle and Running are the
// persisted running flag; Stopping is Running with the flag already cleared,
// draining to Idle when the in-flight page finishes.
type Controller struct {
	states   *CrawlStates
	location Navigator
	records  *store.RecordStore
	loader   PageLoader
	enricher *enrich.Enricher
	notifier notify.Notifier
	detail   parse.DetailOptions
	delay    utils.Jitter
	log      logger.Logger

	// Sleep and Now are replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func NewController(d Deps) *Controller {
	n := d.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	return &Controller{
		states:   d.States,
		location: d.Location,
		records:  d.Records,
		loader:   d.Loader,
		enricher: d.Enricher,
		notifier: n,
		detail:   d.Detail,
		delay:    d.Delay,
		log:      d.Logger,
		Sleep:    utils.Sleep,
		Now:      time.Now,
	}
}

func (c *Controller) State(ctx context.Context) (models.CrawlState, error) {
	return c.states.Load(ctx)
}

// Start moves Idle to Running at url, or at the current location when url
// is empty. The location is kept after a stop and reset after the last page
// or a clear, so an empty url continues a stopped crawl or starts over.
func (c *Controller) Start(ctx context.Context, url string) (models.CrawlState, error) {
	st, err := c.states.Load(ctx)
	if err != nil {
		return st, err
	}
	if st.Running {
		return st, ErrAlreadyRunning
	}

	if url == "" {
		if url, err = c.location.Current(ctx); err != nil {
			return st, err
		}
	} else if err := c.location.Navigate(ctx, url); err != nil {
		return st, err
	}

	st = models.CrawlState{
		Running:   true,
		StartPage: urls.PageNumber(url),
		PagesDone: 0,
		StartTime: c.Now(),
		RunID:     uuid.NewString(),
	}
	if err := c.states.Save(ctx, st); err != nil {
		return st, err
	}

	metrics.CrawlTransitions.WithLabelValues("start").Inc()
	metrics.CrawlRunning.Set(1)
	c.log.Info("crawl started",
		logger.String("run_id", st.RunID),
		logger.String("url", url),
		logger.Int("start_page", st.StartPage))
	return st, nil
}

// Stop clears the running flag. In-flight work is not interrupted; the
// cycle notices at its next check and drains to Idle.
func (c *Controller) Stop(ctx context.Context) (models.CrawlState, error) {
	st, err := c.states.MarkStopped(ctx)
	if err != nil {
		return st, err
	}
	metrics.CrawlTransitions.WithLabelValues("stop").Inc()
	c.log.Warn("crawl stop requested, current page will finish without navigating",
		logger.String("run_id", st.RunID),
		logger.Int("pages_done", st.PagesDone))
	return st, nil
}

// Clear stops any crawl, drops the cursor and empties the record store.
func (c *Controller) Clear(ctx context.Context) error {
	if _, err := c.states.MarkStopped(ctx); err != nil {
		return err
	}
	if err := c.states.Clear(ctx); err != nil {
		return err
	}
	if err := c.location.Reset(ctx); err != nil {
		return err
	}
	if err := c.records.Clear(ctx); err != nil {
		return err
	}
	metrics.CrawlTransitions.WithLabelValues("clear").Inc()
	metrics.CrawlRunning.Set(0)
	c.log.Warn("records and crawl state cleared")
	return nil
}

// Resume runs one Running cycle when the persisted state says so. It
// returns true when it navigated to a next page and another cycle is due.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	st, err := c.states.Load(ctx)
	if err != nil {
		return false, err
	}
	if !st.Running {
		if st.RunID != "" {
			// stopped after the last cycle navigated
			return false, c.finish(ctx, st, "stopped")
		}
		return false, nil
	}

	current, err := c.location.Current(ctx)
	if err != nil {
		return false, err
	}
	page := urls.PageNumber(current)
	c.log.Info("crawling page",
		logger.String("run_id", st.RunID),
		logger.Int("page", page),
		logger.Int("pages_done", st.PagesDone))

	doc, err := c.loader.Load(ctx, current)
	if err != nil {
		return false, fmt.Errorf("load page %d: %w", page, err)
	}
	res, err := c.extract(ctx, current, doc)
	if err != nil {
		c.log.Error("page cycle aborted, page will be retried on resume",
			logger.Int("page", page), logger.Error(err))
		return false, err
	}

	st, err = c.states.IncrementPagesDone(ctx)
	if err != nil {
		return false, err
	}
	metrics.PagesProcessed.Inc()
	metrics.CrawlTransitions.WithLabelValues("page").Inc()
	c.publishPage(ctx, st, res)

	if !st.Running {
		c.log.Warn("crawl stopped")
		return false, c.finish(ctx, st, "stopped")
	}
	if res.NextURL == "" {
		c.log.Info("reached the last page")
		if err := c.location.Reset(ctx); err != nil {
			return false, err
		}
		return false, c.finish(ctx, st, "last page")
	}

	delay := c.delay.Pick()
	c.log.Info("next page scheduled",
		logger.String("url", res.NextURL),
		logger.Duration("delay", delay))
	if err := c.Sleep(ctx, delay); err != nil {
		return false, err
	}

	running, err := c.states.Running(ctx)
	if err != nil {
		return false, err
	}
	if !running {
		c.log.Warn("crawl stopped, not navigating")
		st, err = c.states.Load(ctx)
		if err != nil {
			return false, err
		}
		return false, c.finish(ctx, st, "stopped")
	}

	if err := c.location.Navigate(ctx, res.NextURL); err != nil {
		return false, err
	}
	return true, nil
}

// Run repeats Resume until the crawl goes Idle or a cycle fails.
func (c *Controller) Run(ctx context.Context) error {
	for {
		more, err := c.Resume(ctx)
		if err != nil || !more {
			return err
		}
	}
}

// ExtractPage runs one classify-enrich-store pass without touching the
// crawl state.
func (c *Controller) ExtractPage(ctx context.Context, url string) (PageResult, error) {
	doc, err := c.loader.Load(ctx, url)
	if err != nil {
		return PageResult{}, err
	}
	return c.extract(ctx, url, doc)
}

// ExtractDetail extracts the detail page at url as a single record and
// stores it.
func (c *Controller) ExtractDetail(ctx context.Context, url string) (DetailResult, error) {
	doc, err := c.loader.Load(ctx, url)
	if err != nil {
		return DetailResult{}, err
	}
	rec := parse.ExtractLive(doc, url, c.detail)
	added, err := c.records.AddItems(ctx, []models.Record{rec})
	if err != nil {
		return DetailResult{}, err
	}
	metrics.RecordsAdded.Add(float64(added.Added))
	c.log.Info("detail page extracted",
		logger.String("url", rec.CanonicalURL),
		logger.String("type", string(rec.Type)),
		logger.Int("images", len(rec.ImageURLs)),
		logger.Int("total", added.Total))
	return DetailResult{Record: rec, Store: added}, nil
}

func (c *Controller) extract(ctx context.Context, url string, doc *goquery.Document) (PageResult, error) {
	listing := parse.ParseListing(doc)
	res := PageResult{
		URL:     url,
		Page:    urls.PageNumber(url),
		Parsed:  len(listing.Entries),
		Skipped: len(listing.Skipped),
		Types:   listing.Counts(),
		NextURL: parse.NextPageURL(doc),
	}

	for _, skip := range listing.Skipped {
		metrics.EntriesSkipped.WithLabelValues(string(skip.Reason)).Inc()
		c.log.Info("entry skipped",
			logger.Int("index", skip.Index),
			logger.String("reason", string(skip.Reason)))
	}
	if len(listing.Entries) == 0 {
		c.log.Warn("no entries found on page", logger.String("url", url))
		return res, nil
	}
	for t, n := range res.Types {
		metrics.EntriesParsed.WithLabelValues(string(t)).Add(float64(n))
	}
	c.log.Info("page classified",
		logger.Int("entries", res.Parsed),
		logger.Any("types", res.Types))

	stats, err := c.enricher.EnrichAll(ctx, listing.Entries)
	res.Enriched = stats
	if err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	batch := make([]models.Record, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		batch = append(batch, entry.Stored())
	}
	added, err := c.records.AddItems(ctx, batch)
	if err != nil {
		return res, err
	}
	res.Added, res.Total = added.Added, added.Total
	metrics.RecordsAdded.Add(float64(added.Added))
	c.log.Info("page stored",
		logger.Int("added", added.Added),
		logger.Int("total", added.Total))
	return res, nil
}

func (c *Controller) finish(ctx context.Context, st models.CrawlState, reason string) error {
	total := 0
	if stats, err := c.records.Stats(ctx); err == nil {
		total = stats.Total
	} else {
		c.log.Warn("could not count records for summary", logger.Error(err))
	}
	elapsed := time.Duration(0)
	if !st.StartTime.IsZero() {
		elapsed = c.Now().Sub(st.StartTime).Truncate(time.Second)
	}

	c.log.Info("crawl finished",
		logger.String("run_id", st.RunID),
		logger.String("reason", reason),
		logger.Int("pages_done", st.PagesDone),
		logger.Int("total_records", total),
		logger.Duration("elapsed", elapsed))

	metrics.CrawlTransitions.WithLabelValues("finish").Inc()
	metrics.CrawlRunning.Set(0)
	if err := c.notifier.CrawlFinished(ctx, notify.CrawlFinished{
		RunID:     st.RunID,
		Reason:    reason,
		PagesDone: st.PagesDone,
		Total:     total,
		Elapsed:   elapsed,
		At:        c.Now(),
	}); err != nil {
		c.log.Warn("publish crawl finished failed", logger.Error(err))
	}
	return c.states.Clear(ctx)
}

func (c *Controller) publishPage(ctx context.Context, st models.CrawlState, res PageResult) {
	err := c.notifier.PageCompleted(ctx, notify.PageCompleted{
		RunID:     st.RunID,
		URL:       res.URL,
		Page:      res.Page,
		PagesDone: st.PagesDone,
		Added:     res.Added,
		Total:     res.Total,
		At:        c.Now(),
	})
	if err != nil {
		c.log.Warn("publish page completed failed", logger.Error(err))
	}
}
