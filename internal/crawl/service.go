package crawl

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"feed_spider/internal/download"
	"feed_spider/internal/logger"
	"feed_spider/internal/models"
	"feed_spider/internal/store"
)

// ErrBusy is returned when a user action is requested while another one
// (crawl, manual extraction or download) is still running.
var ErrBusy = errors.New("another action is in progress")

// Service is the single logical worker behind the control surface. Crawl,
// manual extraction and download share one busy gate.
type Service struct {
	ctrl       *Controller
	records    *store.RecordStore
	downloader *download.Downloader
	sink       store.Sink
	log        logger.Logger

	gate *semaphore.Weighted
	base context.Context
	wg   sync.WaitGroup

	Now func() time.Time
}

// NewService binds background work to base; cancelling it interrupts the
// running crawl at its next suspension point and leaves the cursor for the
// next process to resume.
func NewService(base context.Context, ctrl *Controller, records *store.RecordStore, downloader *download.Downloader, sink store.Sink, log logger.Logger) *Service {
	return &Service{
		ctrl:       ctrl,
		records:    records,
		downloader: downloader,
		sink:       sink,
		log:        log,
		gate:       semaphore.NewWeighted(1),
		base:       base,
		Now:        time.Now,
	}
}

func (s *Service) acquire() error {
	if !s.gate.TryAcquire(1) {
		return ErrBusy
	}
	return nil
}

func (s *Service) release() { s.gate.Release(1) }

// background runs fn on the service context and frees the gate when done.
// The caller must hold the gate.
func (s *Service) background(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		if err := fn(s.base); err != nil {
			if errors.Is(err, context.Canceled) {
				s.log.Warn(name+" interrupted", logger.Error(err))
				return
			}
			s.log.Error(name+" failed", logger.Error(err))
		}
	}()
}

func (s *Service) StartCrawl(ctx context.Context, url string) (models.CrawlState, error) {
	if err := s.acquire(); err != nil {
		return models.CrawlState{}, err
	}
	st, err := s.ctrl.Start(ctx, url)
	if err != nil {
		s.release()
		return st, err
	}
	s.background("crawl", s.ctrl.Run)
	return st, nil
}

// ResumeCrawl picks up a persisted running crawl. It reports false when
// there is nothing to resume.
func (s *Service) ResumeCrawl(ctx context.Context) (bool, error) {
	st, err := s.ctrl.State(ctx)
	if err != nil || !st.Running {
		return false, err
	}
	if err := s.acquire(); err != nil {
		return false, err
	}
	s.log.Info("resuming crawl",
		logger.String("run_id", st.RunID),
		logger.Int("pages_done", st.PagesDone))
	s.background("crawl", s.ctrl.Run)
	return true, nil
}

func (s *Service) StopCrawl(ctx context.Context) (models.CrawlState, error) {
	return s.ctrl.Stop(ctx)
}

func (s *Service) CrawlState(ctx context.Context) (models.CrawlState, error) {
	return s.ctrl.State(ctx)
}

func (s *Service) ExtractPage(ctx context.Context, url string) (PageResult, error) {
	if err := s.acquire(); err != nil {
		return PageResult{}, err
	}
	defer s.release()
	return s.ctrl.ExtractPage(ctx, url)
}

func (s *Service) ExtractDetail(ctx context.Context, url string) (DetailResult, error) {
	if err := s.acquire(); err != nil {
		return DetailResult{}, err
	}
	defer s.release()
	return s.ctrl.ExtractDetail(ctx, url)
}

// Download fetches the images of every stored topic and note.
func (s *Service) Download(ctx context.Context) (download.Summary, error) {
	if err := s.acquire(); err != nil {
		return download.Summary{}, err
	}
	defer s.release()
	return s.download(ctx)
}

// StartDownload runs Download in the background.
func (s *Service) StartDownload() error {
	if err := s.acquire(); err != nil {
		return err
	}
	s.background("download", func(ctx context.Context) error {
		_, err := s.download(ctx)
		return err
	})
	return nil
}

func (s *Service) download(ctx context.Context) (download.Summary, error) {
	records, err := s.records.GetAll(ctx)
	if err != nil {
		return download.Summary{}, err
	}
	return s.downloader.Run(ctx, records)
}

func (s *Service) Export(ctx context.Context) (store.ExportResult, error) {
	res, err := s.records.Export(ctx, s.sink, s.Now())
	if err != nil {
		s.log.Error("export failed", logger.Error(err))
		return res, err
	}
	s.log.Info("records exported", logger.String("name", res.Name), logger.Int("count", res.Count))
	return res, nil
}

func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.records.Stats(ctx)
}

// Clear is allowed while a crawl runs: the crawl sees running=false at its
// next check and goes Idle.
func (s *Service) Clear(ctx context.Context) error {
	return s.ctrl.Clear(ctx)
}

// Wait blocks until background work has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}
