package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feed_spider/internal/config"
	"feed_spider/internal/crawl"
	"feed_spider/internal/db"
	"feed_spider/internal/download"
	"feed_spider/internal/enrich"
	"feed_spider/internal/fetch"
	"feed_spider/internal/httpserver"
	"feed_spider/internal/httpserver/deps"
	"feed_spider/internal/logger"
	"feed_spider/internal/notify"
	"feed_spider/internal/parse"
	"feed_spider/internal/store"
	"feed_spider/internal/utils"
)

type SpiderApp struct {
	config   *config.SpiderConfig
	log      logger.Logger
	kv       db.KV
	notifier notify.Notifier
	service  *crawl.Service
	server   *httpserver.Server
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewSpiderApp(cfg *config.SpiderConfig, log logger.Logger) (*SpiderApp, error) {
	ctx, cancel := context.WithCancel(context.Background())

	kv, err := db.Open(ctx, cfg.Storage, log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NATS.URL != "" {
		n, err := notify.NewNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.Warn("NATS unavailable, crawl events will not be published", logger.Error(err))
		} else {
			notifier = n
		}
	}

	fetchOpts := fetch.Options{
		Timeout:      cfg.Timeout(),
		MaxRedirects: cfg.Logic.MaxRedirects,
		UserAgent:    cfg.Site.UserAgent,
		Cookie:       cfg.Site.Cookie,
		Referer:      cfg.Download.Referer,
		BlockMarkers: cfg.Site.BlockMarkers,
	}
	client := fetch.NewClient(fetchOpts)
	detailOpts := parse.DetailOptions{Readability: cfg.Logic.ReadabilityFallback}

	records := store.New(kv, log.With(logger.String("component", "store")))
	enricher := enrich.New(client, detailOpts,
		utils.Jitter{Min: cfg.Logic.EnrichDelayMin, Max: cfg.Logic.EnrichDelayMax},
		log.With(logger.String("component", "enrich")))

	ctrl := crawl.NewController(crawl.Deps{
		States:   crawl.NewCrawlStates(kv),
		Location: crawl.NewLocation(kv, cfg.Site.StartURL),
		Records:  records,
		Loader:   fetch.NewListingLoader(fetchOpts),
		Enricher: enricher,
		Notifier: notifier,
		Detail:   detailOpts,
		Delay:    utils.Jitter{Min: cfg.Logic.PageDelayMin, Max: cfg.Logic.PageDelayMax},
		Logger:   log.With(logger.String("component", "crawl")),
	})

	downloader := download.New(client, download.Options{
		Dir:        cfg.Download.Dir,
		Subdir:     cfg.Download.Subdir,
		Referer:    cfg.Download.Referer,
		DefaultExt: cfg.Download.DefaultExt,
		Delay:      utils.Jitter{Min: cfg.Logic.DownloadDelayMin, Max: cfg.Logic.DownloadDelayMax},
	}, log.With(logger.String("component", "download")))

	service := crawl.NewService(ctx, ctrl, records, downloader, store.FileSink{Dir: cfg.Export.Dir}, log)

	spiderApp := &SpiderApp{
		config:   cfg,
		log:      log,
		kv:       kv,
		notifier: notifier,
		service:  service,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.Server.Enabled {
		spiderApp.server = httpserver.New(cfg.Server, log, deps.Deps{
			Logger:    log,
			StartTime: time.Now(),
			Spider:    service,
		})
	}
	return spiderApp, nil
}

// Run resumes a crawl left running by a previous process and serves the
// control API until SIGINT/SIGTERM. Without the API it crawls from the
// configured start URL and returns once the crawl goes idle.
func (s *SpiderApp) Run() error {
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.log.Info("starting feed spider",
		logger.String("storage", s.config.Storage.Backend),
		logger.String("start_url", s.config.Site.StartURL),
		logger.Bool("server", s.server != nil))

	resumed, err := s.service.ResumeCrawl(ctx)
	if err != nil {
		s.shutdown()
		return fmt.Errorf("resume crawl: %w", err)
	}

	errCh := make(chan error, 1)
	idle := make(chan struct{})
	if s.server != nil {
		go func() {
			if err := s.server.Start(); err != nil {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	} else {
		if !resumed {
			if _, err := s.service.StartCrawl(ctx, s.config.Site.StartURL); err != nil {
				s.shutdown()
				return fmt.Errorf("start crawl: %w", err)
			}
		}
		go func() {
			s.service.Wait()
			close(idle)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Warn("interrupt received, shutting down")
	case runErr = <-errCh:
	case <-idle:
		s.log.Info("crawl idle, exiting")
	}

	s.shutdown()
	return runErr
}

func (s *SpiderApp) shutdown() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		if err := s.server.Stop(ctx); err != nil {
			s.log.Error("HTTP server shutdown failed", logger.Error(err))
		}
		cancel()
	}

	s.cancel()
	s.service.Wait()
	s.notifier.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.kv.Close(ctx); err != nil {
		s.log.Error("closing storage failed", logger.Error(err))
	}
}
