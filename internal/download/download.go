package download

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"feed_spider/internal/logger"
	"feed_spider/internal/metrics"
	"feed_spider/internal/models"
	"feed_spider/internal/urls"
	"feed_spider/internal/utils"
)

const unknownDate = "unknown"

var (
	reDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	reExt  = regexp.MustCompile(`\.(\w+)$`)
)

// FileFetcher is the host's file-download primitive.
type FileFetcher interface {
	Download(ctx context.Context, url, dest string, headers map[string]string) error
}

type Options struct {
	Dir        string
	Subdir     string
	Referer    string
	DefaultExt string
	Delay      utils.Jitter
}

// Job is one planned image download.
type Job struct {
	URL      string `json:"url"`
	Date     string `json:"date"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Record   int    `json:"-"`
}

type Summary struct {
	Total   int             `json:"total"`
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Jobs    []Job           `json:"-"`
	Records []models.Record `json:"-"`
}

// DateBucket returns the leading YYYY-MM-DD of createdAt, or "unknown".
func DateBucket(createdAt string) string {
	if m := reDate.FindString(createdAt); m != "" {
		return m
	}
	return unknownDate
}

// Extension returns the URL's trailing dot-suffix without the dot, or def.
func Extension(url, def string) string {
	if m := reExt.FindStringSubmatch(urls.Canonical(url)); m != nil {
		return m[1]
	}
	return def
}

// Plan assigns a file name to every image of every topic and note record.
// A date bucket holding exactly one image gets <date>.<ext>; larger buckets
// number their images <date>_<n>.<ext> in record order.
func Plan(records []models.Record, opts Options) []Job {
	var jobs []Job
	totals := make(map[string]int)
	for i, r := range records {
		if !r.Type.HasDetailPage() {
			continue
		}
		date := DateBucket(r.CreatedAt)
		for _, u := range r.ImageURLs {
			jobs = append(jobs, Job{URL: u, Date: date, Record: i})
			totals[date]++
		}
	}

	used := make(map[string]int)
	for i := range jobs {
		j := &jobs[i]
		ext := Extension(j.URL, opts.DefaultExt)
		used[j.Date]++
		if totals[j.Date] == 1 {
			j.Filename = fmt.Sprintf("%s.%s", j.Date, ext)
		} else {
			j.Filename = fmt.Sprintf("%s_%d.%s", j.Date, used[j.Date], ext)
		}
		j.Path = filepath.Join(opts.Dir, opts.Subdir, j.Filename)
	}
	return jobs
}

// Downloader fetches planned images strictly one at a time.
type Downloader struct {
	files FileFetcher
	opts  Options
	log   logger.Logger

	// Sleep waits between downloads; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(files FileFetcher, opts Options, log logger.Logger) *Downloader {
	return &Downloader{files: files, opts: opts, log: log, Sleep: utils.Sleep}
}

// Run downloads every planned image. A failed item is logged and counted
// and the batch continues. The returned records carry local_image_paths for
// the files that were written; the input slice is not modified.
func (d *Downloader) Run(ctx context.Context, records []models.Record) (Summary, error) {
	jobs := Plan(records, d.opts)
	summary := Summary{Total: len(jobs), Jobs: jobs}

	out := make([]models.Record, len(records))
	for i, r := range records {
		r.LocalImagePaths = []string{}
		out[i] = r
	}
	summary.Records = out

	if len(jobs) == 0 {
		d.log.Info("no images to download")
		return summary, nil
	}
	d.log.Info("starting image download", logger.Int("images", len(jobs)))

	headers := map[string]string{}
	if d.opts.Referer != "" {
		headers["Referer"] = d.opts.Referer
	}

	for i, job := range jobs {
		fields := []logger.Field{
			logger.Int("item", i+1),
			logger.Int("of", len(jobs)),
			logger.String("filename", job.Filename),
		}
		if err := d.files.Download(ctx, job.URL, job.Path, headers); err != nil {
			summary.Failed++
			metrics.Downloads.WithLabelValues("failed").Inc()
			d.log.Error("image download failed", append(fields, logger.String("url", job.URL), logger.Error(err))...)
		} else {
			summary.Success++
			metrics.Downloads.WithLabelValues("success").Inc()
			out[job.Record].LocalImagePaths = append(out[job.Record].LocalImagePaths, job.Path)
			d.log.Info("image downloaded", fields...)
		}

		if i < len(jobs)-1 {
			if err := d.Sleep(ctx, d.opts.Delay.Pick()); err != nil {
				return summary, err
			}
		}
	}

	d.log.Info("download finished",
		logger.Int("success", summary.Success),
		logger.Int("failed", summary.Failed))
	return summary, nil
}
