package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"feed_spider/internal/fetch"
	"feed_spider/internal/logger"
	"feed_spider/internal/models"
)

func topic(createdAt string, images ...string) models.Record {
	return models.Record{Type: models.TypeTopic, CreatedAt: createdAt, ImageURLs: images}
}

func filenames(jobs []Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Filename)
	}
	return out
}

func TestPlanBucketing(t *testing.T) {
	records := []models.Record{
		topic("2024-01-01 10:00:00", "https://img1.doubanio.com/a.jpg"),
		{Type: models.TypeMovie, CreatedAt: "2024-01-01", ImageURLs: []string{"https://img1.doubanio.com/skip.jpg"}},
		topic("2024-01-01 11:00:00", "https://img1.doubanio.com/b.png"),
		topic("2024-01-02 09:00:00", "https://img1.doubanio.com/c.webp"),
		{Type: models.TypeNote, CreatedAt: "", ImageURLs: []string{"https://img1.doubanio.com/noext"}},
	}

	jobs := Plan(records, Options{Dir: "out", Subdir: "images", DefaultExt: "jpg"})
	want := []string{"2024-01-01_1.jpg", "2024-01-01_2.png", "2024-01-02.webp", "unknown.jpg"}
	if got := filenames(jobs); !reflect.DeepEqual(got, want) {
		t.Errorf("filenames = %v, want %v", got, want)
	}
	if jobs[0].Path != filepath.Join("out", "images", "2024-01-01_1.jpg") {
		t.Errorf("Path = %q", jobs[0].Path)
	}
	if jobs[2].Record != 3 {
		t.Errorf("Record index = %d, want 3", jobs[2].Record)
	}
}

func TestPlanSameRecordManyImages(t *testing.T) {
	jobs := Plan([]models.Record{topic("2024-05-05", "https://i/1.jpg", "https://i/2.jpg", "https://i/3.jpg")}, Options{DefaultExt: "jpg"})
	want := []string{"2024-05-05_1.jpg", "2024-05-05_2.jpg", "2024-05-05_3.jpg"}
	if got := filenames(jobs); !reflect.DeepEqual(got, want) {
		t.Errorf("filenames = %v, want %v", got, want)
	}
}

func TestDateBucketAndExtension(t *testing.T) {
	if DateBucket("2023-12-31 23:59") != "2023-12-31" || DateBucket("yesterday") != unknownDate {
		t.Error("DateBucket() mismatch")
	}
	if Extension("https://img/x.gif?w=1", "jpg") != "gif" || Extension("https://img/raw", "jpg") != "jpg" {
		t.Error("Extension() mismatch")
	}
}

type stubFiles struct {
	fail  map[string]bool
	calls int
}

func (s *stubFiles) Download(_ context.Context, url, _ string, headers map[string]string) error {
	s.calls++
	if headers["Referer"] != "https://www.douban.com/" {
		return errors.New("missing referer")
	}
	if s.fail[url] {
		return &fetch.FetchError{URL: url, Status: http.StatusForbidden, Err: errors.New("Forbidden")}
	}
	return nil
}

func TestRunCountsFailuresAndContinues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	files := &stubFiles{fail: map[string]bool{"https://img1.doubanio.com/b.jpg": true}}
	d := New(files, Options{Dir: "out", Subdir: "images", Referer: "https://www.douban.com/", DefaultExt: "jpg"}, logger.FromZap(zap.New(core)))
	sleeps := 0
	d.Sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	records := []models.Record{
		topic("2024-01-01", "https://img1.doubanio.com/a.jpg", "https://img1.doubanio.com/b.jpg"),
		topic("2024-01-02", "https://img1.doubanio.com/c.jpg"),
	}
	sum, err := d.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Total != 3 || sum.Success != 2 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if files.calls != 3 || sleeps != 2 {
		t.Errorf("calls = %d sleeps = %d", files.calls, sleeps)
	}

	failed := logs.FilterMessage("image download failed").All()
	if len(failed) != 1 || failed[0].ContextMap()["filename"] != "2024-01-01_2.jpg" {
		t.Errorf("failure log = %+v", failed)
	}

	wantPaths := []string{filepath.Join("out", "images", "2024-01-01_1.jpg")}
	if !reflect.DeepEqual(sum.Records[0].LocalImagePaths, wantPaths) {
		t.Errorf("LocalImagePaths = %v, want %v", sum.Records[0].LocalImagePaths, wantPaths)
	}
	if records[0].LocalImagePaths != nil {
		t.Error("Run() must not modify its input")
	}
}

func TestRunWithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := fetch.NewClient(fetch.Options{Timeout: 5 * time.Second})
	d := New(client, Options{Dir: dir, Subdir: "images", Referer: "https://www.douban.com/", DefaultExt: "jpg"}, logger.Nop())
	d.Sleep = func(context.Context, time.Duration) error { return nil }

	sum, err := d.Run(context.Background(), []models.Record{topic("2024-02-02", srv.URL+"/p.png")})
	if err != nil || sum.Success != 1 {
		t.Fatalf("Run() = %+v, %v", sum, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "images", "2024-02-02.png"))
	if err != nil || string(data) != "/p.png" {
		t.Errorf("downloaded file = %q, %v", data, err)
	}
}

func TestRunNothingToDo(t *testing.T) {
	d := New(&stubFiles{}, Options{}, logger.Nop())
	sum, err := d.Run(context.Background(), []models.Record{{Type: models.TypeSaying, ImageURLs: []string{"https://i/x.jpg"}}})
	if err != nil || sum.Total != 0 {
		t.Errorf("Run() = %+v, %v", sum, err)
	}
}
