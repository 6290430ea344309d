package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"feed_spider/internal/db"
	"feed_spider/internal/logger"
	"feed_spider/internal/models"
)

func rec(url string, typ models.RecordType) models.Record {
	return models.Record{
		CanonicalURL:    url,
		Type:            typ,
		ImageURLs:       []string{},
		LocalImagePaths: []string{},
	}
}

func TestAddItemsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New(db.NewMemoryKV(), logger.Nop())

	batch := []models.Record{
		rec("https://x/1", models.TypeTopic),
		rec("https://x/2", models.TypeSaying),
		rec("https://x/3", models.TypeMovie),
	}

	first, err := s.AddItems(ctx, batch)
	if err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	if first != (AddResult{Total: 3, Added: 3}) {
		t.Errorf("first = %+v", first)
	}

	second, err := s.AddItems(ctx, batch)
	if err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	if second != (AddResult{Total: 3, Added: 0}) {
		t.Errorf("second = %+v, want total 3 added 0", second)
	}
}

func TestAddItemsDedupesWithinBatch(t *testing.T) {
	ctx := context.Background()
	s := New(db.NewMemoryKV(), logger.Nop())

	a := rec("https://x/1", models.TypeTopic)
	a.FullText = "first copy"
	b := rec("https://x/1", models.TypeTopic)
	b.FullText = "second copy"

	res, err := s.AddItems(ctx, []models.Record{a, rec("https://x/2", models.TypeNote), b})
	if err != nil {
		t.Fatal(err)
	}
	if res != (AddResult{Total: 2, Added: 2}) {
		t.Errorf("res = %+v", res)
	}

	all, _ := s.GetAll(ctx)
	if all[0].FullText != "first copy" {
		t.Errorf("first occurrence must win, got %q", all[0].FullText)
	}
	if all[1].CanonicalURL != "https://x/2" {
		t.Errorf("insertion order broken: %v", all)
	}
}

func TestAddItemsStorageFailure(t *testing.T) {
	ctx := context.Background()
	kv := db.NewMemoryKV()
	s := New(kv, logger.Nop())

	if _, err := s.AddItems(ctx, []models.Record{rec("https://x/1", models.TypeTopic)}); err != nil {
		t.Fatal(err)
	}

	kv.FailWrites(errors.New("quota exceeded"))
	_, err := s.AddItems(ctx, []models.Record{rec("https://x/2", models.TypeTopic)})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("AddItems() error = %v, want ErrStorage", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("failed write must not change the store, got %d records", len(all))
	}
}

func TestClearAndStats(t *testing.T) {
	ctx := context.Background()
	s := New(db.NewMemoryKV(), logger.Nop())

	_, _ = s.AddItems(ctx, []models.Record{
		rec("https://x/1", models.TypeTopic),
		rec("https://x/2", models.TypeTopic),
		rec("https://x/3", models.TypeBook),
	})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.ByType[models.TypeTopic] != 2 || st.ByType[models.TypeBook] != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	all, _ := s.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("store not empty after Clear(): %d", len(all))
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	s := New(db.NewMemoryKV(), logger.Nop())
	_, _ = s.AddItems(ctx, []models.Record{rec("https://x/1", models.TypeTopic), rec("https://x/2", models.TypeNote)})

	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	res, err := s.Export(ctx, FileSink{Dir: dir}, now)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Count != 2 || res.Name != "feed_2024-03-09.json" {
		t.Errorf("Export() = %+v", res)
	}

	data, err := os.ReadFile(filepath.Join(dir, res.Name))
	if err != nil {
		t.Fatal(err)
	}
	var back []models.Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(back) != 2 || back[1].CanonicalURL != "https://x/2" {
		t.Errorf("exported records = %+v", back)
	}
}
