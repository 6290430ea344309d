package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feed_spider/internal/db"
	"feed_spider/internal/logger"
	"feed_spider/internal/models"
)

const recordsKey = "records"

// ErrStorage wraps every failure of the underlying key-value primitive.
var ErrStorage = errors.New("storage failure")

type AddResult struct {
	Total int `json:"total"`
	Added int `json:"added"`
}

type Stats struct {
	Total  int               `json:"total"`
	ByType models.TypeCounts `json:"by_type"`
}

type ExportResult struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// Sink receives an exported snapshot under a suggested file name.
type Sink interface {
	Save(ctx context.Context, name string, payload []byte) error
}

// RecordStore is the append-only, canonical-URL-unique record set. The
// whole set is read and written as one value.
type RecordStore struct {
	kv  db.KV
	log logger.Logger
}

func New(kv db.KV, log logger.Logger) *RecordStore {
	return &RecordStore{kv: kv, log: log}
}

// GetAll returns every stored record in insertion order.
func (s *RecordStore) GetAll(ctx context.Context) ([]models.Record, error) {
	var records []models.Record
	if _, err := s.kv.Get(ctx, recordsKey, &records); err != nil {
		return nil, fmt.Errorf("%w: load records: %w", ErrStorage, err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// AddItems appends every record whose canonical URL is not yet present,
// including URLs first seen earlier in the same batch, and persists the
// result as one write.
func (s *RecordStore) AddItems(ctx context.Context, batch []models.Record) (AddResult, error) {
	existing, err := s.GetAll(ctx)
	if err != nil {
		return AddResult{}, err
	}

	seen := make(map[string]struct{}, len(existing)+len(batch))
	for _, r := range existing {
		seen[r.CanonicalURL] = struct{}{}
	}

	added := 0
	for _, r := range batch {
		if r.CanonicalURL == "" {
			s.log.Warn("record has no canonical URL",
				logger.String("type", string(r.Type)),
				logger.String("created_at", r.CreatedAt))
		}
		if _, dup := seen[r.CanonicalURL]; dup {
			continue
		}
		seen[r.CanonicalURL] = struct{}{}
		existing = append(existing, r)
		added++
	}

	if err := s.kv.Set(ctx, recordsKey, existing); err != nil {
		return AddResult{}, fmt.Errorf("%w: save records: %w", ErrStorage, err)
	}
	return AddResult{Total: len(existing), Added: added}, nil
}

func (s *RecordStore) Clear(ctx context.Context) error {
	if err := s.kv.Set(ctx, recordsKey, []models.Record{}); err != nil {
		return fmt.Errorf("%w: clear records: %w", ErrStorage, err)
	}
	return nil
}

// Stats counts stored records per type.
func (s *RecordStore) Stats(ctx context.Context) (Stats, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(records), ByType: make(models.TypeCounts)}
	for _, r := range records {
		st.ByType[r.Type]++
	}
	return st, nil
}

// ExportName is the artifact name for a snapshot taken at now.
func ExportName(now time.Time) string {
	return fmt.Sprintf("feed_%s.json", now.UTC().Format("2006-01-02"))
}

// Export serialises the full record set as indented JSON into sink.
func (s *RecordStore) Export(ctx context.Context, sink Sink, now time.Time) (ExportResult, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return ExportResult{}, err
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return ExportResult{}, fmt.Errorf("encode export: %w", err)
	}

	name := ExportName(now)
	if err := sink.Save(ctx, name, payload); err != nil {
		return ExportResult{}, fmt.Errorf("save export %s: %w", name, err)
	}
	return ExportResult{Count: len(records), Name: name}, nil
}

// FileSink writes exports into Dir.
type FileSink struct {
	Dir string
}

func (f FileSink) Save(_ context.Context, name string, payload []byte) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(f.Dir, name), payload, 0o644)
}
