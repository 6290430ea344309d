package crawl

import (
	"context"
	"fmt"
	"sync"

	"feed_spider/internal/db"
	"feed_spider/internal/models"
	"feed_spider/internal/store"
)

const crawlStateKey = "crawl_state"

// CrawlStates persists the automation cursor as a single KV value. The crawl
// goroutine and the control surface both write it, so every read-modify-write
// runs under mu.
type CrawlStates struct {
	mu sync.Mutex
	kv db.KV
}

func NewCrawlStates(kv db.KV) *CrawlStates {
	return &CrawlStates{kv: kv}
}

// Load returns the persisted state, or the idle state when none exists.
func (s *CrawlStates) Load(ctx context.Context) (models.CrawlState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *CrawlStates) Save(ctx context.Context, st models.CrawlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, st)
}

func (s *CrawlStates) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, crawlStateKey); err != nil {
		return fmt.Errorf("%w: clear crawl state: %w", store.ErrStorage, err)
	}
	return nil
}

// MarkStopped sets running=false and keeps the rest of the cursor so the
// in-flight cycle can still report its summary.
func (s *CrawlStates) MarkStopped(ctx context.Context) (models.CrawlState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	if !st.Running {
		return st, nil
	}
	st.Running = false
	return st, s.save(ctx, st)
}

func (s *CrawlStates) IncrementPagesDone(ctx context.Context) (models.CrawlState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return st, err
	}
	st.PagesDone++
	return st, s.save(ctx, st)
}

func (s *CrawlStates) Running(ctx context.Context) (bool, error) {
	st, err := s.Load(ctx)
	return st.Running, err
}

func (s *CrawlStates) load(ctx context.Context) (models.CrawlState, error) {
	st := models.IdleState()
	if _, err := s.kv.Get(ctx, crawlStateKey, &st); err != nil {
		return models.IdleState(), fmt.Errorf("%w: load crawl state: %w", store.ErrStorage, err)
	}
	return st, nil
}

func (s *CrawlStates) save(ctx context.Context, st models.CrawlState) error {
	if err := s.kv.Set(ctx, crawlStateKey, st); err != nil {
		return fmt.Errorf("%w: save crawl state: %w", store.ErrStorage, err)
	}
	return nil
}
