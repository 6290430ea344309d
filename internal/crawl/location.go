package crawl

import (
	"context"
	"fmt"

	"feed_spider/internal/db"
	"feed_spider/internal/store"
)

const locationKey = "location"

// Navigator holds the listing page the next cycle operates on.
type Navigator interface {
	Current(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Reset(ctx context.Context) error
}

// Location is the default Navigator: the current page URL is persisted next
// to the crawl state so a restarted process picks up where it left off.
type Location struct {
	kv       db.KV
	fallback string
}

// NewLocation returns a KV-backed Navigator that reports fallback until the
// first navigation.
func NewLocation(kv db.KV, fallback string) *Location {
	return &Location{kv: kv, fallback: fallback}
}

func (l *Location) Current(ctx context.Context) (string, error) {
	current := l.fallback
	if _, err := l.kv.Get(ctx, locationKey, &current); err != nil {
		return "", fmt.Errorf("%w: load location: %w", store.ErrStorage, err)
	}
	return current, nil
}

func (l *Location) Navigate(ctx context.Context, url string) error {
	if err := l.kv.Set(ctx, locationKey, url); err != nil {
		return fmt.Errorf("%w: save location: %w", store.ErrStorage, err)
	}
	return nil
}

// Reset forgets the navigated page so Current reports the fallback again.
func (l *Location) Reset(ctx context.Context) error {
	if err := l.kv.Delete(ctx, locationKey); err != nil {
		return fmt.Errorf("%w: reset location: %w", store.ErrStorage, err)
	}
	return nil
}
