package models

import "time"

type RecordType string

const (
	TypeTopic  RecordType = "topic"
	TypeNote   RecordType = "note"
	TypeSaying RecordType = "saying"
	TypeMovie  RecordType = "movie"
	TypeBook   RecordType = "book"
	TypeMusic  RecordType = "music"
	TypeOther  RecordType = "other"
)

// HasDetailPage reports whether listing entries of this type are truncated
// and carry a link to a full-content page.
func (t RecordType) HasDetailPage() bool {
	return t == TypeTopic || t == TypeNote
}

// HasFullText reports whether records of this type carry long-form text.
func (t RecordType) HasFullText() bool {
	return t == TypeTopic || t == TypeNote || t == TypeSaying
}

// HasLinkedWork reports whether records of this type point at a catalogued
// movie, book or music item.
func (t RecordType) HasLinkedWork() bool {
	return t == TypeMovie || t == TypeBook || t == TypeMusic
}

type LinkedWork struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Record struct {
	CreatedAt       string      `json:"created_at"`
	Type            RecordType  `json:"type"`
	CanonicalURL    string      `json:"canonical_url"`
	Headline        string      `json:"headline"`
	Title           string      `json:"title,omitempty"`
	TextExcerpt     string      `json:"text_excerpt"`
	FullText        string      `json:"full_text,omitempty"`
	ImageURLs       []string    `json:"image_urls"`
	LocalImagePaths []string    `json:"local_image_paths"`
	Linked          *LinkedWork `json:"linked,omitempty"`
}

type CrawlState struct {
	Running   bool      `json:"running"`
	StartPage int       `json:"start_page"`
	PagesDone int       `json:"pages_done"`
	StartTime time.Time `json:"start_time"`
	RunID     string    `json:"run_id,omitempty"`
}

// IdleState is the value reported when no crawl state has been persisted.
func IdleState() CrawlState {
	return CrawlState{Running: false, StartPage: 1}
}

type TypeCounts map[RecordType]int
