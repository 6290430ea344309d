package parse

import (
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"feed_spider/internal/models"
)

const listingPage = `<html><body>
<div class="stream-items">
  <div class="new-status status-wrapper">
    <div class="status-item" data-atype="personal/topic">
      <div class="hd" data-status-url="https://www.douban.com/people/u/status/1/?from=feed">
        <div class="text">某人 发布了日记</div>
      </div>
      <span class="created_at" title="2024-03-01 10:00:00">3月1日</span>
      <div class="content">
        <div class="title"><a href="/topic/123/?from=feed#top">A topic title</a></div>
        <blockquote>Truncated words... (全文)</blockquote>
      </div>
      <div class="pics-wrapper"><script>
        var pics = [{"large": {"url": "https:\/\/img1.doubanio.com\/a.jpg"}, "normal": {"url": "https:\/\/img1.doubanio.com\/a.jpg"}},
                    {"url": "https://img2.doubanio.com/b.webp"}];
      </script></div>
    </div>
  </div>
  <div class="new-status status-wrapper">
    <div class="status-item" data-atype="movie">
      <div class="hd"><div class="text">某人 看过 一部电影</div></div>
      <div class="actions"><span class="created_at"><a href="https://www.douban.com/people/u/status/2/#c">link</a></span></div>
      <div class="block"><div class="title"><a href="https://movie.douban.com/subject/9/">Film</a></div></div>
    </div>
  </div>
  <div class="new-status status-wrapper">
    <span class="reshared_by">someone</span>
    <div class="status-item" data-atype="note"></div>
  </div>
  <div class="new-status status-wrapper">
    <div class="no-item"></div>
  </div>
  <div class="new-status status-wrapper">
    <div class="status-item" data-atype="">
      <div class="hd" data-status-url="https://www.douban.com/people/u/status/3/"><div class="text">某人 说：</div></div>
      <div class="content"><blockquote>  hello world（全文）  </blockquote></div>
    </div>
  </div>
</div>
<div class="paginator"><span class="next"><a href="?p=3">后页</a></span></div>
</body></html>`

func loadDoc(t *testing.T, html, pageURL string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			t.Fatalf("parse url: %v", err)
		}
		doc.Url = u
	}
	return doc
}

func TestParseListing(t *testing.T) {
	doc := loadDoc(t, listingPage, "https://www.douban.com/people/u/statuses?p=2")
	listing := ParseListing(doc)

	if len(listing.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(listing.Entries))
	}
	wantSkips := []Skip{{Index: 2, Reason: SkipReshare}, {Index: 3, Reason: SkipMissingStatusItem}}
	if !reflect.DeepEqual(listing.Skipped, wantSkips) {
		t.Errorf("Skipped = %+v, want %+v", listing.Skipped, wantSkips)
	}

	topic := listing.Entries[0]
	if topic.Record.Type != models.TypeTopic {
		t.Errorf("type = %q, want topic", topic.Record.Type)
	}
	if topic.Record.CanonicalURL != "https://www.douban.com/people/u/status/1/" {
		t.Errorf("CanonicalURL = %q", topic.Record.CanonicalURL)
	}
	if !topic.NeedsEnrichment || topic.DetailURL != "https://www.douban.com/topic/123/" {
		t.Errorf("enrichment = %v %q", topic.NeedsEnrichment, topic.DetailURL)
	}
	if topic.Record.Title != "A topic title" {
		t.Errorf("Title = %q", topic.Record.Title)
	}
	if topic.Record.TextExcerpt != "Truncated words..." || topic.Record.FullText != topic.Record.TextExcerpt {
		t.Errorf("excerpt = %q full = %q", topic.Record.TextExcerpt, topic.Record.FullText)
	}
	if topic.Record.CreatedAt != "2024-03-01 10:00:00" {
		t.Errorf("CreatedAt = %q", topic.Record.CreatedAt)
	}
	wantPics := []string{"https://img1.doubanio.com/a.jpg", "https://img2.doubanio.com/b.webp"}
	if !reflect.DeepEqual(topic.Record.ImageURLs, wantPics) {
		t.Errorf("ImageURLs = %v, want %v", topic.Record.ImageURLs, wantPics)
	}

	movie := listing.Entries[1]
	if movie.Record.Type != models.TypeMovie {
		t.Errorf("type = %q, want movie", movie.Record.Type)
	}
	if movie.Record.CanonicalURL != "https://www.douban.com/people/u/status/2/" {
		t.Errorf("fallback CanonicalURL = %q", movie.Record.CanonicalURL)
	}
	if movie.Record.Linked == nil || movie.Record.Linked.Title != "Film" {
		t.Errorf("Linked = %+v", movie.Record.Linked)
	}
	if movie.NeedsEnrichment {
		t.Error("movie entries must not need enrichment")
	}

	saying := listing.Entries[2]
	if saying.Record.Type != models.TypeSaying || saying.Record.TextExcerpt != "hello world" {
		t.Errorf("saying = %+v", saying.Record)
	}

	if got := NextPageURL(doc); got != "https://www.douban.com/people/u/statuses?p=3" {
		t.Errorf("NextPageURL() = %q", got)
	}
	counts := listing.Counts()
	if counts[models.TypeTopic] != 1 || counts[models.TypeMovie] != 1 || counts[models.TypeSaying] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
}

func TestParseListingDeterministic(t *testing.T) {
	a := ParseListing(loadDoc(t, listingPage, "https://www.douban.com/people/u/statuses"))
	b := ParseListing(loadDoc(t, listingPage, "https://www.douban.com/people/u/statuses"))
	for i := range a.Entries {
		if a.Entries[i].Record.Type != b.Entries[i].Record.Type ||
			a.Entries[i].Record.CanonicalURL != b.Entries[i].Record.CanonicalURL {
			t.Errorf("entry %d differs between runs", i)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		atype string
		text  string
		want  models.RecordType
	}{
		{"personal topic", "personal/topic", "", models.TypeTopic},
		{"group topic", "group/topic", "", models.TypeTopic},
		{"note", "note", "", models.TypeNote},
		{"attribute beats keyword", "note", "看过 说：", models.TypeNote},
		{"movie", "", "想看 Film", models.TypeMovie},
		{"music", "", "在听 Song", models.TypeMusic},
		{"book", "", "读过 Book", models.TypeBook},
		{"movie before saying", "", "看过 说：", models.TypeMovie},
		{"saying full width", "", "某人 说：", models.TypeSaying},
		{"saying ascii colon", "", "某人 说:", models.TypeSaying},
		{"other", "", "joined a group", models.TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.atype, tt.text); got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.atype, tt.text, got, tt.want)
			}
		})
	}
}

func TestNextPageURLMissing(t *testing.T) {
	doc := loadDoc(t, `<html><body><div class="paginator"></div></body></html>`, "https://www.douban.com/x")
	if got := NextPageURL(doc); got != "" {
		t.Errorf("NextPageURL() = %q, want empty", got)
	}
}

func TestEntryStored(t *testing.T) {
	e := &Entry{Record: models.Record{Type: models.TypeTopic}, NeedsEnrichment: true, DetailURL: "https://x/topic/1"}
	rec := e.Stored()
	if rec.ImageURLs == nil || rec.LocalImagePaths == nil {
		t.Error("Stored() must never carry nil slices")
	}
}
