package parse

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"feed_spider/internal/models"
	"feed_spider/internal/urls"
)

var (
	reMovie  = regexp.MustCompile(`看过|在看|想看`)
	reMusic  = regexp.MustCompile(`听过|在听|想听`)
	reBook   = regexp.MustCompile(`读过|在读|想读`)
	reSaying = regexp.MustCompile(`说：|说:`)

	reFullTextMarkCN = regexp.MustCompile(`\s*（全文）\s*$`)
	reFullTextMark   = regexp.MustCompile(`\s*\(全文\)\s*$`)
)

type SkipReason string

const (
	SkipReshare           SkipReason = "reshare"
	SkipMissingStatusItem SkipReason = "missing status item"
)

type Skip struct {
	Index  int
	Reason SkipReason
}

// Entry is one classified listing entry. NeedsEnrichment and DetailURL are
// process-local and never reach the store.
type Entry struct {
	Record          models.Record
	NeedsEnrichment bool
	DetailURL       string
}

// Stored returns the record as it is persisted.
func (e *Entry) Stored() models.Record {
	rec := e.Record
	if rec.ImageURLs == nil {
		rec.ImageURLs = []string{}
	}
	if rec.LocalImagePaths == nil {
		rec.LocalImagePaths = []string{}
	}
	return rec
}

type Listing struct {
	Entries []*Entry
	Skipped []Skip
}

// Counts returns the type distribution of the parsed entries.
func (l Listing) Counts() models.TypeCounts {
	counts := make(models.TypeCounts)
	for _, e := range l.Entries {
		counts[e.Record.Type]++
	}
	return counts
}

// ParseListing classifies every status wrapper of a listing page.
func ParseListing(doc *goquery.Document) Listing {
	var out Listing
	doc.Find("div.stream-items > div.new-status.status-wrapper").Each(func(i int, wrapper *goquery.Selection) {
		entry, reason := ParseEntry(wrapper, doc.Url)
		if entry == nil {
			out.Skipped = append(out.Skipped, Skip{Index: i, Reason: reason})
			return
		}
		out.Entries = append(out.Entries, entry)
	})
	return out
}

// ParseEntry turns one status wrapper into an Entry. It returns nil with a
// reason for reshares and wrappers without a status item; anything else
// missing degrades to empty values.
func ParseEntry(wrapper *goquery.Selection, base *url.URL) (*Entry, SkipReason) {
	if wrapper.Find("span.reshared_by").Length() > 0 || wrapper.Find("div.reshared").Length() > 0 {
		return nil, SkipReshare
	}
	statusItem := wrapper.Find("div.status-item").First()
	if statusItem.Length() == 0 {
		return nil, SkipMissingStatusItem
	}

	headline := strings.TrimSpace(firstOf(wrapper, ".hd .text", ".text").Text())
	atype, _ := statusItem.Attr("data-atype")
	createdAt, _ := wrapper.Find("span.created_at[title]").First().Attr("title")

	statusURL, ok := wrapper.Find(".hd[data-status-url]").First().Attr("data-status-url")
	if !ok {
		statusURL, _ = wrapper.Find(".actions .created_at a[href]").First().Attr("href")
	}

	typ := Classify(atype, headline)
	rec := models.Record{
		CreatedAt:       createdAt,
		Type:            typ,
		CanonicalURL:    urls.Canonical(absolute(base, statusURL)),
		Headline:        headline,
		ImageURLs:       []string{},
		LocalImagePaths: []string{},
	}
	entry := &Entry{Record: rec}

	switch {
	case typ.HasDetailPage():
		link := wrapper.Find(".content .title a").First()
		href, _ := link.Attr("href")
		entry.Record.Title = strings.TrimSpace(link.Text())
		entry.DetailURL = urls.Canonical(absolute(base, href))
		entry.NeedsEnrichment = true
		entry.Record.TextExcerpt = cleanExcerpt(wrapper.Find(".content blockquote").First().Text())
		entry.Record.ImageURLs = wrapperImages(wrapper)
	case typ == models.TypeSaying:
		entry.Record.TextExcerpt = cleanExcerpt(firstOf(wrapper, ".content blockquote", "blockquote").Text())
		entry.Record.ImageURLs = wrapperImages(wrapper)
	case typ.HasLinkedWork():
		link := firstOf(wrapper, ".content .title a", ".block .title a")
		href, _ := link.Attr("href")
		entry.Record.Linked = &models.LinkedWork{
			Title: strings.TrimSpace(link.Text()),
			URL:   href,
		}
	default:
		entry.Record.ImageURLs = wrapperImages(wrapper)
	}

	if typ.HasFullText() {
		entry.Record.FullText = entry.Record.TextExcerpt
	}
	return entry, ""
}

// Classify decides the record type. The structural data-atype attribute
// always wins over keyword matching on the header text.
func Classify(dataAtype, text string) models.RecordType {
	switch dataAtype {
	case "personal/topic", "group/topic":
		return models.TypeTopic
	case "note":
		return models.TypeNote
	}

	switch {
	case reMovie.MatchString(text):
		return models.TypeMovie
	case reMusic.MatchString(text):
		return models.TypeMusic
	case reBook.MatchString(text):
		return models.TypeBook
	case reSaying.MatchString(text):
		return models.TypeSaying
	}
	return models.TypeOther
}

// NextPageURL returns the absolute URL of the paginator's next link, or "".
func NextPageURL(doc *goquery.Document) string {
	href, ok := doc.Find(".paginator .next a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return absolute(doc.Url, href)
}

func wrapperImages(wrapper *goquery.Selection) []string {
	var blob strings.Builder
	wrapper.Find(".pics-wrapper script").Each(func(_ int, s *goquery.Selection) {
		blob.WriteString(s.Text())
		blob.WriteByte('\n')
	})
	return ScanImageURLs(blob.String())
}

func cleanExcerpt(text string) string {
	text = strings.TrimSpace(text)
	text = reFullTextMarkCN.ReplaceAllString(text, "")
	text = reFullTextMark.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func firstOf(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, sel := range selectors {
		if found := s.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return s.Find(selectors[len(selectors)-1]).First()
}

func absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	return urls.Resolve(base.String(), href)
}
