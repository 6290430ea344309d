package parse

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"feed_spider/internal/models"
	"feed_spider/internal/urls"
	"feed_spider/internal/utils"
)

var reLiveNote = regexp.MustCompile(`^/note/\d+`)

type imageRef struct {
	URL string `json:"url"`
}

type photoImage struct {
	Large  *imageRef `json:"large"`
	Normal *imageRef `json:"normal"`
}

type photo struct {
	Image *photoImage `json:"image"`
	photoImage
}

type pageConfig struct {
	Topic *struct {
		Photos []photo `json:"photos"`
	} `json:"topic"`
}

// ExtractLive builds a record from a detail page that is already loaded,
// as opposed to one fetched in the background for enrichment.
func ExtractLive(doc *goquery.Document, pageURL string, opts DetailOptions) models.Record {
	kind := KindTopic
	if u, err := url.Parse(pageURL); err == nil && reLiveNote.MatchString(u.Path) {
		kind = KindNote
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	author := strings.TrimSpace(firstOf(doc.Selection, ".author-name", ".user-face + .article-main .author-name").Text())
	headline := title
	if author != "" {
		headline = author + "\n说："
	}

	text := RunTextChain(opts.TextChain(kind, pageURL), doc)

	var images ImageResult
	if kind == KindTopic {
		images = LiveTopicImages(doc)
	} else {
		html, _ := doc.Html()
		images = RunImageChain(DetailImageChain(), html)
	}

	return models.Record{
		CreatedAt:       strings.TrimSpace(doc.Find("span.create-time").First().Text()),
		Type:            models.RecordType(kind),
		CanonicalURL:    urls.Canonical(pageURL),
		Headline:        headline,
		Title:           strings.TrimSpace(strings.TrimSuffix(title, "的动态")),
		TextExcerpt:     text.Text,
		FullText:        text.Text,
		ImageURLs:       images.URLs,
		LocalImagePaths: []string{},
	}
}

// LiveTopicImages reads the photo list from the page's window._CONFIG
// object. When the object cannot be decoded the regex tiers run over the
// script that carries it.
func LiveTopicImages(doc *goquery.Document) ImageResult {
	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		if strings.Contains(t, "_CONFIG") && strings.Contains(t, "photos") {
			script = t
			return false
		}
		return true
	})
	if script == "" {
		return ImageResult{URLs: []string{}, Outcome: Absent}
	}

	if found, ok := configPhotos(script); ok {
		return ImageResult{URLs: found, Tier: "config", Outcome: Found}
	}

	res := RunImageChain(DetailImageChain(), script)
	if res.Outcome != Found {
		res.Outcome = Malformed
	}
	return res
}

func configPhotos(script string) ([]string, bool) {
	raw := objectAfter(script, "_CONFIG")
	if raw == "" {
		return nil, false
	}
	var cfg pageConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil || cfg.Topic == nil || cfg.Topic.Photos == nil {
		return nil, false
	}

	out := make([]string, 0, len(cfg.Topic.Photos))
	for _, p := range cfg.Topic.Photos {
		img := p.photoImage
		if p.Image != nil {
			img = *p.Image
		}
		switch {
		case img.Large != nil && img.Large.URL != "":
			out = append(out, unescapeSlashes(img.Large.URL))
		case img.Normal != nil && img.Normal.URL != "":
			out = append(out, unescapeSlashes(img.Normal.URL))
		}
	}
	return utils.Dedupe(out), true
}

// objectAfter returns the brace-balanced {...} literal that follows marker,
// honouring string quoting. It returns "" when no complete object is found.
func objectAfter(text, marker string) string {
	i := strings.Index(text, marker)
	if i < 0 {
		return ""
	}
	start := strings.IndexByte(text[i:], '{')
	if start < 0 {
		return ""
	}
	start += i

	depth := 0
	var quote byte
	escaped := false
	for j := start; j < len(text); j++ {
		c := text[j]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : j+1]
			}
		}
	}
	return ""
}
