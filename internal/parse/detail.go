package parse

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type Kind string

const (
	KindTopic   Kind = "topic"
	KindNote    Kind = "note"
	KindUnknown Kind = "unknown"
)

var (
	reTopicPath = regexp.MustCompile(`/topic/`)
	reNotePath  = regexp.MustCompile(`/note/`)
)

// DetailKind infers the detail-page layout from its URL.
func DetailKind(detailURL string) Kind {
	switch {
	case reTopicPath.MatchString(detailURL):
		return KindTopic
	case reNotePath.MatchString(detailURL):
		return KindNote
	default:
		return KindUnknown
	}
}

type DetailOptions struct {
	// Readability appends a go-readability tier after the selector tiers.
	Readability bool
}

type Detail struct {
	Kind   Kind
	Text   TextResult
	Images ImageResult
}

// TextChain returns the text tiers used for a detail page of this kind.
func (o DetailOptions) TextChain(kind Kind, pageURL string) []TextTier {
	var chain []TextTier
	switch kind {
	case KindTopic:
		chain = TopicTextChain()
	case KindNote:
		chain = NoteTextChain()
	}
	if o.Readability && len(chain) > 0 {
		if u, err := url.Parse(pageURL); err == nil {
			chain = append(chain, ReadabilityTier(u))
		}
	}
	return chain
}

// ParseDetail extracts the full text and image list of a fetched detail page.
// Pages whose URL is neither a topic nor a note yield an empty Detail.
func ParseDetail(detailURL, html string, opts DetailOptions) (Detail, error) {
	kind := DetailKind(detailURL)
	d := Detail{
		Kind:   kind,
		Text:   TextResult{Outcome: Absent},
		Images: ImageResult{URLs: []string{}, Outcome: Absent},
	}
	if kind == KindUnknown {
		return d, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d, fmt.Errorf("parse detail %s: %w", detailURL, err)
	}
	if u, err := url.Parse(detailURL); err == nil {
		doc.Url = u
	}

	d.Text = RunTextChain(opts.TextChain(kind, detailURL), doc)
	d.Images = RunImageChain(DetailImageChain(), html)
	return d, nil
}
