package parse

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"feed_spider/internal/utils"
)

// Outcome tells callers why a tier produced what it did.
type Outcome int

const (
	// Absent: the selector or pattern matched nothing.
	Absent Outcome = iota
	// Found: the tier produced a usable value.
	Found
	// Malformed: the source was present but yielded nothing usable.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "absent"
	}
}

type TextResult struct {
	Text    string
	Tier    string
	Outcome Outcome
}

type TextTier struct {
	Name    string
	Extract func(doc *goquery.Document) TextResult
}

// ParagraphsTier joins the trimmed, non-empty text of every node matching
// selector with newlines.
func ParagraphsTier(name, selector string) TextTier {
	return TextTier{
		Name: name,
		Extract: func(doc *goquery.Document) TextResult {
			nodes := doc.Find(selector)
			if nodes.Length() == 0 {
				return TextResult{Tier: name, Outcome: Absent}
			}
			parts := make([]string, 0, nodes.Length())
			nodes.Each(func(_ int, s *goquery.Selection) {
				if t := strings.TrimSpace(s.Text()); t != "" {
					parts = append(parts, t)
				}
			})
			return textResult(name, strings.Join(parts, "\n"))
		},
	}
}

// ContainerTier takes the trimmed text of the first node matching selector.
func ContainerTier(name, selector string) TextTier {
	return TextTier{
		Name: name,
		Extract: func(doc *goquery.Document) TextResult {
			node := doc.Find(selector).First()
			if node.Length() == 0 {
				return TextResult{Tier: name, Outcome: Absent}
			}
			return textResult(name, strings.TrimSpace(node.Text()))
		},
	}
}

func textResult(tier, text string) TextResult {
	if text == "" {
		return TextResult{Tier: tier, Outcome: Malformed}
	}
	return TextResult{Text: text, Tier: tier, Outcome: Found}
}

func TopicTextChain() []TextTier {
	return []TextTier{
		ParagraphsTier("topic-richtext", "div.topic-richtext p"),
		ContainerTier("topic-content", "div.topic-content"),
	}
}

// NoteTextChain ends with the topic container because some notes are
// rendered with the topic layout.
func NoteTextChain() []TextTier {
	return []TextTier{
		ParagraphsTier("note-richtext", "div.note-richtext p"),
		ContainerTier("link-report-note", "#link-report .note"),
		ContainerTier("link-report", "#link-report"),
		ParagraphsTier("topic-richtext", "div.topic-richtext p"),
	}
}

// RunTextChain evaluates tiers in order and returns the first Found result.
// When every tier misses, the result reports Malformed if any tier saw its
// container, otherwise Absent.
func RunTextChain(chain []TextTier, doc *goquery.Document) TextResult {
	miss := TextResult{Outcome: Absent}
	for _, tier := range chain {
		res := tier.Extract(doc)
		if res.Outcome == Found {
			return res
		}
		if res.Outcome == Malformed {
			miss.Outcome = Malformed
		}
	}
	return miss
}

var reBlockOpen = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])([\s/>])`)
var reBlockClose = regexp.MustCompile(`</(div|p|li|td|tr|h[1-6])>`)

// addSpacesBeforeParsing pads block tags so that Text() does not glue
// adjacent paragraphs together.
func addSpacesBeforeParsing(html string) string {
	html = reBlockOpen.ReplaceAllString(html, " <$1$2")
	return reBlockClose.ReplaceAllString(html, "</$1> ")
}

// ReadabilityTier runs go-readability over the whole document. It is a last
// resort for layouts none of the selector tiers know about.
func ReadabilityTier(pageURL *url.URL) TextTier {
	const name = "readability"
	return TextTier{
		Name: name,
		Extract: func(doc *goquery.Document) TextResult {
			raw, err := doc.Html()
			if err != nil {
				return TextResult{Tier: name, Outcome: Malformed}
			}
			article, err := readability.FromReader(strings.NewReader(raw), pageURL)
			if err != nil {
				return TextResult{Tier: name, Outcome: Absent}
			}
			clean, err := goquery.NewDocumentFromReader(strings.NewReader(addSpacesBeforeParsing(article.Content)))
			if err != nil {
				return TextResult{Tier: name, Outcome: Malformed}
			}
			return textResult(name, utils.NormalizeText(clean.Text()))
		},
	}
}
