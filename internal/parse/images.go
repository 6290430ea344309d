package parse

import (
	"regexp"
	"strings"

	"feed_spider/internal/utils"
)

var (
	// "url": "https://img1.doubanio.com/..." with either plain or \/ escaped slashes.
	reImageURL = regexp.MustCompile(`"url"\s*:\s*"(https?:(?:\\?/){2}img[^"]+)"`)
	// "large": {"height": 800, "url": "...", ...}
	reLargeImageURL = regexp.MustCompile(`"large"\s*:\s*\{[^}]*"url"\s*:\s*"([^"]+)"`)
)

func unescapeSlashes(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}

func scan(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, unescapeSlashes(m[1]))
	}
	return utils.Dedupe(out)
}

// ScanImageURLs finds every image-host URL in an embedded data blob.
// Large and normal variants often share a URL and collapse to one entry.
func ScanImageURLs(text string) []string {
	return scan(reImageURL, text)
}

// ScanLargeImageURLs finds the URL of every "large" image variant.
func ScanLargeImageURLs(text string) []string {
	return scan(reLargeImageURL, text)
}

type ImageResult struct {
	URLs    []string
	Tier    string
	Outcome Outcome
}

type ImageTier struct {
	Name    string
	Extract func(text string) []string
}

func DetailImageChain() []ImageTier {
	return []ImageTier{
		{Name: "large", Extract: ScanLargeImageURLs},
		{Name: "url", Extract: ScanImageURLs},
	}
}

// RunImageChain returns the first tier that yields at least one URL.
func RunImageChain(chain []ImageTier, text string) ImageResult {
	for _, tier := range chain {
		if found := tier.Extract(text); len(found) > 0 {
			return ImageResult{URLs: found, Tier: tier.Name, Outcome: Found}
		}
	}
	return ImageResult{URLs: []string{}, Outcome: Absent}
}
