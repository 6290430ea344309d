package parse

import (
	"reflect"
	"testing"

	"feed_spider/internal/models"
)

func TestExtractLiveTopic(t *testing.T) {
	html := `<html><head><title>某人的动态</title></head><body>
	<span class="author-name">某人</span>
	<span class="create-time">2024-05-06 07:08:09</span>
	<div class="topic-richtext"><p>line one</p><p>line two</p></div>
	<script>window._CONFIG = {"topic": {"photos": [
		{"image": {"large": {"url": "https:\/\/img1.doubanio.com\/l.jpg"}, "normal": {"url": "https://img1.doubanio.com/n.jpg"}}},
		{"image": {"normal": {"url": "https://img1.doubanio.com/only-normal.jpg"}}},
		{"large": {"url": "https://img1.doubanio.com/flat.jpg"}}
	], "title": "a } brace in a string"}};</script>
	</body></html>`

	rec := ExtractLive(loadDoc(t, html, ""), "https://www.douban.com/topic/42/?source=x#c", DetailOptions{})

	if rec.Type != models.TypeTopic {
		t.Errorf("Type = %q", rec.Type)
	}
	if rec.CanonicalURL != "https://www.douban.com/topic/42/" {
		t.Errorf("CanonicalURL = %q", rec.CanonicalURL)
	}
	if rec.Headline != "某人\n说：" || rec.Title != "某人" {
		t.Errorf("Headline = %q Title = %q", rec.Headline, rec.Title)
	}
	if rec.CreatedAt != "2024-05-06 07:08:09" {
		t.Errorf("CreatedAt = %q", rec.CreatedAt)
	}
	if rec.FullText != "line one\nline two" {
		t.Errorf("FullText = %q", rec.FullText)
	}
	want := []string{
		"https://img1.doubanio.com/l.jpg",
		"https://img1.doubanio.com/only-normal.jpg",
		"https://img1.doubanio.com/flat.jpg",
	}
	if !reflect.DeepEqual(rec.ImageURLs, want) {
		t.Errorf("ImageURLs = %v, want %v", rec.ImageURLs, want)
	}
}

func TestLiveTopicImagesMalformedConfig(t *testing.T) {
	// Unquoted keys are valid JavaScript but not JSON.
	html := `<html><body><script>window._CONFIG = {topic: {photos: [{"large": {"url": "https://img1.doubanio.com/r.jpg"}}]}};</script></body></html>`

	res := LiveTopicImages(loadDoc(t, html, ""))
	if res.Tier != "large" || !reflect.DeepEqual(res.URLs, []string{"https://img1.doubanio.com/r.jpg"}) {
		t.Errorf("LiveTopicImages() = %+v", res)
	}
}

func TestExtractLiveNoteWithoutAuthor(t *testing.T) {
	html := `<html><head><title>My note</title></head><body>
	<div id="link-report"><div class="note">note body</div></div>
	<script>var x = {"url": "https://img3.doubanio.com/p.png"}</script></body></html>`

	rec := ExtractLive(loadDoc(t, html, ""), "https://www.douban.com/note/9/", DetailOptions{})
	if rec.Type != models.TypeNote {
		t.Errorf("Type = %q", rec.Type)
	}
	if rec.Headline != "My note" {
		t.Errorf("Headline = %q", rec.Headline)
	}
	if rec.FullText != "note body" {
		t.Errorf("FullText = %q", rec.FullText)
	}
	if !reflect.DeepEqual(rec.ImageURLs, []string{"https://img3.doubanio.com/p.png"}) {
		t.Errorf("ImageURLs = %v", rec.ImageURLs)
	}
}

func TestObjectAfter(t *testing.T) {
	got := objectAfter(`x = 1; window._CONFIG = {"a": "}{", "b": {"c": 'q\'}'}}; more`, "_CONFIG")
	want := `{"a": "}{", "b": {"c": 'q\'}'}}`
	if got != want {
		t.Errorf("objectAfter() = %q, want %q", got, want)
	}
	if objectAfter(`window._CONFIG = {"open": 1`, "_CONFIG") != "" {
		t.Error("unterminated object should yield empty string")
	}
}
