package parse

import (
	"reflect"
	"testing"
)

func TestScanImageURLs(t *testing.T) {
	blob := `{"large": {"url": "https:\/\/img9.doubanio.com\/view\/l.jpg"}, "normal": {"url": "https:\/\/img9.doubanio.com\/view\/l.jpg"},
	"avatar": {"url": "https://www.douban.com/icon.png"}, "x": {"url": "http://img3.doubanio.com/y.png"}}`

	got := ScanImageURLs(blob)
	want := []string{"https://img9.doubanio.com/view/l.jpg", "http://img3.doubanio.com/y.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanImageURLs() = %v, want %v", got, want)
	}
}

func TestRunImageChainPrefersLarge(t *testing.T) {
	html := `<script>window._CONFIG = {"photos": [
		{"image": {"normal": {"url": "https://img1.doubanio.com/n1.jpg"}, "large": {"width": 1, "url": "https:\/\/img1.doubanio.com\/l1.jpg"}}},
		{"image": {"large": {"url": "https://img1.doubanio.com/l2.jpg"}}}
	]}</script>`

	res := RunImageChain(DetailImageChain(), html)
	if res.Tier != "large" || res.Outcome != Found {
		t.Fatalf("tier = %q outcome = %v", res.Tier, res.Outcome)
	}
	want := []string{"https://img1.doubanio.com/l1.jpg", "https://img1.doubanio.com/l2.jpg"}
	if !reflect.DeepEqual(res.URLs, want) {
		t.Errorf("URLs = %v, want %v", res.URLs, want)
	}
}

func TestRunImageChainFallsBackToGeneric(t *testing.T) {
	res := RunImageChain(DetailImageChain(), `{"url": "https://img2.doubanio.com/g.jpg"}`)
	if res.Tier != "url" || len(res.URLs) != 1 {
		t.Errorf("res = %+v", res)
	}

	none := RunImageChain(DetailImageChain(), `<p>no pictures</p>`)
	if none.Outcome != Absent || none.URLs == nil || len(none.URLs) != 0 {
		t.Errorf("none = %+v", none)
	}
}

func TestTopicTextChain(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		tier    string
		outcome Outcome
	}{
		{
			name:    "rich text paragraphs",
			html:    `<div class="topic-richtext"><p> first </p><p></p><p>second</p></div><div class="topic-content">ignored</div>`,
			want:    "first\nsecond",
			tier:    "topic-richtext",
			outcome: Found,
		},
		{
			name:    "empty tier one falls to tier two",
			html:    `<div class="topic-richtext"><p>  </p></div><div class="topic-content">  whole body  </div>`,
			want:    "whole body",
			tier:    "topic-content",
			outcome: Found,
		},
		{
			name:    "containers present but empty",
			html:    `<div class="topic-richtext"><p></p></div><div class="topic-content"> </div>`,
			outcome: Malformed,
		},
		{
			name:    "nothing matches",
			html:    `<div class="other">x</div>`,
			outcome: Absent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := RunTextChain(TopicTextChain(), loadDoc(t, tt.html, ""))
			if res.Text != tt.want || res.Tier != tt.tier || res.Outcome != tt.outcome {
				t.Errorf("RunTextChain() = %+v, want text=%q tier=%q outcome=%v", res, tt.want, tt.tier, tt.outcome)
			}
		})
	}
}

func TestNoteTextChain(t *testing.T) {
	tests := []struct {
		name string
		html string
		tier string
		want string
	}{
		{"note rich text", `<div class="note-richtext"><p>a</p><p>b</p></div>`, "note-richtext", "a\nb"},
		{"link report note", `<div id="link-report"><div class="note">inner</div>outer</div>`, "link-report-note", "inner"},
		{"link report", `<div id="link-report"> report </div>`, "link-report", "report"},
		{"topic layout", `<div class="topic-richtext"><p>t</p></div>`, "topic-richtext", "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := RunTextChain(NoteTextChain(), loadDoc(t, tt.html, ""))
			if res.Tier != tt.tier || res.Text != tt.want {
				t.Errorf("RunTextChain() = %+v, want tier=%q text=%q", res, tt.tier, tt.want)
			}
		})
	}
}

func TestParseDetail(t *testing.T) {
	html := `<html><body><div class="topic-richtext"><p>full text</p></div>
	<script>var c = {"large": {"url": "https://img1.doubanio.com/a.jpg"}}</script></body></html>`

	d, err := ParseDetail("https://www.douban.com/topic/1/", html, DetailOptions{})
	if err != nil {
		t.Fatalf("ParseDetail() error = %v", err)
	}
	if d.Kind != KindTopic || d.Text.Text != "full text" {
		t.Errorf("detail = %+v", d)
	}
	if !reflect.DeepEqual(d.Images.URLs, []string{"https://img1.doubanio.com/a.jpg"}) {
		t.Errorf("images = %v", d.Images.URLs)
	}

	other, err := ParseDetail("https://www.douban.com/photos/1/", html, DetailOptions{})
	if err != nil {
		t.Fatalf("ParseDetail() error = %v", err)
	}
	if other.Kind != KindUnknown || other.Text.Text != "" || len(other.Images.URLs) != 0 {
		t.Errorf("unknown page should yield nothing, got %+v", other)
	}
}

func TestDetailKind(t *testing.T) {
	if DetailKind("https://www.douban.com/note/77/") != KindNote {
		t.Error("note URL not recognised")
	}
	if DetailKind("https://www.douban.com/group/topic/5/") != KindTopic {
		t.Error("group topic URL not recognised")
	}
}
