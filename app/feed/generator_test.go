package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/portal"
)

func setupTestConfig(baseURL string) {
	cfg.Set(&cfg.Cfg{Port: "3000", BaseUrl: baseURL, Version: "test"})
}

func sampleItems() []portal.NewsItem {
	published := portal.Timestamp{Time: time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC)}
	return []portal.NewsItem{
		{
			ID:          42,
			Title:       "关于2024年秋季学期开学的通知",
			Content:     "<p>各学院：秋季学期将于9月2日开学。</p>",
			Summary:     "秋季学期将于9月2日开学",
			SourceURL:   "https://www.whut.edu.cn/tzgg/42.htm",
			SourceName:  "学校通知",
			PublishedAt: &published,
			Author:      "教务处",
			Category:    "通知公告",
			Tags:        []string{"通知公告", "开学"},
			CreatedAt:   published,
		},
		{
			ID:        43,
			Title:     "Scanned notice",
			Content:   portal.ImageOnlyMarker + " https://img.whut.edu.cn/1.png",
			CreatedAt: portal.Timestamp{Time: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestGenerateRSS(t *testing.T) {
	setupTestConfig("https://news.example.com")
	generator := NewGenerator(NewTextExtractor())

	out, err := generator.Run(Channel{
		Title:    "WHUT News - 通知公告",
		Path:     "/?category=%E9%80%9A%E7%9F%A5%E5%85%AC%E5%91%8A",
		SelfPath: "/feed.xml?category=%E9%80%9A%E7%9F%A5%E5%85%AC%E5%91%8A",
	}, sampleItems())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("Generated RSS does not parse: %v\n%s", err, out)
	}

	if parsed.Title != "WHUT News - 通知公告" {
		t.Errorf("Expected channel title, got '%s'", parsed.Title)
	}
	if !strings.HasPrefix(parsed.Link, "https://news.example.com/?category=") {
		t.Errorf("Expected absolute channel link, got '%s'", parsed.Link)
	}
	if parsed.Generator != "WHUT-Portal/test" {
		t.Errorf("Expected generator with version, got '%s'", parsed.Generator)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(parsed.Items))
	}

	first := parsed.Items[0]
	if first.GUID != "https://news.example.com/news/42" {
		t.Errorf("Expected detail GUID, got '%s'", first.GUID)
	}
	if first.Link != "https://www.whut.edu.cn/tzgg/42.htm" {
		t.Errorf("Expected source link, got '%s'", first.Link)
	}
	if first.Description != "秋季学期将于9月2日开学" {
		t.Errorf("Expected summary description, got '%s'", first.Description)
	}
	if !strings.Contains(first.Content, "秋季学期将于9月2日开学") {
		t.Errorf("Expected full content, got '%s'", first.Content)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("Unexpected pubDate %v", first.PublishedParsed)
	}
	if len(first.Categories) != 2 {
		t.Errorf("Expected category and one extra tag, got %v", first.Categories)
	}

	second := parsed.Items[1]
	if second.Description != ImageOnlyText {
		t.Errorf("Expected image-only placeholder, got '%s'", second.Description)
	}
	if second.Content != "" {
		t.Errorf("Expected no content for image-only post, got '%s'", second.Content)
	}
	if second.Link != "https://news.example.com/news/43" {
		t.Errorf("Expected detail link fallback, got '%s'", second.Link)
	}
}

func TestGenerateRSSWithoutBaseURL(t *testing.T) {
	setupTestConfig("")
	generator := NewGenerator(NewTextExtractor())

	out, err := generator.Run(Channel{Title: "WHUT News", Path: "/", SelfPath: "/feed.xml"}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !strings.Contains(out, `<atom:link href="http://localhost:3000/feed.xml"`) {
		t.Errorf("Expected localhost self link, got:\n%s", out)
	}
	if strings.Contains(out, "<item>") {
		t.Error("Expected no items")
	}
}

func TestGenerateRSSEscaping(t *testing.T) {
	setupTestConfig("")
	generator := NewGenerator(NewTextExtractor())

	items := []portal.NewsItem{{
		ID:        1,
		Title:     "Tom & Jerry <3",
		Content:   "<p>x ]]> y</p>",
		CreatedAt: portal.Timestamp{Time: time.Now()},
	}}

	out, err := generator.Run(Channel{Title: "a & b", Path: "/", SelfPath: "/feed.xml"}, items)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("Escaped RSS does not parse: %v", err)
	}
	if parsed.Items[0].Title != "Tom & Jerry <3" {
		t.Errorf("Title not round-tripped: '%s'", parsed.Items[0].Title)
	}
}
