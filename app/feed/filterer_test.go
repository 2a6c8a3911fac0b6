package feed

import (
	"testing"

	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/portal"
)

func titles(items []portal.NewsItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func TestFilterer_NoFilters(t *testing.T) {
	items := []portal.NewsItem{{Title: "A"}, {Title: "B"}}

	result := NewFilterer(nil).Run(items)

	if len(result) != 2 {
		t.Errorf("Expected 2 items, got %d", len(result))
	}
}

func TestFilterer_TitleInclude(t *testing.T) {
	items := []portal.NewsItem{
		{Title: "关于开展学术讲座的通知"},
		{Title: "Sports Update"},
		{Title: "校园新闻"},
	}

	filterer := NewFilterer([]cfg.FeedFilter{
		{Field: "title", Includes: []string{"通知", "UPDATE"}},
	})
	result := titles(filterer.Run(items))

	if len(result) != 2 || result[0] != "关于开展学术讲座的通知" || result[1] != "Sports Update" {
		t.Errorf("Unexpected items after include filter: %v", result)
	}
}

func TestFilterer_ExcludeWins(t *testing.T) {
	items := []portal.NewsItem{
		{Title: "招聘通知", SourceName: "人事处"},
		{Title: "讲座通知", SourceName: "学工处"},
	}

	filterer := NewFilterer([]cfg.FeedFilter{
		{Field: "title", Includes: []string{"通知"}},
		{Field: "source", Excludes: []string{"人事处"}},
	})
	result := titles(filterer.Run(items))

	if len(result) != 1 || result[0] != "讲座通知" {
		t.Errorf("Expected only 讲座通知, got %v", result)
	}
}

func TestFilterer_ExcludedReason(t *testing.T) {
	filterer := NewFilterer([]cfg.FeedFilter{
		{Field: "tags", Excludes: []string{"sport"}},
	})

	excluded, reason := filterer.Excluded(portal.NewsItem{Tags: []string{"campus", "Sports"}})
	if !excluded {
		t.Fatal("Expected item to be excluded by tag")
	}
	if reason != "Excluded by tags filter: contains 'sport'" {
		t.Errorf("Unexpected reason: %s", reason)
	}

	excluded, _ = filterer.Excluded(portal.NewsItem{Tags: []string{"campus"}})
	if excluded {
		t.Error("Item without the tag should pass")
	}
}

func TestFilterer_SummaryIgnoresImageOnly(t *testing.T) {
	filterer := NewFilterer([]cfg.FeedFilter{
		{Field: "summary", Includes: []string{"图片公告"}},
	})

	item := portal.NewsItem{Summary: portal.ImageOnlyMarker + " 图片公告"}
	if excluded, _ := filterer.Excluded(item); !excluded {
		t.Error("Image-only summaries should not be matched")
	}
}

func TestFilterer_FoldsWidthAndCase(t *testing.T) {
	items := []portal.NewsItem{
		{Title: "abc 讲座通知"},
		{Title: "ＡＢＣ　竞赛"},
		{Title: "校园新闻"},
	}

	filterer := NewFilterer([]cfg.FeedFilter{
		{Field: "title", Includes: []string{"ＡＢＣ"}},
	})
	result := titles(filterer.Run(items))

	if len(result) != 2 || result[0] != "abc 讲座通知" || result[1] != "ＡＢＣ　竞赛" {
		t.Errorf("Expected width-folded matches, got %v", result)
	}

	filterer = NewFilterer([]cfg.FeedFilter{
		{Field: "title", Excludes: []string{"abc 竞赛"}},
	})
	result = titles(filterer.Run(items))

	if len(result) != 2 || result[0] != "abc 讲座通知" || result[1] != "校园新闻" {
		t.Errorf("Expected ideographic space to match a plain space, got %v", result)
	}
}
