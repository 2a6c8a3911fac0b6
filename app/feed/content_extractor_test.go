package feed

import (
	"strings"
	"testing"

	"github.com/lxidea/whut-portal/app/portal"
)

func TestTextExtractor_Run_ArticleHTML(t *testing.T) {
	extractor := NewTextExtractor()

	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>Test Article</title>
	</head>
	<body>
		<header>
			<h1>Site Header</h1>
			<nav>Navigation</nav>
		</header>
		<main>
			<article>
				<h1>Main Article Title</h1>
				<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
				<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
				<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
			</article>
		</main>
		<aside>
			<div>Advertisement</div>
		</aside>
	</body>
	</html>
	`

	result, err := extractor.Run(htmlContent)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "main content of the article") {
		t.Errorf("Expected extracted text to contain main article text, got '%s'", result)
	}
	if strings.Contains(result, "<p>") {
		t.Errorf("Expected plain text without markup, got '%s'", result)
	}
	if strings.Contains(result, "Advertisement") {
		t.Errorf("Expected extracted text to exclude the aside")
	}
}

func TestTextExtractor_Run_PlainText(t *testing.T) {
	extractor := NewTextExtractor()

	result, err := extractor.Run("  各学院：\n\n  请于本周五前   提交材料。 ")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "各学院： 请于本周五前 提交材料。" {
		t.Errorf("Expected collapsed plain text, got '%s'", result)
	}
}

func TestTextExtractor_Run_Fragment(t *testing.T) {
	extractor := NewTextExtractor()

	result, err := extractor.Run("<p>短通知</p><script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result, "短通知") {
		t.Errorf("Expected fragment text, got '%s'", result)
	}
	if strings.Contains(result, "alert") || strings.Contains(result, "<") {
		t.Errorf("Expected scripts and tags to be dropped, got '%s'", result)
	}
}

func TestTextExtractor_Run_ImageOnly(t *testing.T) {
	extractor := NewTextExtractor()

	result, err := extractor.Run(portal.ImageOnlyMarker + " https://img.whut.edu.cn/a.jpg")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != ImageOnlyText {
		t.Errorf("Expected '%s', got '%s'", ImageOnlyText, result)
	}
}

func TestTextExtractor_Run_Empty(t *testing.T) {
	extractor := NewTextExtractor()

	if _, err := extractor.Run("   "); err == nil {
		t.Error("Expected error for empty content")
	}
}

func TestTextExtractor_Summary(t *testing.T) {
	extractor := NewTextExtractor()

	item := portal.NewsItem{Content: "一二三四五六七八九十"}
	if got := extractor.Summary(item, 4); got != "一二三四…" {
		t.Errorf("Expected truncated text, got '%s'", got)
	}

	item.Summary = "摘要"
	if got := extractor.Summary(item, 4); got != "摘要" {
		t.Errorf("Expected backend summary to win, got '%s'", got)
	}

	item = portal.NewsItem{Summary: portal.ImageOnlyMarker, Content: portal.ImageOnlyMarker}
	if got := extractor.Summary(item, 10); got != ImageOnlyText {
		t.Errorf("Expected image-only placeholder, got '%s'", got)
	}

	if got := extractor.Summary(portal.NewsItem{}, 10); got != "" {
		t.Errorf("Expected empty summary for empty item, got '%s'", got)
	}
}
