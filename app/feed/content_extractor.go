package feed

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/lxidea/whut-portal/app/portal"
)

// ImageOnlyText replaces the body of posts that are a single scanned image.
const ImageOnlyText = "图片公告"

type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Run turns an article body into readable plain text. HTML goes through
// readability; plain text and anything readability gives up on are
// reduced to their text nodes with whitespace collapsed.
func (e *TextExtractor) Run(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("content is empty")
	}

	if strings.HasPrefix(content, portal.ImageOnlyMarker) {
		return ImageOnlyText, nil
	}

	if !looksLikeHTML(content) {
		return collapseSpace(content), nil
	}

	article, err := readability.FromReader(strings.NewReader(content), nil)
	if err != nil {
		slog.Debug("Readability failed, using document text", "error", err)
		return documentText(content)
	}

	text := collapseSpace(article.TextContent)
	if text == "" {
		return documentText(content)
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(text))

	return text, nil
}

// Summary is the first limit runes of the item's readable text.
func (e *TextExtractor) Summary(item portal.NewsItem, limit int) string {
	if s := item.DisplaySummary(); s != "" {
		return truncate(s, limit)
	}
	text, err := e.Run(item.Content)
	if err != nil {
		return ""
	}
	return truncate(text, limit)
}

func documentText(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style").Remove()
	return collapseSpace(doc.Text()), nil
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
