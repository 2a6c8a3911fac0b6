package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/portal"
)

const descriptionLimit = 200

// Channel describes one RSS rendering of a news list, typically a filter.
type Channel struct {
	Title       string
	Description string
	// Path is the portal path plus query the channel mirrors, e.g. "/?category=x".
	Path string
	// SelfPath is the path of the feed document itself.
	SelfPath string
}

type Generator struct {
	extractor *TextExtractor
}

func NewGenerator(extractor *TextExtractor) *Generator {
	return &Generator{extractor: extractor}
}

func (g *Generator) Run(channel Channel, items []portal.NewsItem) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", channel.Title, 4)
	g.writeElement(&buf, "link", g.absolute(channel.Path), 4)
	g.writeElement(&buf, "description", cmp.Or(channel.Description, channel.Title), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.absolute(channel.SelfPath))))

	lastBuildDate := time.Now().In(time.Local)
	if len(items) > 0 {
		lastBuildDate = publishedAt(items[0])
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("WHUT-Portal/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", "zh-cn", 4)

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, item portal.NewsItem) {
	buf.WriteString("    <item>\n")

	detail := g.absolute("/news/" + strconv.Itoa(item.ID))
	buf.WriteString("      <guid isPermaLink=\"true\">")
	xml.EscapeText(buf, []byte(detail))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", cmp.Or(item.SourceURL, detail), 6)

	description := g.extractor.Summary(item, descriptionLimit)
	g.writeElement(buf, "description", cmp.Or(description, "No description available"), 6)

	if item.Content != "" && !item.IsImageOnly() {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(escapeCDATA(item.Content))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", publishedAt(item).Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", item.Author, 6)

	g.writeElement(buf, "category", item.Category, 6)
	for _, tag := range item.Tags {
		if tag != "" && tag != item.Category {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	if item.SourceName != "" && item.SourceURL != "" {
		buf.WriteString(fmt.Sprintf("      <source url=\"%s\">", html.EscapeString(item.SourceURL)))
		xml.EscapeText(buf, []byte(item.SourceName))
		buf.WriteString("</source>\n")
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// absolute resolves a portal path against the public base URL.
func (g *Generator) absolute(path string) string {
	if cfg.Get().BaseUrl != "" {
		return cfg.Get().BaseUrl + path
	}
	return fmt.Sprintf("http://localhost:%s%s", cfg.Get().Port, path)
}

func publishedAt(item portal.NewsItem) time.Time {
	if item.PublishedAt != nil && !item.PublishedAt.IsZero() {
		return item.PublishedAt.Time
	}
	return item.CreatedAt.Time
}

// escapeCDATA splits any "]]>" so the content cannot close the section.
func escapeCDATA(s string) string {
	return string(bytes.ReplaceAll([]byte(s), []byte("]]>"), []byte("]]]]><![CDATA[>")))
}
