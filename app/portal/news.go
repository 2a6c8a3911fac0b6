package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// NewsQuery mirrors the query parameters of GET /api/news/.
// Empty string fields mean "all".
type NewsQuery struct {
	Page         int
	PageSize     int
	Category     string
	Search       string
	SourceName   string
	Publisher    string
	Department   string
	FeaturedOnly bool
}

func (q NewsQuery) Validate() error {
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidQuery, q.Page)
	}
	if q.PageSize <= 0 {
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidQuery, q.PageSize)
	}
	return nil
}

func (q NewsQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))

	optional := map[string]string{
		"category":    q.Category,
		"search":      q.Search,
		"source_name": q.SourceName,
		"publisher":   q.Publisher,
		"department":  q.Department,
	}
	for key, value := range optional {
		if value != "" {
			v.Set(key, value)
		}
	}
	if q.FeaturedOnly {
		v.Set("featured_only", "true")
	}
	return v
}

func (c *Client) ListNews(ctx context.Context, q NewsQuery) (*NewsList, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var list NewsList
	if err := c.get(ctx, "list news", "/api/news/", q.Values(), "", &list); err != nil {
		return nil, err
	}
	if list.Items == nil {
		list.Items = []NewsItem{}
	}
	return &list, nil
}

func (c *Client) GetNews(ctx context.Context, id int) (*NewsItem, error) {
	var item NewsItem
	if err := c.get(ctx, "get news", fmt.Sprintf("/api/news/%d", id), nil, "", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	return c.listStrings(ctx, "list categories", "/api/news/categories/list", "categories")
}

func (c *Client) ListSources(ctx context.Context) ([]string, error) {
	return c.listStrings(ctx, "list sources", "/api/news/sources/list", "sources")
}

func (c *Client) ListPublishers(ctx context.Context) ([]string, error) {
	return c.listStrings(ctx, "list publishers", "/api/news/publishers/list", "publishers")
}

func (c *Client) ListDepartments(ctx context.Context) ([]string, error) {
	return c.listStrings(ctx, "list departments", "/api/news/departments/list", "departments")
}

// listStrings decodes either `{"<key>": [...]}` or a bare JSON array,
// keeping backend order.
func (c *Client) listStrings(ctx context.Context, op, path, key string) ([]string, error) {
	var raw json.RawMessage
	if err := c.get(ctx, op, path, nil, "", &raw); err != nil {
		return nil, err
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		var payload map[string][]string
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("%s: unexpected response shape: %w", op, err)
		}
		values = payload[key]
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
