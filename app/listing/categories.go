package listing

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// statsConcurrency bounds the per-category requests of CategoryStats.
const statsConcurrency = 4

// CategoryStat is one entry of the category overview.
type CategoryStat struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Latest   string `json:"latest,omitempty"`
	URL      string `json:"url"`
}

// CategoryStats counts the news of every category with one single-item
// list request each, keeping the newest title. The result follows the
// order of categories; any failed request fails the whole overview.
func CategoryStats(ctx context.Context, lister NewsLister, categories []string, featuredOnly bool) ([]CategoryStat, error) {
	stats := make([]CategoryStat, len(categories))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for i, category := range categories {
		g.Go(func() error {
			f := Filter{}.WithCategory(category)
			list, err := lister.ListNews(ctx, f.NewsQuery(1, featuredOnly))
			if err != nil {
				return fmt.Errorf("failed to count category %s: %w", category, err)
			}

			stat := CategoryStat{Category: category, Total: list.Total, URL: f.URL("/")}
			if len(list.Items) > 0 {
				stat.Latest = list.Items[0].Title
			}
			stats[i] = stat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return stats, nil
}
