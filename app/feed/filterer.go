package feed

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/listing"
	"github.com/lxidea/whut-portal/app/portal"
)

type Filterer struct {
	filters []cfg.FeedFilter
}

func NewFilterer(filters []cfg.FeedFilter) *Filterer {
	return &Filterer{filters: filters}
}

// Run returns the items that pass every filter, in order.
func (f *Filterer) Run(items []portal.NewsItem) []portal.NewsItem {
	if len(f.filters) == 0 {
		return items
	}

	kept := make([]portal.NewsItem, 0, len(items))
	for _, item := range items {
		if excluded, reason := f.Excluded(item); excluded {
			slog.Debug("Feed item filtered", "id", item.ID, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	return kept
}

// Excluded reports whether item fails a filter and which one.
func (f *Filterer) Excluded(item portal.NewsItem) (bool, string) {
	for _, filter := range f.filters {
		value := f.getFieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

// matchesFilter folds case and character width on both sides, so "ＡＢＣ"
// in a filter matches "abc" in an item.
func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(fold(value), fold(pattern))
}

func fold(s string) string {
	return strings.ToLower(listing.NormalizeSearch(s))
}

func (f *Filterer) getFieldValue(item portal.NewsItem, field string) string {
	switch field {
	case "title":
		return item.Title
	case "summary":
		return item.DisplaySummary()
	case "content":
		return item.Content
	case "author":
		return item.Author
	case "source":
		return item.SourceName
	case "category":
		return item.Category
	case "tags":
		return strings.Join(item.Tags, " ")
	default:
		return ""
	}
}
