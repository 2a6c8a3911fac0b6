package listing

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/lxidea/whut-portal/app/portal"
)

// URL query keys the list view is addressed by.
const (
	KeySearch   = "q"
	KeyCategory = "category"
	KeySource   = "source"
	KeyPage     = "page"
)

// Filter is the full addressable state of the news list. The zero value
// means "everything, first page".
type Filter struct {
	Search   string `json:"q,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	Page     int    `json:"page"`
}

// NormalizeSearch composes the text to NFC, folds full-width forms to their
// narrow counterparts and collapses whitespace.
func NormalizeSearch(s string) string {
	s = width.Fold.String(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

func (f Filter) page() int {
	if f.Page < 1 {
		return 1
	}
	return f.Page
}

// WithSearch and the other filter setters reset the page to 1.
func (f Filter) WithSearch(q string) Filter {
	f.Search = NormalizeSearch(q)
	f.Page = 1
	return f
}

func (f Filter) WithCategory(category string) Filter {
	f.Category = strings.TrimSpace(category)
	f.Page = 1
	return f
}

func (f Filter) WithSource(source string) Filter {
	f.Source = strings.TrimSpace(source)
	f.Page = 1
	return f
}

func (f Filter) WithPage(page int) Filter {
	if page < 1 {
		page = 1
	}
	f.Page = page
	return f
}

// FilterFromQuery reads a filter from URL query values. A missing or
// malformed page is page 1.
func FilterFromQuery(v url.Values) Filter {
	f := Filter{
		Search:   NormalizeSearch(v.Get(KeySearch)),
		Category: strings.TrimSpace(v.Get(KeyCategory)),
		Source:   strings.TrimSpace(v.Get(KeySource)),
		Page:     1,
	}
	if p, err := strconv.Atoi(v.Get(KeyPage)); err == nil && p > 1 {
		f.Page = p
	}
	return f
}

// Query is the inverse of FilterFromQuery. Empty fields and page 1 are
// omitted.
func (f Filter) Query() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set(KeySearch, f.Search)
	}
	if f.Category != "" {
		v.Set(KeyCategory, f.Category)
	}
	if f.Source != "" {
		v.Set(KeySource, f.Source)
	}
	if p := f.page(); p > 1 {
		v.Set(KeyPage, strconv.Itoa(p))
	}
	return v
}

func (f Filter) URL(path string) string {
	if q := f.Query().Encode(); q != "" {
		return path + "?" + q
	}
	return path
}

// NewsQuery maps the filter onto a backend list request.
func (f Filter) NewsQuery(pageSize int, featuredOnly bool) portal.NewsQuery {
	return portal.NewsQuery{
		Page:         f.page(),
		PageSize:     pageSize,
		Search:       f.Search,
		Category:     f.Category,
		SourceName:   f.Source,
		FeaturedOnly: featuredOnly,
	}
}

// IsFiltered reports whether any narrowing criterion is set.
func (f Filter) IsFiltered() bool {
	return f.Search != "" || f.Category != "" || f.Source != ""
}

// Defaults are filter values used when a URL does not name them. With a
// default category set, "all categories" is written as an empty category=
// so that it stays addressable.
type Defaults struct {
	Category string
}

// Apply returns v with the defaults filled in for keys v does not carry.
func (d Defaults) Apply(v url.Values) url.Values {
	if d.Category == "" || v.Has(KeyCategory) {
		return v
	}
	out := url.Values{}
	for k, vs := range v {
		out[k] = vs
	}
	out.Set(KeyCategory, d.Category)
	return out
}

// Query is Filter.Query plus an explicit empty category when f shows every
// category while a default is in effect.
func (d Defaults) Query(f Filter) url.Values {
	v := f.Query()
	if d.Category != "" && f.Category == "" {
		v.Set(KeyCategory, "")
	}
	return v
}

func (d Defaults) URL(f Filter, path string) string {
	if q := d.Query(f).Encode(); q != "" {
		return path + "?" + q
	}
	return path
}
