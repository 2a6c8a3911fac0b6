package listing

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"github.com/lxidea/whut-portal/app/portal"
)

const DefaultPageSize = 12

// ErrSuperseded is returned by a fetch whose result was discarded because
// a newer filter change started after it.
var ErrSuperseded = errors.New("list request superseded by a newer one")

type NewsLister interface {
	ListNews(ctx context.Context, q portal.NewsQuery) (*portal.NewsList, error)
}

var _ NewsLister = (*portal.Client)(nil)

// View is what the list page renders. Err is a non-blocking indicator: the
// previous Items stay in place when a fetch fails.
type View struct {
	Filter   Filter            `json:"filter"`
	Items    []portal.NewsItem `json:"items"`
	Total    int               `json:"total"`
	PageSize int               `json:"page_size"`
	Loading  bool              `json:"loading"`
	Loaded   bool              `json:"loaded"`
	Err      error             `json:"-"`
	Pager    Pager             `json:"pager"`
}

type Option func(*Controller)

func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithRadius(r int) Option {
	return func(c *Controller) {
		if r >= 0 {
			c.radius = r
		}
	}
}

func WithFeaturedOnly(featured bool) Option {
	return func(c *Controller) { c.featuredOnly = featured }
}

// WithInitialFilter sets the filter used before the first navigation.
func WithInitialFilter(f Filter) Option {
	return func(c *Controller) { c.filter = f.WithPage(f.Page) }
}

// OnChange registers fn to receive every new view, including the loading
// state at the start of a fetch.
func OnChange(fn func(View)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller owns the list filter and the last fetched page. Only the
// result of the most recent fetch is ever applied.
type Controller struct {
	lister       NewsLister
	pageSize     int
	radius       int
	featuredOnly bool
	onChange     func(View)

	mu      sync.Mutex
	filter  Filter
	items   []portal.NewsItem
	total   int
	loading bool
	loaded  bool
	err     error
	seq     uint64
}

func NewController(lister NewsLister, opts ...Option) *Controller {
	c := &Controller{
		lister:   lister,
		pageSize: DefaultPageSize,
		radius:   DefaultRadius,
		filter:   Filter{Page: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) SetSearch(ctx context.Context, q string) error {
	_, err := c.apply(ctx, func(f Filter) Filter { return f.WithSearch(q) })
	return err
}

func (c *Controller) SetCategory(ctx context.Context, category string) error {
	_, err := c.apply(ctx, func(f Filter) Filter { return f.WithCategory(category) })
	return err
}

func (c *Controller) SetSource(ctx context.Context, source string) error {
	_, err := c.apply(ctx, func(f Filter) Filter { return f.WithSource(source) })
	return err
}

func (c *Controller) SetPage(ctx context.Context, page int) error {
	_, err := c.apply(ctx, func(f Filter) Filter { return f.WithPage(page) })
	return err
}

// Navigate replaces the whole filter with the one encoded in v, as when the
// user follows a link or goes back in history. It returns the view its own
// fetch produced, which later navigations do not alter. A superseded
// navigation returns ErrSuperseded and a zero View.
func (c *Controller) Navigate(ctx context.Context, v url.Values) (View, error) {
	next := FilterFromQuery(v)
	return c.apply(ctx, func(Filter) Filter { return next })
}

func (c *Controller) Reload(ctx context.Context) error {
	_, err := c.apply(ctx, func(f Filter) Filter { return f })
	return err
}

func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	return View{
		Filter:   c.filter,
		Items:    slices.Clone(c.items),
		Total:    c.total,
		PageSize: c.pageSize,
		Loading:  c.loading,
		Loaded:   c.loaded,
		Err:      c.err,
		Pager:    NewPager(c.filter.page(), c.total, c.pageSize, c.radius),
	}
}

func (c *Controller) apply(ctx context.Context, change func(Filter) Filter) (View, error) {
	c.mu.Lock()
	c.filter = change(c.filter)
	c.seq++
	seq := c.seq
	filter := c.filter
	c.loading = true
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)

	list, err := c.lister.ListNews(ctx, filter.NewsQuery(c.pageSize, c.featuredOnly))

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		slog.Debug("Discarding stale list result", "seq", seq, "filter", filter)
		return View{}, ErrSuperseded
	}
	c.loading = false
	if err != nil {
		c.err = err
	} else {
		c.items = list.Items
		c.total = list.Total
		c.loaded = true
		c.err = nil
	}
	view = c.viewLocked()
	c.mu.Unlock()
	c.notify(view)

	if err != nil {
		slog.Warn("Failed to load news list", "filter", filter, "error", err)
	}
	return view, err
}

func (c *Controller) notify(v View) {
	if c.onChange != nil {
		c.onChange(v)
	}
}
