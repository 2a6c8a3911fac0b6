package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/lxidea/whut-portal/app/bookmarks"
	"github.com/lxidea/whut-portal/app/calendar"
	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/feed"
	"github.com/lxidea/whut-portal/app/listing"
	"github.com/lxidea/whut-portal/app/portal"
	"github.com/lxidea/whut-portal/app/session"
)

const (
	excerptLength = 120
	siteTitle     = "武汉理工大学新闻"
)

func NewHandler(news NewsAPI, sess *session.Session, list *listing.Controller,
	toggler *bookmarks.Toggler, panel *calendar.Panel, extractor *feed.TextExtractor) *Handler {
	return &Handler{
		news:      news,
		session:   sess,
		list:      list,
		bookmarks: toggler,
		calendar:  panel,
		generator: feed.NewGenerator(extractor),
		extractor: extractor,
	}
}

func (h *Handler) GetNewsList(c *gin.Context) {
	defaults := listDefaults()
	query := defaults.Apply(c.Request.URL.Query())

	var (
		view                listing.View
		categories, sources []string
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		view, err = h.list.Navigate(ctx, query)
		return err
	})
	g.Go(func() error {
		categories = h.sidebar(ctx, "list_categories", h.news.ListCategories)
		return nil
	})
	g.Go(func() error {
		sources = h.sidebar(ctx, "list_sources", h.news.ListSources)
		return nil
	})
	err := g.Wait()

	if errors.Is(err, listing.ErrSuperseded) {
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer request"})
		return
	}

	resp := ListResponse{
		Filter:     view.Filter,
		URL:        defaults.URL(view.Filter, "/"),
		Items:      h.decorate(view.Items),
		Total:      view.Total,
		Pager:      pagerView(view, defaults),
		Categories: categories,
		Sources:    sources,
	}

	if err != nil {
		// The previous page stays visible with an error indicator.
		slog.Error("Backend error", "operation", "list_news", "filter", view.Filter, "error", err)
		resp.Error = portal.ErrorMessage(err)
		if !view.Loaded {
			c.JSON(statusFor(err), resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// sidebar loads one filter list; failures degrade to an empty list.
func (h *Handler) sidebar(ctx context.Context, op string, load func(context.Context) ([]string, error)) []string {
	values, err := load(ctx)
	if err != nil {
		slog.Warn("Backend error", "operation", op, "error", err)
		return []string{}
	}
	return values
}

func (h *Handler) decorate(items []portal.NewsItem) []NewsItemView {
	views := make([]NewsItemView, 0, len(items))
	for _, item := range items {
		views = append(views, h.decorateOne(item))
	}
	return views
}

func (h *Handler) decorateOne(item portal.NewsItem) NewsItemView {
	return NewsItemView{
		NewsItem:   item,
		Excerpt:    h.extractor.Summary(item, excerptLength),
		ImageOnly:  item.IsImageOnly(),
		Bookmarked: h.bookmarks.IsBookmarked(item.ID),
	}
}

// listDefaults are the list filter values a bare URL stands for.
func listDefaults() listing.Defaults {
	return listing.Defaults{Category: cfg.Get().DefaultCategory}
}

func pagerView(view listing.View, defaults listing.Defaults) PagerView {
	p := PagerView{Pager: view.Pager}
	if !p.Visible {
		return p
	}

	f := view.Filter
	if p.HasPrev {
		p.Prev = defaults.URL(f.WithPage(p.Current-1), "/")
	}
	if p.HasNext {
		p.Next = defaults.URL(f.WithPage(p.Current+1), "/")
	}
	for _, m := range p.Markers {
		link := PageLink{Marker: m}
		if !m.Ellipsis {
			link.URL = defaults.URL(f.WithPage(m.Page), "/")
		}
		p.Pages = append(p.Pages, link)
	}
	return p
}

func (h *Handler) GetNews(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid news id"})
		return
	}

	item, err := h.news.GetNews(c.Request.Context(), id)
	if err != nil {
		slog.Error("Backend error", "operation", "get_news", "id", id, "error", err)
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
		return
	}

	text, err := h.extractor.Run(item.Content)
	if err != nil {
		slog.Debug("No readable text", "id", id, "error", err)
	}

	c.JSON(http.StatusOK, DetailResponse{NewsItemView: h.decorateOne(*item), Text: text})
}

// GetCategories lists category names, or with stats=1 the category
// overview with per-category totals and latest titles.
func (h *Handler) GetCategories(c *gin.Context) {
	if withStats, _ := strconv.ParseBool(c.Query("stats")); !withStats {
		h.stringList(c, "list_categories", h.news.ListCategories)
		return
	}

	ctx := c.Request.Context()
	categories, err := h.news.ListCategories(ctx)
	if err != nil {
		slog.Error("Backend error", "operation", "list_categories", "error", err)
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
		return
	}

	stats, err := listing.CategoryStats(ctx, h.news, categories, cfg.Get().FeaturedOnly)
	if err != nil {
		slog.Error("Backend error", "operation", "category_stats", "error", err)
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetSources(c *gin.Context) {
	h.stringList(c, "list_sources", h.news.ListSources)
}

func (h *Handler) GetPublishers(c *gin.Context) {
	h.stringList(c, "list_publishers", h.news.ListPublishers)
}

func (h *Handler) GetDepartments(c *gin.Context) {
	h.stringList(c, "list_departments", h.news.ListDepartments)
}

func (h *Handler) stringList(c *gin.Context, op string, load func(context.Context) ([]string, error)) {
	values, err := load(c.Request.Context())
	if err != nil {
		slog.Error("Backend error", "operation", op, "error", err)
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, values)
}

func (h *Handler) GetFeed(c *gin.Context) {
	filter := listing.FilterFromQuery(c.Request.URL.Query())
	conf := cfg.Get()

	list, err := h.news.ListNews(c.Request.Context(), filter.NewsQuery(conf.PageSize, conf.FeaturedOnly))
	if err != nil {
		slog.Error("Backend error", "operation", "list_news", "filter", filter, "error", err)
		c.Status(statusFor(err))
		return
	}

	items := feed.NewFilterer(conf.FeedFilters).Run(list.Items)

	rss, err := h.generator.Run(channelFor(filter), items)
	if err != nil {
		slog.Error("RSS generation error", "filter", filter, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Total", strconv.Itoa(list.Total))

	c.String(http.StatusOK, rss)
}

func channelFor(f listing.Filter) feed.Channel {
	parts := []string{siteTitle}
	for _, p := range []string{f.Category, f.Source} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if f.Search != "" {
		parts = append(parts, "搜索: "+f.Search)
	}

	self := "/feed.xml"
	if q := f.Query().Encode(); q != "" {
		self += "?" + q
	}

	return feed.Channel{
		Title:       strings.Join(parts, " - "),
		Description: "武汉理工大学校园新闻与通知公告",
		Path:        listDefaults().URL(f, "/"),
		SelfPath:    self,
	}
}

func (h *Handler) PostLogin(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if err := h.session.Login(c.Request.Context(), username, password); err != nil {
		h.authFailure(c, "login", err)
		return
	}

	c.JSON(http.StatusOK, h.session.Snapshot().User)
}

func (h *Handler) PostRegister(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.session.Register(c.Request.Context(), portal.RegisterRequest{
		Username: strings.TrimSpace(form.Username),
		Email:    strings.TrimSpace(form.Email),
		Password: form.Password,
		FullName: strings.TrimSpace(form.FullName),
	})
	if err != nil {
		h.authFailure(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, h.session.Snapshot().User)
}

func (h *Handler) authFailure(c *gin.Context, op string, err error) {
	slog.Warn("Authentication failed", "operation", op, "error", err)

	if errors.Is(err, session.ErrAlreadyAuthenticated) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
}

func (h *Handler) PostLogout(c *gin.Context) {
	if err := h.session.Logout(c.Request.Context()); err != nil {
		slog.Error("Logout failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetMe(c *gin.Context) {
	snap := h.session.Snapshot()
	if !snap.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in", "state": snap.State.String()})
		return
	}
	c.JSON(http.StatusOK, snap.User)
}

func (h *Handler) GetLogin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "POST /auth/login with form fields username and password",
		"state":   h.session.State().String(),
	})
}

func (h *Handler) GetBookmarks(c *gin.Context) {
	if !h.session.Snapshot().Authenticated() {
		c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape("/bookmarks"))
		return
	}

	if err := h.bookmarks.Refresh(c.Request.Context()); err != nil {
		slog.Error("Backend error", "operation", "list_bookmarks", "error", err)
		if !h.session.Snapshot().Authenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired, please log in again"})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": h.decorate(h.bookmarks.Items())})
}

func (h *Handler) PostToggleBookmark(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid news id"})
		return
	}

	on, err := h.bookmarks.Toggle(c.Request.Context(), id)
	switch {
	case errors.Is(err, bookmarks.ErrLoginRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "must log in"})
		return
	case errors.Is(err, bookmarks.ErrPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		slog.Error("Backend error", "operation", "toggle_bookmark", "id", id, "error", err)
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err), "news_id": id, "bookmarked": on})
		return
	}

	c.JSON(http.StatusOK, gin.H{"news_id": id, "bookmarked": on})
}

func (h *Handler) GetCalendar(c *gin.Context) {
	summary, fetchedAt := h.calendar.Summary()
	if summary == nil {
		if err := h.calendar.Refresh(c.Request.Context()); err != nil {
			slog.Error("Backend error", "operation", "calendar_summary", "error", err)
			c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
			return
		}
		summary, fetchedAt = h.calendar.Summary()
	}

	resp := gin.H{
		"summary":    summary,
		"fetched_at": fetchedAt.Format(time.RFC3339),
	}
	if err := h.calendar.Err(); err != nil {
		resp["stale"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMonthlyCalendar(c *gin.Context) {
	now := time.Now().In(time.Local)
	year, month := now.Year(), int(now.Month())

	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = n
	}
	if v := c.Query("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return
		}
		month = n
	}

	monthly, err := h.calendar.Monthly(c.Request.Context(), year, month)
	if err != nil {
		slog.Error("Backend error", "operation", "monthly_calendar", "year", year, "month", month, "error", err)
		c.JSON(statusFor(err), gin.H{"error": portal.ErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, monthly)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
		"session":   h.session.State().String(),
	}

	if _, fetchedAt := h.calendar.Summary(); !fetchedAt.IsZero() {
		health["calendar_fetched_at"] = fetchedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, health)
}

// statusFor maps a gateway error onto the status the portal answers with.
// Client errors keep the backend status; anything else is a bad gateway.
func statusFor(err error) int {
	var statusErr *portal.StatusError
	switch {
	case errors.Is(err, portal.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 {
			return statusErr.StatusCode
		}
		return http.StatusBadGateway
	case portal.IsNetwork(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
