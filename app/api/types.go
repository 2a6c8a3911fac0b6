package api

import (
	"context"

	"github.com/lxidea/whut-portal/app/bookmarks"
	"github.com/lxidea/whut-portal/app/calendar"
	"github.com/lxidea/whut-portal/app/feed"
	"github.com/lxidea/whut-portal/app/listing"
	"github.com/lxidea/whut-portal/app/portal"
	"github.com/lxidea/whut-portal/app/session"
)

// NewsAPI is the read side of the backend the portal pages need.
type NewsAPI interface {
	listing.NewsLister
	GetNews(ctx context.Context, id int) (*portal.NewsItem, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListSources(ctx context.Context) ([]string, error)
	ListPublishers(ctx context.Context) ([]string, error)
	ListDepartments(ctx context.Context) ([]string, error)
}

var _ NewsAPI = (*portal.Client)(nil)

type GeneratorInterface interface {
	Run(channel feed.Channel, items []portal.NewsItem) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	news      NewsAPI
	session   *session.Session
	list      *listing.Controller
	bookmarks *bookmarks.Toggler
	calendar  *calendar.Panel
	generator GeneratorInterface
	extractor *feed.TextExtractor
}

// NewsItemView is a list or detail entry decorated for the current user.
type NewsItemView struct {
	portal.NewsItem
	Excerpt    string `json:"excerpt"`
	ImageOnly  bool   `json:"image_only"`
	Bookmarked bool   `json:"bookmarked"`
}

type PageLink struct {
	listing.Marker
	URL string `json:"url,omitempty"`
}

type PagerView struct {
	listing.Pager
	Prev  string     `json:"prev,omitempty"`
	Next  string     `json:"next,omitempty"`
	Pages []PageLink `json:"pages,omitempty"`
}

type ListResponse struct {
	Filter     listing.Filter `json:"filter"`
	URL        string         `json:"url"`
	Items      []NewsItemView `json:"items"`
	Total      int            `json:"total"`
	Pager      PagerView      `json:"pager"`
	Categories []string       `json:"categories"`
	Sources    []string       `json:"sources"`
	Error      string         `json:"error,omitempty"`
}

type DetailResponse struct {
	NewsItemView
	Text string `json:"text"`
}

type registerForm struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}
