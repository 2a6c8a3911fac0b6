package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lxidea/whut-portal/app/bookmarks"
	"github.com/lxidea/whut-portal/app/calendar"
	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/database"
	"github.com/lxidea/whut-portal/app/feed"
	"github.com/lxidea/whut-portal/app/portal"
	"github.com/lxidea/whut-portal/app/session"
)

func main() {
	_, err := cfg.Load(os.Args[1:], commands()...)
	if err != nil {
		// go-flags already printed parse and command errors.
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// portalApp wires the backend client and the client-side state every
// command works with.
type portalApp struct {
	client    *portal.Client
	db        *database.DB
	session   *session.Session
	bookmarks *bookmarks.Toggler
	calendar  *calendar.Panel
	extractor *feed.TextExtractor
}

func newPortalApp(ctx context.Context) (*portalApp, error) {
	conf := cfg.Get()
	setupLogging(conf.Debug)

	slog.Debug("Configuration loaded",
		"api_url", conf.APIURL,
		"state_path", conf.StatePath,
		"page_size", conf.PageSize,
		"version", conf.Version)

	client := portal.NewClient(conf.APIURL, portal.ClientOptions{
		Timeout:   conf.RequestTimeout,
		UserAgent: conf.UserAgent,
	})

	a := &portalApp{
		client:    client,
		calendar:  calendar.NewPanel(client, conf.CalendarInterval, conf.RequestTimeout),
		extractor: feed.NewTextExtractor(),
	}

	var store session.TokenStore
	if conf.NoPersist {
		store = session.NewMemoryTokenStore("")
	} else {
		db, err := database.Open(conf.StatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open client state: %w", err)
		}
		a.db = db
		store = database.NewTokenRepository(db)
	}

	a.session = session.New(client, store, conf.BootTimeout)
	if err := a.session.Init(ctx); err != nil {
		slog.Warn("Session start-up incomplete", "error", err)
	}
	a.bookmarks = bookmarks.NewToggler(client, a.session)

	return a, nil
}

func (a *portalApp) Close() {
	a.session.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Error("Failed to close client state", "error", err)
		}
	}
}
