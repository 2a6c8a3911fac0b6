package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lxidea/whut-portal/app/api"
	"github.com/lxidea/whut-portal/app/cfg"
	"github.com/lxidea/whut-portal/app/listing"
	"github.com/lxidea/whut-portal/app/portal"
	"github.com/lxidea/whut-portal/app/session"
)

func commands() []cfg.Command {
	return []cfg.Command{
		{Name: "serve", Short: "Serve the portal over HTTP", Data: &serveCommand{}},
		{Name: "news", Short: "List news", Long: "List one page of news, optionally filtered", Data: &newsCommand{}},
		{Name: "show", Short: "Show one news item", Data: &showCommand{}},
		{Name: "categories", Short: "List categories with their news count", Data: &categoriesCommand{}},
		{Name: "login", Short: "Log in and remember the session", Data: &loginCommand{}},
		{Name: "register", Short: "Create an account and log in", Data: &registerCommand{}},
		{Name: "logout", Short: "Forget the stored session", Data: &logoutCommand{}},
		{Name: "whoami", Short: "Show the logged in user", Data: &whoamiCommand{}},
		{Name: "bookmarks", Short: "List bookmarked news", Data: &bookmarksCommand{}},
		{Name: "bookmark", Short: "Toggle the bookmark of a news item", Data: &bookmarkCommand{}},
		{Name: "calendar", Short: "Show the academic calendar", Data: &calendarCommand{}},
	}
}

// withApp runs fn with a fully initialised portalApp and a context that is
// cancelled on SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *portalApp) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newPortalApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

type serveCommand struct{}

func (cmd *serveCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		conf := cfg.Get()

		slog.Info("Starting WHUT portal",
			"version", conf.Version,
			"port", conf.Port,
			"api_url", conf.APIURL,
			"page_size", conf.PageSize,
			"debug", conf.Debug)

		initial := listing.Filter{Category: conf.DefaultCategory}.WithPage(1)
		list := listing.NewController(a.client,
			listing.WithPageSize(conf.PageSize),
			listing.WithRadius(conf.PaginationRadius),
			listing.WithFeaturedOnly(conf.FeaturedOnly),
			listing.WithInitialFilter(initial),
		)

		stopWatch := a.bookmarks.Watch(ctx)
		defer stopWatch()

		a.calendar.Start()
		defer a.calendar.Stop()

		handler := api.NewHandler(a.client, a.session, list, a.bookmarks, a.calendar, a.extractor)
		router := api.NewServer(handler)

		server := &http.Server{
			Addr:         ":" + conf.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		serverErrChan := make(chan error, 1)
		go func() {
			slog.Info("Server listening", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrChan <- err
			}
		}()

		select {
		case err := <-serverErrChan:
			return fmt.Errorf("server failed to start: %w", err)
		case <-ctx.Done():
			slog.Info("Shutdown signal received")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
			return err
		}

		slog.Info("Server exited gracefully")
		return nil
	})
}

type newsCommand struct {
	Search   string `short:"q" long:"search" description:"Full-text search"`
	Category string `short:"c" long:"category" description:"Only this category"`
	Source   string `short:"s" long:"source" description:"Only this source"`
	Page     int    `short:"p" long:"page" default:"1" description:"Page number"`
	Featured bool   `long:"featured" description:"Only featured news"`
}

func (cmd *newsCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		conf := cfg.Get()

		filter := listing.Filter{}.
			WithCategory(cmp.Or(cmd.Category, conf.DefaultCategory)).
			WithSearch(cmd.Search).
			WithSource(cmd.Source).
			WithPage(cmd.Page)

		list := listing.NewController(a.client,
			listing.WithPageSize(conf.PageSize),
			listing.WithRadius(conf.PaginationRadius),
			listing.WithFeaturedOnly(conf.FeaturedOnly || cmd.Featured),
			listing.WithInitialFilter(filter),
		)
		if err := list.Reload(ctx); err != nil {
			return fmt.Errorf("failed to list news: %s", portal.ErrorMessage(err))
		}
		if a.session.Snapshot().Authenticated() {
			if err := a.bookmarks.Refresh(ctx); err != nil {
				slog.Debug("Bookmark refresh failed", "error", err)
			}
		}

		view := list.View()
		if len(view.Items) == 0 {
			fmt.Println("No news found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tSOURCE\tTITLE")
		for _, item := range view.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", item.ID, itemDate(item), item.SourceName, itemTitle(a, item))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\n%d items", view.Total)
		if view.Pager.Visible {
			fmt.Printf("  %s", pagerLine(view.Pager))
		}
		fmt.Println()
		return nil
	})
}

func itemDate(item portal.NewsItem) string {
	if item.PublishedAt != nil {
		return item.PublishedAt.Format("2006-01-02")
	}
	return item.CreatedAt.Format("2006-01-02")
}

func itemTitle(a *portalApp, item portal.NewsItem) string {
	title := item.Title
	if item.IsFeatured {
		title = "★ " + title
	}
	if a.bookmarks.IsBookmarked(item.ID) {
		title += " [saved]"
	}
	return title
}

func pagerLine(p listing.Pager) string {
	parts := make([]string, 0, len(p.Markers))
	for _, m := range p.Markers {
		switch {
		case m.Ellipsis:
			parts = append(parts, "…")
		case m.Current:
			parts = append(parts, fmt.Sprintf("[%d]", m.Page))
		default:
			parts = append(parts, fmt.Sprint(m.Page))
		}
	}
	return strings.Join(parts, " ")
}

type showCommand struct {
	Args struct {
		ID int `positional-arg-name:"id" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *showCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		item, err := a.client.GetNews(ctx, cmd.Args.ID)
		if err != nil {
			return fmt.Errorf("failed to load news %d: %s", cmd.Args.ID, portal.ErrorMessage(err))
		}

		fmt.Println(item.Title)
		fmt.Printf("%s · %s · %d views\n", item.SourceName, itemDate(*item), item.ViewCount)
		if item.Author != "" {
			fmt.Printf("Author: %s\n", item.Author)
		}
		if len(item.Tags) > 0 {
			fmt.Printf("Tags: %s\n", strings.Join(item.Tags, ", "))
		}
		fmt.Println()

		text, err := a.extractor.Run(item.Content)
		if err != nil {
			text = "No content available."
		}
		fmt.Println(text)

		for _, att := range item.Attachments {
			fmt.Printf("\nAttachment: %s <%s>", att.Name, att.URL)
		}
		if item.SourceURL != "" {
			fmt.Printf("\nOriginal: %s\n", item.SourceURL)
		}
		return nil
	})
}

type categoriesCommand struct{}

func (cmd *categoriesCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		categories, err := a.client.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %s", portal.ErrorMessage(err))
		}
		if len(categories) == 0 {
			fmt.Println("No categories.")
			return nil
		}

		stats, err := listing.CategoryStats(ctx, a.client, categories, cfg.Get().FeaturedOnly)
		if err != nil {
			return errors.New(portal.ErrorMessage(err))
		}
		return printCategoryStats(os.Stdout, stats)
	})
}

func printCategoryStats(w io.Writer, stats []listing.CategoryStat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tTOTAL\tLATEST")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Category, s.Total, cmp.Or(s.Latest, "-"))
	}
	return tw.Flush()
}

type loginCommand struct {
	Password string `long:"password" env:"PORTAL_PASSWORD" description:"Password (read from stdin when empty)"`
	Args     struct {
		Username string `positional-arg-name:"username" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *loginCommand) Execute(args []string) error {
	password, err := passwordOrStdin(cmd.Password, os.Stdin)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *portalApp) error {
		if err := a.session.Login(ctx, cmd.Args.Username, password); err != nil {
			return authError(err)
		}
		fmt.Printf("Logged in as %s\n", a.session.Snapshot().User.Username)
		return nil
	})
}

type registerCommand struct {
	Email    string `long:"email" required:"yes" description:"Email address"`
	FullName string `long:"full-name" description:"Display name"`
	Password string `long:"password" env:"PORTAL_PASSWORD" description:"Password (read from stdin when empty)"`
	Args     struct {
		Username string `positional-arg-name:"username" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *registerCommand) Execute(args []string) error {
	password, err := passwordOrStdin(cmd.Password, os.Stdin)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *portalApp) error {
		err := a.session.Register(ctx, portal.RegisterRequest{
			Username: cmd.Args.Username,
			Email:    cmd.Email,
			Password: password,
			FullName: cmd.FullName,
		})
		if err != nil {
			return authError(err)
		}
		fmt.Printf("Registered and logged in as %s\n", a.session.Snapshot().User.Username)
		return nil
	})
}

func authError(err error) error {
	if errors.Is(err, session.ErrAlreadyAuthenticated) {
		return errors.New("already logged in, run logout first")
	}
	return errors.New(portal.ErrorMessage(err))
}

// passwordOrStdin returns the flag value or the first line of r, spaces
// included.
func passwordOrStdin(flagValue string, r io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line := strings.TrimRight(scanner.Text(), "\r")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

type logoutCommand struct{}

func (cmd *logoutCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	})
}

type whoamiCommand struct{}

func (cmd *whoamiCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		snap := a.session.Snapshot()
		if !snap.Authenticated() {
			fmt.Println("Not logged in")
			return nil
		}
		u := snap.User
		fmt.Printf("%s  %s <%s>\n", u.Initial(), cmp.Or(u.FullName, u.Username), u.Email)
		return nil
	})
}

type bookmarksCommand struct{}

func (cmd *bookmarksCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		if !a.session.Snapshot().Authenticated() {
			return errors.New("must log in to see bookmarks")
		}
		if err := a.bookmarks.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to load bookmarks: %s", portal.ErrorMessage(err))
		}

		items := a.bookmarks.Items()
		if len(items) == 0 {
			fmt.Println("No bookmarks yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATE\tTITLE")
		for _, item := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\n", item.ID, itemDate(item), item.Title)
		}
		return w.Flush()
	})
}

type bookmarkCommand struct {
	Args struct {
		ID int `positional-arg-name:"id" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *bookmarkCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		if err := a.bookmarks.Refresh(ctx); err != nil && !portal.IsUnauthorized(err) {
			slog.Debug("Bookmark refresh failed", "error", err)
		}

		saved, err := a.bookmarks.Toggle(ctx, cmd.Args.ID)
		if err != nil {
			return errors.New(portal.ErrorMessage(err))
		}
		if saved {
			fmt.Printf("Bookmarked %d\n", cmd.Args.ID)
		} else {
			fmt.Printf("Removed bookmark %d\n", cmd.Args.ID)
		}
		return nil
	})
}

type calendarCommand struct {
	Year  int `long:"year" description:"Show the monthly grid of this year"`
	Month int `long:"month" description:"Show the monthly grid of this month (1-12)"`
}

func (cmd *calendarCommand) Execute(args []string) error {
	return withApp(func(ctx context.Context, a *portalApp) error {
		if cmd.Year != 0 || cmd.Month != 0 {
			monthly, err := a.calendar.Monthly(ctx, cmd.Year, cmd.Month)
			if err != nil {
				return errors.New(portal.ErrorMessage(err))
			}
			printMonthly(os.Stdout, monthly)
			return nil
		}

		if err := a.calendar.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to load calendar: %s", portal.ErrorMessage(err))
		}
		summary, _ := a.calendar.Summary()
		printSummary(os.Stdout, summary)
		return nil
	})
}

func printSummary(w io.Writer, s *portal.CalendarSummary) {
	if s.CurrentSemester == nil {
		fmt.Fprintln(w, "No current semester.")
		return
	}
	fmt.Fprintf(w, "%s (%s to %s)\n", s.CurrentSemester.Name, s.CurrentSemester.StartDate, s.CurrentSemester.EndDate)
	if s.CurrentWeek != nil {
		fmt.Fprintf(w, "Week %d\n", s.CurrentWeek.WeekNumber)
	}
	for _, wk := range s.UpcomingHolidays {
		fmt.Fprintf(w, "Holiday: week %d from %s %s\n", wk.WeekNumber, wk.StartDate, wk.Notes)
	}
	for _, wk := range s.UpcomingExams {
		fmt.Fprintf(w, "Exams: week %d from %s\n", wk.WeekNumber, wk.StartDate)
	}
}

func printMonthly(w io.Writer, m *portal.MonthlyCalendar) {
	fmt.Fprintf(w, "%s %d\n", m.MonthName, m.Year)
	fmt.Fprintln(w, "Wk  Mo  Tu  We  Th  Fr  Sa  Su")

	var line strings.Builder
	flush := func() {
		if line.Len() > 0 {
			fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
			line.Reset()
		}
	}
	for i, d := range m.Days {
		if d.Weekday == 0 || i == 0 {
			flush()
			week := "  "
			if d.WeekInfo != nil {
				week = fmt.Sprintf("%2d", d.WeekInfo.WeekNumber)
			}
			line.WriteString(week + "  ")
			line.WriteString(strings.Repeat("    ", d.Weekday))
		}
		mark := " "
		switch {
		case d.IsToday:
			mark = "*"
		case d.WeekInfo != nil && d.WeekInfo.IsHoliday:
			mark = "h"
		case d.WeekInfo != nil && d.WeekInfo.IsExamWeek:
			mark = "e"
		}
		fmt.Fprintf(&line, "%2d%s ", d.Day, mark)
	}
	flush()
}
