package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.Use(handler.syncSession)

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/", handler.GetNewsList)
	r.GET("/news/:id", handler.GetNews)
	r.GET("/categories", handler.GetCategories)
	r.GET("/sources", handler.GetSources)
	r.GET("/publishers", handler.GetPublishers)
	r.GET("/departments", handler.GetDepartments)
	r.GET("/feed.xml", handler.GetFeed)

	r.GET("/login", handler.GetLogin)
	auth := r.Group("/auth")
	{
		auth.POST("/login", handler.PostLogin)
		auth.POST("/register", handler.PostRegister)
		auth.POST("/logout", handler.PostLogout)
		auth.GET("/me", handler.GetMe)
	}

	r.GET("/bookmarks", handler.GetBookmarks)
	r.POST("/bookmarks/:id/toggle", handler.PostToggleBookmark)

	r.GET("/calendar", handler.GetCalendar)
	r.GET("/calendar/monthly", handler.GetMonthlyCalendar)

	r.GET("/health", handler.GetHealth)

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// syncSession picks up logins and logouts made by other processes sharing
// the state file before each request is served.
func (h *Handler) syncSession(c *gin.Context) {
	if err := h.session.Sync(c.Request.Context()); err != nil {
		slog.Warn("Session sync failed", "error", err)
	}
	c.Next()
}
