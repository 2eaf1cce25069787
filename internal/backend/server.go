// Package backend is a reference implementation of the schedule backend
// contract the widget talks to:
//
//	GET    /get_schedule
//	POST   /add_schedule
//	DELETE /delete_schedule/:id
//	GET    /schedule?password=...   (legacy view, "title" instead of "name")
//	POST   /schedule                (legacy add, password in the body)
//	GET    /schedule/upcoming?days=N&password=...
//	GET    /schedule/:date?password=...
//	DELETE /schedule/:id?password=...
//
// Every /schedule route requires Options.AdminPassword.
package backend

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
)

// Options configures the router.
type Options struct {
	// AdminPassword guards the /schedule routes. Empty disables them.
	AdminPassword string
	CORS          bool
	// Location is used to compute "today" for /schedule/upcoming.
	Location *time.Location
	Now      func() time.Time
}

type handlers struct {
	store Store
	opts  Options
}

// NewRouter builds the gin engine serving the backend contract.
func NewRouter(store Store, opts Options) *gin.Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handlers{store: store, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	if opts.CORS {
		r.Use(cors.Default())
	}

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/get_schedule", h.list)
	r.POST("/add_schedule", h.add)
	r.DELETE("/delete_schedule/:id", h.remove)

	legacy := r.Group("/schedule", h.requirePassword)
	{
		legacy.GET("", h.legacyList)
		legacy.POST("", h.legacyAdd)
		legacy.GET("/upcoming", h.upcoming)
		legacy.GET("/:date", h.byDate)
		legacy.DELETE("/:id", h.remove)
	}
	return r
}

// Run serves the router on listen until ctx is cancelled.
func Run(ctx context.Context, listen string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting backend", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		appLog.Debug("backend request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start).String(),
		)
	}
}

func (h *handlers) list(c *gin.Context) {
	items, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) add(c *gin.Context) {
	var f model.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	h.create(c, f)
}

func (h *handlers) create(c *gin.Context, f model.Fields) {
	if missing := f.Missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: " + strings.Join(missing, ", ")})
		return
	}
	it, err := h.store.Add(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "add", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "item": it})
}

func (h *handlers) remove(c *gin.Context) {
	id := c.Param("id")
	err := h.store.Delete(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule item not found"})
		return
	}
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// requirePassword checks the admin password: the query value, or for a
// POST the "password" field of the JSON body.
func (h *handlers) requirePassword(c *gin.Context) {
	got := c.Query("password")
	if got == "" && c.Request.Method == http.MethodPost {
		var body struct {
			Password string `json:"password"`
		}
		// The body stays cached for the handler.
		_ = c.ShouldBindBodyWith(&body, binding.JSON)
		got = body.Password
	}
	if !h.checkPassword(got) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (h *handlers) legacyList(c *gin.Context) {
	items, err := h.store.List(c.Request.Context())
	if err != nil {
		h.fail(c, "legacy list", err)
		return
	}
	out := model.LegacyResponse{Items: make([]model.LegacyItem, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, model.LegacyItem{
			ID:          it.ID,
			Title:       it.Name,
			Date:        it.Date,
			Time:        it.Time,
			Description: it.Description,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) legacyAdd(c *gin.Context) {
	var li model.LegacyItem
	if err := c.ShouldBindBodyWith(&li, binding.JSON); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	f := li.Item().Fields()
	if missing := f.Missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields: " + strings.Join(missing, ", ")})
		return
	}
	if !validDate(f.Date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}
	h.create(c, f)
}

func (h *handlers) byDate(c *gin.Context) {
	date := c.Param("date")
	if !validDate(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return
	}
	items, err := h.store.Between(c.Request.Context(), date, date)
	if err != nil {
		h.fail(c, "schedule by date", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "schedule": items})
}

// notificationFlags mark which reminder horizons an upcoming item is
// already inside.
type notificationFlags struct {
	OneDay     bool `json:"one_day"`
	OneHour    bool `json:"one_hour"`
	FifteenMin bool `json:"fifteen_min"`
}

type upcomingItem struct {
	model.Item
	Notifications *notificationFlags `json:"notifications,omitempty"`
}

func (h *handlers) upcoming(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a non-negative integer"})
		return
	}
	now := h.opts.Now().In(h.opts.Location)
	from := now.Format(model.DateLayout)
	to := now.AddDate(0, 0, days).Format(model.DateLayout)

	items, err := h.store.Between(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "upcoming", err)
		return
	}
	out := make([]upcomingItem, 0, len(items))
	for _, it := range items {
		ui := upcomingItem{Item: it}
		if start, err := it.Start(h.opts.Location); err == nil {
			until := start.Sub(now)
			ui.Notifications = &notificationFlags{
				OneDay:     until <= 24*time.Hour,
				OneHour:    until <= time.Hour,
				FifteenMin: until <= 15*time.Minute,
			}
		} else {
			appLog.Debug("upcoming item has unparsable start", "id", it.ID, "date", it.Date, "time", it.Time)
		}
		out = append(out, ui)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "schedule": out})
}

func validDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

func (h *handlers) checkPassword(got string) bool {
	want := h.opts.AdminPassword
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (h *handlers) fail(c *gin.Context, op string, err error) {
	appLog.Error("backend "+op+" failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
