package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schedwidget/internal/config"
	"schedwidget/internal/ics"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/notify"
	"schedwidget/internal/render"
	"schedwidget/internal/store"
	"schedwidget/internal/widget"
)

// LegacyFetcher reads the password-protected alternate listing.
// store.Client satisfies it.
type LegacyFetcher interface {
	Legacy(ctx context.Context, password string) (model.LegacyResponse, error)
}

// Deps are the collaborators the widget host serves.
type Deps struct {
	Widget *widget.Widget
	// Web is the notification queue the page drains. Optional.
	Web    *notify.Web
	Legacy LegacyFetcher
	// Gatherer backs /metrics. nil falls back to the default registry.
	Gatherer prometheus.Gatherer
}

// Server hosts the widget page and its JSON API.
type Server struct {
	cfg  *config.Config
	deps Deps
	mux  *http.ServeMux
	now  func() time.Time
}

// embeddedStatic contains the widget page.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
		now:  time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Schedule", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/schedule", s.handleList)
	s.mux.HandleFunc("POST /api/schedule", s.handleAdd)
	s.mux.HandleFunc("DELETE /api/schedule/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/response", s.handleResponse)

	s.mux.HandleFunc("GET /api/popup", s.handlePopup)
	s.mux.HandleFunc("POST /api/popup/confirm", s.handlePopupConfirm)
	s.mux.HandleFunc("POST /api/popup/dismiss", s.handlePopupDismiss)

	s.mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	s.mux.HandleFunc("POST /api/notifications/permission", s.handlePermission)

	s.mux.HandleFunc("GET /api/legacy", s.handleLegacy)
	s.mux.HandleFunc("GET /schedule.ics", s.handleICS)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded widget page. /api/* never falls
// through to it.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// effectResponse is the JSON shape returned by every widget action.
type effectResponse struct {
	widget.Effect
	Error string `json:"error,omitempty"`
	// RefreshError reports a failed list fetch after a successful change.
	RefreshError string       `json:"refresh_error,omitempty"`
	Items        []model.Item `json:"items"`
	HTML  string       `json:"html"`
}

func (s *Server) writeEffect(w http.ResponseWriter, eff widget.Effect) {
	resp := effectResponse{Effect: eff, Items: s.deps.Widget.Snapshot()}
	html, err := render.ListHTML(resp.Items)
	if err != nil {
		appLog.Error("failed to render schedule list", err)
		writeError(w, http.StatusInternalServerError, "failed to render schedule list")
		return
	}
	resp.HTML = html

	if eff.RefreshErr != nil {
		resp.RefreshError = eff.RefreshErr.Error()
	}
	status := http.StatusOK
	if eff.Err != nil {
		resp.Error = eff.Err.Error()
		status = statusFor(eff.Err)
	}
	writeJSON(w, status, resp)
}

// statusFor maps a widget error to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, widget.ErrValidation) {
		return http.StatusUnprocessableEntity
	}
	var se *store.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.writeEffect(w, widget.Effect{Popup: s.deps.Widget.Popup().State()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.writeEffect(w, s.deps.Widget.Refresh(r.Context()))
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var f model.Fields
	if err := decodeFields(r, &f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeEffect(w, s.deps.Widget.SubmitForm(r.Context(), f))
}

// decodeFields accepts either a JSON body or an HTML form post using the
// page's input names.
func decodeFields(r *http.Request, f *model.Fields) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return json.NewDecoder(r.Body).Decode(f)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	f.Name = r.PostForm.Get("name")
	f.Date = r.PostForm.Get("date")
	f.Time = r.PostForm.Get("time")
	f.Description = r.PostForm.Get("description")
	return nil
}

// handleDelete takes the user's answer to the delete prompt from
// ?confirm=. Anything but a true value declines.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	confirmer := widget.ConfirmFunc(func(string) bool { return confirmed })
	s.writeEffect(w, s.deps.Widget.Delete(r.Context(), id, confirmer))
}

type responseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.writeEffect(w, s.deps.Widget.HandleResponse(req.Text))
}

func (s *Server) handlePopup(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Widget.Popup().State())
}

func (s *Server) handlePopupConfirm(w http.ResponseWriter, r *http.Request) {
	s.writeEffect(w, s.deps.Widget.ConfirmSuggestion(r.Context()))
}

func (s *Server) handlePopupDismiss(w http.ResponseWriter, _ *http.Request) {
	s.writeEffect(w, s.deps.Widget.DismissSuggestion())
}

type notificationsResponse struct {
	Permission    notify.Permission     `json:"permission"`
	Notifications []notify.Notification `json:"notifications"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Web == nil {
		writeJSON(w, http.StatusOK, notificationsResponse{
			Permission:    notify.PermissionDenied,
			Notifications: []notify.Notification{},
		})
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{
		Permission:    s.deps.Web.Permission(),
		Notifications: s.deps.Web.Drain(),
	})
}

type permissionRequest struct {
	Permission string `json:"permission"`
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.deps.Web == nil {
		writeError(w, http.StatusNotFound, "web notifications disabled")
		return
	}
	p := notify.ParsePermission(req.Permission)
	s.deps.Web.SetPermission(p)
	appLog.Debug("notification permission reported", "permission", string(p))
	writeJSON(w, http.StatusOK, map[string]notify.Permission{"permission": p})
}

// handleLegacy proxies the password-protected listing. The password comes
// from the X-Schedule-Password header, then the password form value, then
// the configured default.
func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	if s.deps.Legacy == nil {
		writeError(w, http.StatusNotFound, "legacy listing unavailable")
		return
	}
	password := r.Header.Get("X-Schedule-Password")
	if password == "" {
		password = r.FormValue("password")
	}
	if password == "" && s.cfg != nil {
		password = s.cfg.LegacyPassword
	}

	resp, err := s.deps.Legacy.Legacy(r.Context(), password)
	if err != nil {
		var se *store.StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusBadGateway, "failed to load legacy schedule")
		return
	}
	if resp.Items == nil {
		resp.Items = []model.LegacyItem{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	loc := time.Local
	if s.cfg != nil {
		loc = s.cfg.Location()
	}
	body, skipped := ics.Export(s.deps.Widget.Snapshot(), loc, s.now())
	if skipped > 0 {
		appLog.Debug("ics export skipped items", "count", skipped)
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="schedule.ics"`)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
