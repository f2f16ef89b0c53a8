// Package preview serves the viewer's visible surface over HTTP so a document
// can be opened in a browser from the command line.
package preview

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/prefs"
	"github.com/thywilljoshua/pdf-insights/internal/viewer"
)

const DefaultCacheTTL = 5 * time.Minute

// Config controls the preview listener.
type Config struct {
	Addr     string
	CacheTTL time.Duration
}

// Server exposes the viewer and proxies document bytes from the backend.
type Server struct {
	echo   *echo.Echo
	viewer *viewer.Viewer
	docs   *documents.Client
	prefs  *prefs.Service
	pdfs   *cache.Cache
	log    *zap.Logger
	cfg    Config

	unsubscribe func()
}

func New(cfg Config, v *viewer.Viewer, docs *documents.Client, p *prefs.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	s := &Server{
		echo:   echo.New(),
		viewer: v,
		docs:   docs,
		prefs:  p,
		pdfs:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		log:    log.With(zap.String("module", "preview")),
		cfg:    cfg,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupMiddleware()
	s.registerRoutes()

	if p != nil {
		s.unsubscribe = p.Subscribe(func(t prefs.Theme) {
			v.SetTheme(context.Background(), t)
		})
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.POST("/select/:id", s.handleSelect)
	s.echo.POST("/fallback", s.handleFallback)
	s.echo.POST("/theme/toggle", s.handleThemeToggle)
	s.echo.GET("/api/pdf/:id/file", s.handlePDF)
}

// DocumentURL is the path the preview serves a document's bytes from.
func DocumentURL(d documents.Document) string {
	return documents.PDFPath(d.ID)
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("preview listening", zap.String("addr", s.cfg.Addr))
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.echo.Shutdown(shutdownCtx)
}

var placeholder = template.Must(template.New("placeholder").Parse(`<!DOCTYPE html>
<html class="{{.Theme}}">
<head><meta charset="utf-8"><title>PDF Insights Viewer</title></head>
<body>
<h3>Documents</h3>
{{if .Docs}}<ul>
{{range .Docs}}<li><form method="post" action="/select/{{.ID}}"><button>{{.OriginalFilename}}</button></form></li>
{{end}}</ul>
{{else}}<p>No PDFs uploaded yet.<br>Upload some PDFs to view them here.</p>
{{end}}<p>Viewer state: {{.State}}</p>
{{if eq .State "sdk-failed"}}<form method="post" action="/fallback?on=true"><button>Use local viewer</button></form>{{end}}
</body>
</html>
`))

func (s *Server) handleIndex(c echo.Context) error {
	var buf bytes.Buffer
	if surface := s.viewer.Surface(); surface != nil {
		if err := surface.WriteHTML(&buf); err == nil {
			return c.HTMLBlob(http.StatusOK, buf.Bytes())
		}
		buf.Reset()
	}
	err := placeholder.Execute(&buf, map[string]any{
		"Theme": string(s.theme()),
		"Docs":  s.viewer.Documents(),
		"State": s.viewer.State().String(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (s *Server) theme() prefs.Theme {
	if s.prefs == nil {
		return prefs.DefaultTheme
	}
	return s.prefs.Theme()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	State         string               `json:"state"`
	Selection     string               `json:"selection,omitempty"`
	Surface       string               `json:"surface,omitempty"`
	LocalFallback bool                 `json:"local_fallback"`
	Theme         string               `json:"theme"`
	Documents     []documents.Document `json:"documents"`
}

func (s *Server) handleState(c echo.Context) error {
	resp := stateResponse{
		State:         s.viewer.State().String(),
		LocalFallback: s.viewer.LocalFallbackEnabled(),
		Theme:         string(s.theme()),
		Documents:     s.viewer.Documents(),
	}
	if d, ok := s.viewer.Selection(); ok {
		resp.Selection = d.ID
	}
	if surface := s.viewer.Surface(); surface != nil {
		resp.Surface = surface.Kind().String()
	}
	return c.JSON(http.StatusOK, resp)
}

// idParam returns the document id path segment, unescaped.
func idParam(c echo.Context) string {
	raw := c.Param("id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func (s *Server) handleSelect(c echo.Context) error {
	if !s.viewer.SelectID(c.Request().Context(), idParam(c)) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown document")
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleFallback(c echo.Context) error {
	on := c.QueryParam("on") != "false"
	s.viewer.SetLocalFallback(c.Request().Context(), on)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleThemeToggle(c echo.Context) error {
	if s.prefs == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "preferences disabled")
	}
	if _, err := s.prefs.Toggle(); err != nil {
		s.log.Warn("theme not saved", zap.Error(err))
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// handlePDF proxies document bytes from the backend, keeping recent documents
// in memory so frame reloads do not refetch them.
func (s *Server) handlePDF(c echo.Context) error {
	id := idParam(c)
	if data, ok := s.pdfs.Get(id); ok {
		return c.Blob(http.StatusOK, "application/pdf", data.([]byte))
	}
	data, err := s.docs.FetchPDF(c.Request().Context(), id)
	if err != nil {
		s.log.Warn("pdf fetch failed", zap.String("doc_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "document unavailable")
	}
	s.pdfs.Set(id, data, cache.DefaultExpiration)
	return c.Blob(http.StatusOK, "application/pdf", data)
}
