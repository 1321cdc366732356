package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/catalog"
	"github.com/bookstore/storefront/internal/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Options tune the HTTP surface.
type Options struct {
	// RequireLogin gates /add, /edit and /delete behind a session.
	RequireLogin   bool
	UploadDir      string
	MaxUploadBytes int64
	// FlashSecret signs flash cookies. Empty uses a random per-process key.
	FlashSecret    string
}

// Server is the storefront's HTTP front end.
type Server struct {
	echo     *echo.Echo
	auth     *auth.Manager
	catalog  *catalog.Service
	metrics  *metrics.Metrics
	opts     Options
	flashKey []byte
	log      *zap.Logger
}

// NewServer wires routes and middleware.
func NewServer(authManager *auth.Manager, catalogService *catalog.Service, m *metrics.Metrics, opts Options, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		auth:     authManager,
		catalog:  catalogService,
		metrics:  m,
		opts:     opts,
		flashKey: flashKey(opts.FlashSecret),
		log:      log,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(m.Middleware())
	e.Use(correlation())
	e.Use(s.loadSession)

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/", s.home)

	e.GET("/register", s.registerForm)
	e.POST("/register", s.register)
	e.GET("/login", s.loginForm)
	e.POST("/login", s.login)
	e.GET("/logout", s.logout, s.requireSession)

	e.GET("/store", s.store)
	e.POST("/store", s.store)

	var gate []echo.MiddlewareFunc
	if s.opts.RequireLogin {
		gate = append(gate, s.requireSession)
	}
	uploadLimit := middleware.BodyLimit(fmt.Sprintf("%dK", (s.opts.MaxUploadBytes+1<<20)/1024))

	e.GET("/add", s.addForm, gate...)
	e.POST("/add", s.add, append(gate, uploadLimit)...)
	e.GET("/edit", s.editForm, gate...)
	e.POST("/edit", s.edit, gate...)
	e.GET("/delete", s.delete, gate...)

	e.GET("/cart", s.cart)

	if s.opts.UploadDir != "" {
		e.Static("/images", s.opts.UploadDir)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("Starting HTTP server", zap.String("address", addr))
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
