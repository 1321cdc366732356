package web

import (
	"errors"
	"net/http"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/events"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const sessionCookie = "session"

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Error("HTTP request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("HTTP request", fields...)
			return nil
		},
	})
}

// correlation copies the request ID into the request context so catalog
// events can be traced back to the request that caused them.
func correlation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(events.WithCorrelationID(req.Context(), id)))
			}
			return next(c)
		}
	}
}

// loadSession resolves the session cookie into an auth.Session on the
// request context. Invalid or stale cookies are cleared.
func (s *Server) loadSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			return next(c)
		}

		req := c.Request()
		session, err := s.auth.Authenticate(req.Context(), cookie.Value)
		switch {
		case err == nil:
			c.SetRequest(req.WithContext(auth.WithSession(req.Context(), session)))
		case errors.Is(err, auth.ErrUnauthenticated):
			clearSessionCookie(c)
		default:
			s.log.Error("Failed to resolve session", zap.Error(err))
		}
		return next(c)
	}
}

// requireSession redirects anonymous requests to the login form.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := auth.FromContext(c.Request().Context()); !ok {
			s.setFlash(c, "Please log in to access this page.")
			return c.Redirect(http.StatusSeeOther, "/login")
		}
		return next(c)
	}
}

func setSessionCookie(c echo.Context, session *auth.Session) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
