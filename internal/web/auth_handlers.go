package web

import (
	"errors"
	"net/http"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/validation"
	"github.com/labstack/echo/v4"
)

// Flash texts shown after a failed auth attempt.
const (
	flashDuplicateEmail  = "You've already signed up with that email, log in instead!"
	flashUnknownEmail    = "That email does not exist, please try again."
	flashInvalidPassword = "Password incorrect, please try again."
)

type credentials struct {
	Email    string
	Password string
	Name     string
}

func bindCredentials(c echo.Context) credentials {
	return credentials{
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		Name:     c.FormValue("name"),
	}
}

func (s *Server) home(c echo.Context) error {
	return s.render(c, http.StatusOK, "home", nil)
}

func (s *Server) registerForm(c echo.Context) error {
	return s.render(c, http.StatusOK, "register", nil)
}

func (s *Server) register(c echo.Context) error {
	form := bindCredentials(c)

	session, err := s.auth.Register(c.Request().Context(), form.Email, form.Password, form.Name)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			s.metrics.AuthEvent("register", "duplicate_email")
			s.setFlash(c, flashDuplicateEmail)
			return c.Redirect(http.StatusSeeOther, "/login")
		case errors.As(err, &verr):
			s.metrics.AuthEvent("register", "invalid")
			return s.render(c, http.StatusUnprocessableEntity, "register", echo.Map{"errors": verr.Fields})
		default:
			s.metrics.AuthEvent("register", "error")
			return s.internalError(c, err)
		}
	}

	s.metrics.AuthEvent("register", "ok")
	setSessionCookie(c, session)
	return c.Redirect(http.StatusSeeOther, "/store")
}

func (s *Server) loginForm(c echo.Context) error {
	return s.render(c, http.StatusOK, "login", nil)
}

func (s *Server) login(c echo.Context) error {
	form := bindCredentials(c)

	session, err := s.auth.Login(c.Request().Context(), form.Email, form.Password)
	if err != nil {
		var verr *validation.Error
		switch {
		case errors.Is(err, auth.ErrUnknownEmail):
			s.metrics.AuthEvent("login", "unknown_email")
			s.setFlash(c, flashUnknownEmail)
			return c.Redirect(http.StatusSeeOther, "/login")
		case errors.Is(err, auth.ErrInvalidPassword):
			s.metrics.AuthEvent("login", "invalid_password")
			s.setFlash(c, flashInvalidPassword)
			return c.Redirect(http.StatusSeeOther, "/login")
		case errors.As(err, &verr):
			s.metrics.AuthEvent("login", "invalid")
			return s.render(c, http.StatusUnprocessableEntity, "login", echo.Map{"errors": verr.Fields})
		default:
			s.metrics.AuthEvent("login", "error")
			return s.internalError(c, err)
		}
	}

	s.metrics.AuthEvent("login", "ok")
	setSessionCookie(c, session)
	return c.Redirect(http.StatusSeeOther, "/store")
}

func (s *Server) logout(c echo.Context) error {
	ctx := c.Request().Context()
	session, _ := auth.FromContext(ctx)

	if err := s.auth.Logout(ctx, session); err != nil && !errors.Is(err, auth.ErrUnauthenticated) {
		s.metrics.AuthEvent("logout", "error")
		return s.internalError(c, err)
	}

	s.metrics.AuthEvent("logout", "ok")
	clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/")
}
