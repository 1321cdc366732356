package web

import (
	"net/http"
	"path/filepath"

	"github.com/bookstore/storefront/internal/auth"
	"github.com/bookstore/storefront/internal/catalog"
	"github.com/bookstore/storefront/internal/db"
	"github.com/bookstore/storefront/internal/validation"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// render writes a JSON view document. Every view carries the login state and
// any pending flashes.
func (s *Server) render(c echo.Context, code int, view string, data echo.Map) error {
	payload := echo.Map{
		"view":      view,
		"logged_in": false,
		"flashes":   s.popFlashes(c),
	}
	if session, ok := auth.FromContext(c.Request().Context()); ok {
		payload["logged_in"] = true
		payload["user"] = session.Name
	}
	for k, v := range data {
		payload[k] = v
	}
	return c.JSON(code, payload)
}

func bookView(book *db.Book) echo.Map {
	return echo.Map{
		"id":           book.ID,
		"title":        book.Title,
		"author":       book.Author,
		"date":         book.Date.Format(catalog.DateLayout),
		"description":  book.Description,
		"image_path":   book.ImagePath,
		"image_url":    "/images/" + filepath.Base(book.ImagePath),
		"trade_price":  book.TradePrice,
		"retail_price": book.RetailPrice,
		"quantity":     book.Quantity,
	}
}

func fieldErrors(err error) []validation.FieldError {
	if verr, ok := validation.As(err); ok {
		return verr.Fields
	}
	return nil
}

func (s *Server) internalError(c echo.Context, err error) error {
	s.log.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	return s.render(c, http.StatusInternalServerError, "error", echo.Map{
		"error": "internal server error",
	})
}
