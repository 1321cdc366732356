package web

import (
	"errors"
	"net/http"

	"github.com/bookstore/storefront/internal/catalog"
	"github.com/bookstore/storefront/internal/validation"
	"github.com/labstack/echo/v4"
)

func (s *Server) store(c echo.Context) error {
	books, err := s.catalog.List(c.Request().Context())
	if err != nil {
		return s.internalError(c, err)
	}

	views := make([]echo.Map, len(books))
	for i, book := range books {
		views[i] = bookView(book)
	}
	return s.render(c, http.StatusOK, "store", echo.Map{"books": views})
}

func (s *Server) addForm(c echo.Context) error {
	return s.render(c, http.StatusOK, "add", echo.Map{"fields": addFormFields})
}

var addFormFields = []string{"title", "author", "date", "description", "img", "trade_price", "retail_price", "quantity"}

func (s *Server) add(c echo.Context) error {
	in := catalog.BookInput{
		Title:       c.FormValue("title"),
		Author:      c.FormValue("author"),
		Date:        c.FormValue("date"),
		Description: c.FormValue("description"),
		TradePrice:  c.FormValue("trade_price"),
		RetailPrice: c.FormValue("retail_price"),
		Quantity:    c.FormValue("quantity"),
	}

	var img *catalog.Image
	if header, err := c.FormFile("img"); err == nil {
		f, err := header.Open()
		if err != nil {
			return s.internalError(c, err)
		}
		defer f.Close()
		img = &catalog.Image{Filename: header.Filename, Content: f}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		var v validation.Errors
		v.Add("image", "could not be read")
		return s.catalogError(c, "add", "add", v.Err(), echo.Map{"fields": addFormFields})
	}

	if _, err := s.catalog.Add(c.Request().Context(), in, img); err != nil {
		return s.catalogError(c, "add", "add", err, echo.Map{"fields": addFormFields})
	}

	s.metrics.CatalogOp("add", "ok")
	return c.Redirect(http.StatusSeeOther, "/store")
}

func (s *Server) editForm(c echo.Context) error {
	id, err := catalog.ParseID(c.QueryParam("id"))
	if err != nil {
		return s.catalogError(c, "", "edit", err, nil)
	}

	book, err := s.catalog.Get(c.Request().Context(), id)
	if err != nil {
		return s.catalogError(c, "", "edit", err, nil)
	}
	return s.render(c, http.StatusOK, "edit", echo.Map{"book": bookView(book)})
}

func (s *Server) edit(c echo.Context) error {
	rawID := c.FormValue("id")
	if rawID == "" {
		rawID = c.QueryParam("id")
	}
	id, err := catalog.ParseID(rawID)
	if err != nil {
		return s.catalogError(c, "edit", "edit", err, nil)
	}

	quantity, err := catalog.ParseQuantity(c.FormValue("quantity"))
	if err != nil {
		var v validation.Errors
		v.Add("quantity", "must be a non-negative whole number")
		data := echo.Map{}
		if book, getErr := s.catalog.Get(c.Request().Context(), id); getErr == nil {
			data["book"] = bookView(book)
		}
		return s.catalogError(c, "edit", "edit", v.Err(), data)
	}

	if _, err := s.catalog.UpdateQuantity(c.Request().Context(), id, quantity); err != nil {
		return s.catalogError(c, "edit", "edit", err, nil)
	}

	s.metrics.CatalogOp("edit", "ok")
	return c.Redirect(http.StatusSeeOther, "/store")
}

func (s *Server) delete(c echo.Context) error {
	id, err := catalog.ParseID(c.QueryParam("id"))
	if err != nil {
		return s.catalogError(c, "delete", "store", err, nil)
	}

	if err := s.catalog.Delete(c.Request().Context(), id); err != nil {
		return s.catalogError(c, "delete", "store", err, nil)
	}

	s.metrics.CatalogOp("delete", "ok")
	return c.Redirect(http.StatusSeeOther, "/store")
}

func (s *Server) cart(c echo.Context) error {
	return s.render(c, http.StatusOK, "cart", nil)
}

// catalogError re-renders view with a status matching err. op is the metric
// label; read-only views pass "".
func (s *Server) catalogError(c echo.Context, op, view string, err error, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}

	var code int
	var outcome string
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		code, outcome = http.StatusNotFound, "not_found"
		data["errors"] = []validation.FieldError{{Field: "id", Message: err.Error()}}
	case errors.Is(err, catalog.ErrDuplicateTitle):
		code, outcome = http.StatusConflict, "duplicate_title"
		data["errors"] = []validation.FieldError{{Field: "title", Message: err.Error()}}
	default:
		if fields := fieldErrors(err); fields != nil {
			code, outcome = http.StatusUnprocessableEntity, "invalid"
			data["errors"] = fields
		} else {
			if op != "" {
				s.metrics.CatalogOp(op, "error")
			}
			return s.internalError(c, err)
		}
	}

	if op != "" {
		s.metrics.CatalogOp(op, outcome)
	}
	return s.render(c, code, view, data)
}
