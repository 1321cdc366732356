package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCollector(t *testing.T) {
	m := New(func(context.Context) (int64, int64, error) { return 2, 8, nil })

	expected := `
# HELP storefront_catalog_books Books currently in the catalog.
# TYPE storefront_catalog_books gauge
storefront_catalog_books 2
# HELP storefront_catalog_units Total quantity in stock across all books.
# TYPE storefront_catalog_units gauge
storefront_catalog_units 8
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"storefront_catalog_books", "storefront_catalog_units")
	assert.NoError(t, err)
}

func TestCatalogCollectorError(t *testing.T) {
	m := New(func(context.Context) (int64, int64, error) { return 0, 0, errors.New("db down") })

	_, err := m.Registry().Gather()
	assert.Error(t, err)
}

func TestCounters(t *testing.T) {
	m := New(nil)

	m.AuthEvent("login", "invalid_password")
	m.AuthEvent("login", "invalid_password")
	m.CatalogOp("add", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authEvents.WithLabelValues("login", "invalid_password")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogOps.WithLabelValues("add", "ok")))
}

func TestMiddleware(t *testing.T) {
	m := New(nil)
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/store", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	for _, path := range []string{"/store", "/store", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/store", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/boom", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}
