package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// StatsFunc reports the number of catalog titles and the total stock.
type StatsFunc func(ctx context.Context) (titles, units int64, err error)

// Metrics groups the service's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
	catalogOps   *prometheus.CounterVec
}

// New registers every collector on a fresh registry. stats may be nil.
func New(stats StatsFunc) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Register, login and logout attempts by outcome.",
		}, []string{"action", "outcome"}),
		catalogOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_operations_total",
			Help:      "Catalog mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.authEvents,
		m.catalogOps,
	)
	if stats != nil {
		m.registry.MustRegister(newCatalogCollector(stats))
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AuthEvent counts one auth attempt.
func (m *Metrics) AuthEvent(action, outcome string) {
	m.authEvents.WithLabelValues(action, outcome).Inc()
}

// CatalogOp counts one catalog mutation.
func (m *Metrics) CatalogOp(operation, outcome string) {
	m.catalogOps.WithLabelValues(operation, outcome).Inc()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

type catalogCollector struct {
	stats StatsFunc
	books *prometheus.Desc
	units *prometheus.Desc
}

func newCatalogCollector(stats StatsFunc) *catalogCollector {
	return &catalogCollector{
		stats: stats,
		books: prometheus.NewDesc(namespace+"_catalog_books", "Books currently in the catalog.", nil, nil),
		units: prometheus.NewDesc(namespace+"_catalog_units", "Total quantity in stock across all books.", nil, nil),
	}
}

func (c *catalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.books
	ch <- c.units
}

// Collect queries the store on every scrape.
func (c *catalogCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	titles, units, err := c.stats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.books, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.books, prometheus.GaugeValue, float64(titles))
	ch <- prometheus.MustNewConstMetric(c.units, prometheus.GaugeValue, float64(units))
}
