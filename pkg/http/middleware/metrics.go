package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records request counts and latency on reg. Routes are labelled by
// their template (e.g. /api/downloads/:id) to keep cardinality low.
func Metrics(reg prometheus.Registerer) echo.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histpull_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "class"},
	)
	duration := f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "histpull_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"route", "method"},
	)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			requests.WithLabelValues(route, method, statusClass(status)).Inc()
			duration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
