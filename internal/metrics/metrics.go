package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "circle_http_request_duration_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ClicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_clicks_total",
			Help: "Referral clicks by outcome",
		},
		[]string{"outcome"},
	)

	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_leads_total",
			Help: "Ingested leads by attribution source",
		},
		[]string{"source"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_settlements_total",
			Help: "Commission settlement attempts by result",
		},
		[]string{"result"},
	)

	SettledAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circle_settled_amount_total",
			Help: "Commission amount marked paid, in major currency units",
		},
		[]string{"currency"},
	)

	LoginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circle_login_failures_total",
		Help: "Failed password logins",
	})
)

// Middleware records request count and latency keyed by the matched route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
