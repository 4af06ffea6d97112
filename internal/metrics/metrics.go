package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Send outcomes recorded by the gateway.
const (
	ResultSent          = "sent"
	ResultNotReady      = "not_ready"
	ResultInvalid       = "invalid"
	ResultNotRegistered = "not_registered"
	ResultFailed        = "failed"
)

// Metrics holds the gateway's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	sessionReady     prometheus.Gauge
	stateTransitions *prometheus.CounterVec
	reinitAttempts   prometheus.Counter
	messagesTotal    *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		sessionReady: f.NewGauge(prometheus.GaugeOpts{
			Name: "whatsapp_session_ready",
			Help: "1 when the WhatsApp session can send messages",
		}),
		stateTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whatsapp_session_transitions_total",
				Help: "Session state transitions by target state",
			},
			[]string{"state"},
		),
		reinitAttempts: f.NewCounter(prometheus.CounterOpts{
			Name: "whatsapp_session_reinitialize_total",
			Help: "Scheduled re-initialization attempts",
		}),
		messagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whatsapp_messages_total",
				Help: "Send requests by outcome",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) SetReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.sessionReady.Set(1)
	} else {
		m.sessionReady.Set(0)
	}
}

func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) IncReinitialize() {
	if m == nil {
		return
	}
	m.reinitAttempts.Inc()
}

func (m *Metrics) ObserveSend(result string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(result).Inc()
}

// Middleware records request count and latency per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				// error handler belum jalan, status response masih default
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.requestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
