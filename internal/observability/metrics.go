package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "outreach"

// Metrics stores Prometheus collectors used by the API and the run loop.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	attemptsTotal       *prometheus.CounterVec
	skippedTotal        prometheus.Counter
	cooldownsTotal      prometheus.Counter
	sendDuration        prometheus.Histogram
	runsTotal           *prometheus.CounterVec
	runActive           prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Send attempts recorded in the ledger by outcome.",
			},
			[]string{"outcome"},
		),
		skippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_total",
				Help:      "Candidates skipped because they were already messaged.",
			},
		),
		cooldownsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cooldowns_total",
				Help:      "Cooldowns entered after the batch interval was exceeded.",
			},
		),
		sendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Time spent in the automation backend per attempt.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Finished runs by final phase.",
			},
			[]string{"result"},
		),
		runActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_active",
				Help:      "1 while a run is in progress.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.attemptsTotal,
		m.skippedTotal,
		m.cooldownsTotal,
		m.sendDuration,
		m.runsTotal,
		m.runActive,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.attemptsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.skippedTotal.Inc()
}

func (m *Metrics) IncCooldown() {
	if m == nil {
		return
	}
	m.cooldownsTotal.Inc()
}

func (m *Metrics) ObserveSendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.Observe(seconds)
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runActive.Set(1)
}

func (m *Metrics) RunFinished(result string) {
	if m == nil {
		return
	}
	m.runActive.Set(0)
	label := strings.TrimSpace(strings.ToLower(result))
	if label == "" {
		label = "unknown"
	}
	m.runsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
