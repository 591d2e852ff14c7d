package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency for the gin engine.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// ToolMetrics records tool dispatch outcomes scraped from /metrics.
type ToolMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "estately"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// NewHTTPMetrics registers the HTTP collectors on the default registerer.
func NewHTTPMetrics(cfg Config) (*HTTPMetrics, error) {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) (*HTTPMetrics, error) {
	labels := constLabels(cfg)
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "estately_http_requests_total",
			Help:        "HTTP requests by route and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "estately_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: labels,
		}, []string{"method", "route"}),
	}
	var err error
	if m.requests, err = registerOrReuse(registerer, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrReuse(registerer, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// NewToolMetrics registers the tool collectors on the default registerer.
func NewToolMetrics(cfg Config) (*ToolMetrics, error) {
	return NewToolMetricsWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewToolMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) (*ToolMetrics, error) {
	labels := constLabels(cfg)
	m := &ToolMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "estately_tool_calls_total",
			Help:        "Tool calls by name and result kind.",
			ConstLabels: labels,
		}, []string{"tool", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "estately_tool_duration_seconds",
			Help:        "Tool execution latency.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: labels,
		}, []string{"tool"}),
	}
	var err error
	if m.calls, err = registerOrReuse(registerer, m.calls); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrReuse(registerer, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records one tool call. kind is "ok" or an error kind.
func (m *ToolMetrics) Observe(tool, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "ok"
	}
	m.calls.WithLabelValues(tool, kind).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// registerOrReuse returns the already registered collector when one with the
// same descriptor exists, so repeated fx graphs in one process share series.
func registerOrReuse[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// GinMiddleware records request metrics after each handler completes.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
