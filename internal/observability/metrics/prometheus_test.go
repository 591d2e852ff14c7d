package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestToolMetricsObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewToolMetricsWithRegisterer(registry, Config{ServiceName: "estately", Environment: "test"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	m.Observe("get_properties", "", 10*time.Millisecond)
	m.Observe("get_properties", "validation", time.Millisecond)
	m.Observe("get_properties", "", 5*time.Millisecond)

	if got := testutil.ToFloat64(m.calls.WithLabelValues("get_properties", "ok")); got != 2 {
		t.Fatalf("expected 2 ok calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("get_properties", "validation")); got != 1 {
		t.Fatalf("expected 1 validation call, got %v", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() != "estately_tool_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			histogram = metric.GetHistogram()
			for _, label := range metric.GetLabel() {
				if label.GetName() == "env" && label.GetValue() != "test" {
					t.Fatalf("expected env label test, got %s", label.GetValue())
				}
			}
		}
	}
	if histogram == nil {
		t.Fatalf("expected duration histogram to be gathered")
	}
	if histogram.GetSampleCount() != 3 {
		t.Fatalf("expected 3 samples, got %d", histogram.GetSampleCount())
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewHTTPMetricsWithRegisterer(registry, Config{})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := NewHTTPMetricsWithRegisterer(registry, Config{})
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if first.requests != second.requests {
		t.Fatalf("expected the registered counter to be reused")
	}
}

func TestGinMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWithRegisterer(registry, Config{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.POST("/v1/tools/:name", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/tools/unknown", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodPost, "/v1/tools/:name", "404")); got != 1 {
		t.Fatalf("expected 1 request recorded, got %v", got)
	}
}
