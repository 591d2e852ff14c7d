package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tool", "get_properties"),
		attribute.String("tenant_id", "456"),
		attribute.String("outcome", "ok"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "tool" && attrs[1].Key != "tool" {
		t.Fatalf("expected tool to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordToolCall(context.Background(), "get_properties", "ok", true)
	m.RecordRateLimitDenied(context.Background(), "get_properties", "exhausted")
	m.RecordLeadAssigned(context.Background())
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "estately-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordPropertyCreated(context.Background(), "bulk_import", 3)
	m.RecordToolCall(context.Background(), "get_stats", "validation", false)
}
