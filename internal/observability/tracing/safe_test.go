package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPersonalData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/tools/:name"),
		attribute.String("Mobile", "+201000000000"),
		attribute.String("email", "a@b.c"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "http.route" {
		t.Fatalf("expected http.route to be retained, got %s", attrs[0].Key)
	}
}

func TestSafeErrorStripsSQLState(t *testing.T) {
	err := SafeError(errors.New(`duplicate key value (SQLSTATE 23505) detail: mobile=+20100`))
	if err.Error() != "duplicate key value" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
