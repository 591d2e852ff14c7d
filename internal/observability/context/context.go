// Package context carries request-scoped identifiers used by logs and traces.
package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type key int

const (
	requestIDKey key = iota
	correlationIDKey
	tenantIDKey
	actorKey
	toolKey
)

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

func WithTenantID(ctx context.Context, id string) context.Context {
	return withString(ctx, tenantIDKey, id)
}

func TenantIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, tenantIDKey)
}

func WithTool(ctx context.Context, name string) context.Context {
	return withString(ctx, toolKey, name)
}

func ToolFromContext(ctx context.Context) string {
	return stringFrom(ctx, toolKey)
}

// WithActor records who is calling: "user", "anonymous" or "system".
func WithActor(ctx context.Context, kind, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey, actor{kind: strings.TrimSpace(kind), id: strings.TrimSpace(id)})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actorKey).(actor)
	return a.kind, a.id
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, correlationIDKey)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating
// a ULID when the caller did not send one.
func EnsureCorrelationID(ctx context.Context, incoming string) (context.Context, string) {
	cid := strings.TrimSpace(incoming)
	if cid == "" {
		cid = CorrelationIDFromContext(ctx)
	}
	if cid == "" {
		cid = ulid.Make().String()
	}
	return withString(ctx, correlationIDKey, cid), cid
}

func withString(ctx context.Context, k key, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, k, value)
}

func stringFrom(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(k).(string)
	return value
}
