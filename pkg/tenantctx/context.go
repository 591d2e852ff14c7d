package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type keyType string

const (
	TenantIDKey keyType = "tenant_id"
	UserIDKey   keyType = "user_id"
)

// Caller is the authenticated identity attached to a request. A zero
// TenantID means the caller is anonymous.
type Caller struct {
	TenantID snowflake.ID
	UserID   snowflake.ID
}

func (c Caller) Anonymous() bool {
	return c.TenantID == 0
}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, caller.TenantID)
	return context.WithValue(ctx, UserIDKey, caller.UserID)
}

func TenantID(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(TenantIDKey).(snowflake.ID)
	return id, ok && id != 0
}

func UserID(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(UserIDKey).(snowflake.ID)
	return id, ok && id != 0
}

// FromContext returns the caller, anonymous when nothing is attached.
func FromContext(ctx context.Context) Caller {
	tenantID, _ := TenantID(ctx)
	userID, _ := UserID(ctx)
	return Caller{TenantID: tenantID, UserID: userID}
}
