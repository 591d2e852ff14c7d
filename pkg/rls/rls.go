package rls

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/pkg/db"
	"gorm.io/gorm"
)

// Setting is the session variable read by the row level security policies.
const Setting = "app.current_tenant_id"

// WithTenant pins the tenant for the rest of a postgres transaction.
// Other dialects have no row level security, so it is a no-op there.
func WithTenant(tx *gorm.DB, tenantID snowflake.ID) error {
	if !db.IsPostgres(tx) {
		return nil
	}
	return tx.Exec(
		fmt.Sprintf("SET LOCAL %s = '%d'", Setting, int64(tenantID)),
	).Error
}

// Transaction runs fn in a transaction scoped to tenantID. The transaction
// rolls back when fn fails or ctx is cancelled.
func Transaction(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID, fn func(tx *gorm.DB) error) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := WithTenant(tx, tenantID); err != nil {
			return err
		}
		return fn(tx)
	})
}
