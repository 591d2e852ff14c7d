package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, value *LookupValue) error
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LookupValue, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*LookupValue, error)
	FindByKey(ctx context.Context, db *gorm.DB, kind Kind, tenantID snowflake.ID, key string) (*LookupValue, error)
	ListActive(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*LookupValue, error)
}

// ListFilter selects active rows of TenantID plus shared rows. An empty Kind
// matches every kind.
type ListFilter struct {
	Kind     Kind
	TenantID snowflake.ID
	ParentID *snowflake.ID
}
