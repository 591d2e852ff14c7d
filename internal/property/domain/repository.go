package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, property *Property) error
	InsertBatch(ctx context.Context, db *gorm.DB, properties []*Property) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Property, error)
	Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, values map[string]any) (int64, error)
	IncrementInquiries(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (int64, error)
	IncrementViews(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	Search(ctx context.Context, db *gorm.DB, q SearchQuery) ([]*Property, error)
	Count(ctx context.Context, db *gorm.DB, q SearchQuery) (int64, error)
}

// SearchQuery is a resolved SearchFilter: the visibility scope is already
// decided and the page bounds are clamped.
type SearchQuery struct {
	SearchFilter

	// OwnerTenantID rows are visible whatever their is_public flag. Zero
	// restricts the query to public rows.
	OwnerTenantID snowflake.ID
	// PublicFromOthers adds public rows of other tenants to the owner's rows.
	PublicFromOthers bool
}
