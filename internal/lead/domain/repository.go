package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estately/pkg/db/option"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, lead *Lead) error
	InsertBatch(ctx context.Context, db *gorm.DB, leads []*Lead) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Lead, error)
	Update(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, values map[string]any) (int64, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListFilter, opts ...option.QueryOption) ([]*Lead, error)
}
