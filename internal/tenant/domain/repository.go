package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTenant(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	FindTenantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenant, error)
	FindTenantByMobile(ctx context.Context, db *gorm.DB, mobile string) (*Tenant, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	ListActiveTenants(ctx context.Context, db *gorm.DB) ([]*Tenant, error)
	UpdateTenant(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) (int64, error)

	InsertUser(ctx context.Context, db *gorm.DB, user *User) error
	FindUserByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*User, error)
	FindUserByMobile(ctx context.Context, db *gorm.DB, mobile string) (*User, error)
	ListUsers(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter UserFilter) ([]*User, error)
	UpdateUser(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, values map[string]any) (int64, error)
}
